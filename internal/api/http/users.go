package http

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/school"
)

const userCols = `id, username, email, role, first_name, last_name, phone, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (school.User, error) {
	var u school.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.IsActive, &u.CreatedAt)
	return u, err
}

func validRole(r school.Role) bool {
	switch r {
	case school.RoleAdmin, school.RoleTeacher, school.RoleStudent:
		return true
	}
	return false
}

func insertUser(r *http.Request, db *sql.DB, u school.User, password string, now time.Time) (school.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return school.User{}, err
	}
	u.ID = uuid.NewString()
	u.IsActive = true
	u.CreatedAt = now.Unix()
	_, err = db.ExecContext(r.Context(),
		`INSERT INTO users (id, username, email, password_hash, role, first_name, last_name, phone, is_active, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.Username, u.Email, string(hash), u.Role, u.FirstName, u.LastName, u.Phone, u.IsActive, u.CreatedAt)
	return u, err
}

// RegisterHandler creates a login account. Student and teacher profiles
// are attached afterwards through their own endpoints.
func RegisterHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username  string      `json:"username"`
			Email     string      `json:"email"`
			Password  string      `json:"password"`
			Role      school.Role `json:"role"`
			FirstName string      `json:"first_name"`
			LastName  string      `json:"last_name"`
			Phone     string      `json:"phone"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		switch {
		case strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "":
			badRequest(w, "username and email required")
			return
		case len(req.Password) < 6:
			badRequest(w, "password must be at least 6 characters")
			return
		case !validRole(req.Role):
			badRequest(w, "role must be admin, teacher or student")
			return
		}
		u, err := insertUser(r, db, school.User{
			Username:  strings.TrimSpace(req.Username),
			Email:     strings.TrimSpace(req.Email),
			Role:      req.Role,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		}, req.Password, time.Now())
		if err != nil {
			badRequest(w, "username or email already taken")
			return
		}
		writeData(w, http.StatusCreated, "User registered successfully", u)
	}
}

func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := pageParams(r)
		where, args := []string{"1=1"}, []any{}
		if role := r.URL.Query().Get("role"); role != "" {
			args = append(args, role)
			where = append(where, "role=$1")
		}
		cond := strings.Join(where, " AND ")

		var total int
		if err := db.QueryRowContext(r.Context(),
			`SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
			writeErr(w, err)
			return
		}
		rows, err := db.QueryContext(r.Context(),
			`SELECT `+userCols+` FROM users WHERE `+cond+` ORDER BY created_at DESC LIMIT `+itoa(limit)+` OFFSET `+itoa(offset),
			args...)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rows.Close()
		users := []school.User{}
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				writeErr(w, err)
				return
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			writeErr(w, err)
			return
		}
		writePage(w, users, page, limit, total)
	}
}

func MeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row := db.QueryRowContext(r.Context(),
			`SELECT `+userCols+` FROM users WHERE id=$1`, authmw.SubjectFromContext(r.Context()))
		u, err := scanUser(row)
		if errors.Is(err, sql.ErrNoRows) {
			writeErr(w, school.ErrNotFound)
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", u)
	}
}

func ChangePasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if len(req.NewPassword) < 6 {
			badRequest(w, "password must be at least 6 characters")
			return
		}
		sub := authmw.SubjectFromContext(r.Context())
		var hash string
		err := db.QueryRowContext(r.Context(),
			`SELECT password_hash FROM users WHERE id=$1`, sub).Scan(&hash)
		if errors.Is(err, sql.ErrNoRows) {
			writeErr(w, school.ErrNotFound)
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)) != nil {
			badRequest(w, "current password is incorrect")
			return
		}
		newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			writeErr(w, err)
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET password_hash=$1 WHERE id=$2`, string(newHash), sub); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Password changed successfully", nil)
	}
}

// BulkImportUsersHandler takes a CSV upload with header
// username,email,password,role,first_name,last_name and creates the
// accounts in one pass. Rows that collide or fail validation are
// reported back, not fatal.
func BulkImportUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			badRequest(w, "multipart form required")
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file field required")
			return
		}
		defer f.Close()

		rd := csv.NewReader(f)
		header, err := rd.Read()
		if err != nil {
			badRequest(w, "empty csv")
			return
		}
		col := map[string]int{}
		for i, h := range header {
			col[strings.ToLower(strings.TrimSpace(h))] = i
		}
		for _, required := range []string{"username", "email", "password", "role"} {
			if _, ok := col[required]; !ok {
				badRequest(w, "csv must have username, email, password and role columns")
				return
			}
		}
		field := func(rec []string, name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		now := time.Now()
		created := 0
		var failed []string
		for line := 2; ; line++ {
			rec, err := rd.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				badRequest(w, "malformed csv")
				return
			}
			u := school.User{
				Username:  field(rec, "username"),
				Email:     field(rec, "email"),
				Role:      school.Role(field(rec, "role")),
				FirstName: field(rec, "first_name"),
				LastName:  field(rec, "last_name"),
			}
			pass := field(rec, "password")
			if u.Username == "" || u.Email == "" || len(pass) < 6 || !validRole(u.Role) {
				failed = append(failed, u.Username)
				continue
			}
			if _, err := insertUser(r, db, u, pass, now); err != nil {
				failed = append(failed, u.Username)
				continue
			}
			created++
		}
		writeData(w, http.StatusOK, "Import finished", map[string]interface{}{
			"created": created,
			"failed":  failed,
		})
	}
}
