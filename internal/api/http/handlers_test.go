package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campushub/campushub-sms/internal/audit"
	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/db"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
)

type testEnv struct {
	dbh     *sql.DB
	store   *school.SQLStore
	authSvc *authmw.AuthService
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	store := school.NewSQLStore(dbh, "sqlite", audit.NewLog(dbh))
	authSvc := authmw.NewAuthService("test-secret", time.Hour)

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))
		pr.With(rbac.Require("student:create")).Post("/students", CreateStudentHandler(store))
		pr.With(rbac.RequireOwnerOr("student:view", OwnStudent(store))).
			Get("/students/{id}", GetStudentHandler(store))
		pr.With(rbac.Require("course:create")).Post("/courses", CreateCourseHandler(store))
		pr.With(rbac.Require("enrollment:create")).Post("/enrollments", CreateEnrollmentHandler(store))
		pr.With(rbac.Require("grade:create")).Post("/grades", CreateGradeHandler(store))
		pr.With(rbac.RequireAny("grade:view-all", "grade:view-own")).
			Get("/grades", ListGradesHandler(store))
		pr.With(rbac.Require("grade:publish")).Post("/grades/{id}/publish", PublishGradeHandler(store))
	})
	return &testEnv{dbh: dbh, store: store, authSvc: authSvc, router: r}
}

func (e *testEnv) seedUser(t *testing.T, role school.Role) string {
	t.Helper()
	id := uuid.NewString()
	_, err := e.dbh.Exec(
		`INSERT INTO users (id, username, email, password_hash, role, is_active, created_at)
		 VALUES ($1,$2,$3,'x',$4,1,$5)`,
		id, "u-"+id[:8], id[:8]+"@test.local", role, time.Now().Unix())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func (e *testEnv) token(t *testing.T, userID string, role school.Role) string {
	t.Helper()
	tok, err := e.authSvc.IssueJWT(userID, string(role), time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, "GET", "/grades", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}
}

func TestRoleGuard(t *testing.T) {
	env := newTestEnv(t)
	studentTok := env.token(t, env.seedUser(t, school.RoleStudent), school.RoleStudent)

	w := env.do(t, "POST", "/courses", studentTok, map[string]any{"code": "X", "name": "X"})
	if w.Code != http.StatusForbidden {
		t.Errorf("student creating course: status = %d, want 403", w.Code)
	}
}

func TestStudentSelfScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	u1 := env.seedUser(t, school.RoleStudent)
	u2 := env.seedUser(t, school.RoleStudent)
	s1, err := env.store.CreateStudent(ctx, school.Student{UserID: u1, GradeLevel: "10"}, now)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := env.store.CreateStudent(ctx, school.Student{UserID: u2, GradeLevel: "10"}, now)
	if err != nil {
		t.Fatal(err)
	}

	tok := env.token(t, u1, school.RoleStudent)
	if w := env.do(t, "GET", "/students/"+s1.ID, tok, nil); w.Code != http.StatusOK {
		t.Errorf("own record: status = %d, want 200", w.Code)
	}
	if w := env.do(t, "GET", "/students/"+s2.ID, tok, nil); w.Code != http.StatusForbidden {
		t.Errorf("other student's record: status = %d, want 403", w.Code)
	}

	// Staff pass the same guard on the permission side.
	teacherTok := env.token(t, env.seedUser(t, school.RoleTeacher), school.RoleTeacher)
	if w := env.do(t, "GET", "/students/"+s2.ID, teacherTok, nil); w.Code != http.StatusOK {
		t.Errorf("teacher view: status = %d, want 200", w.Code)
	}
}

func TestEnrollmentAndGradeFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	teacherUser := env.seedUser(t, school.RoleTeacher)
	tch, err := env.store.CreateTeacher(ctx, school.Teacher{UserID: teacherUser, Department: "Science"}, now)
	if err != nil {
		t.Fatal(err)
	}
	course, err := env.store.CreateCourse(ctx, school.Course{
		Code: "SCI-101", Name: "Physics", GradeLevel: "10", Credits: 3,
		TeacherID: tch.ID, Capacity: 1, AcademicYear: "2026-2027", Semester: school.SemesterFall,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	s1, err := env.store.CreateStudent(ctx, school.Student{UserID: env.seedUser(t, school.RoleStudent), GradeLevel: "10"}, now)
	if err != nil {
		t.Fatal(err)
	}
	s2User := env.seedUser(t, school.RoleStudent)
	s2, err := env.store.CreateStudent(ctx, school.Student{UserID: s2User, GradeLevel: "10"}, now)
	if err != nil {
		t.Fatal(err)
	}

	teacherTok := env.token(t, teacherUser, school.RoleTeacher)

	w := env.do(t, "POST", "/enrollments", teacherTok,
		map[string]string{"student_id": s1.ID, "course_id": course.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll: status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		Success bool              `json:"success"`
		Data    school.Enrollment `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || !created.Success {
		t.Fatalf("enroll envelope: %s", w.Body.String())
	}

	// Duplicate and over-capacity attempts are business-rule 400s.
	if w := env.do(t, "POST", "/enrollments", teacherTok,
		map[string]string{"student_id": s1.ID, "course_id": course.ID}); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate enroll: status = %d, want 400", w.Code)
	}
	if w := env.do(t, "POST", "/enrollments", teacherTok,
		map[string]string{"student_id": s2.ID, "course_id": course.ID}); w.Code != http.StatusBadRequest {
		t.Errorf("full course: status = %d, want 400", w.Code)
	}

	// Teacher id comes from the token, not the payload.
	w = env.do(t, "POST", "/grades", teacherTok, map[string]any{
		"enrollment_id": created.Data.ID,
		"assessments": []map[string]any{
			{"name": "Final", "type": "final", "max_marks": 100, "obtained_marks": 95},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create grade: status = %d, body %s", w.Code, w.Body.String())
	}
	var gradeResp struct {
		Data school.Grade `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &gradeResp); err != nil {
		t.Fatal(err)
	}
	if gradeResp.Data.TeacherID != tch.ID {
		t.Errorf("grade teacher = %q, want resolved %q", gradeResp.Data.TeacherID, tch.ID)
	}

	// Unpublished grades are invisible to the student.
	studentTok := env.token(t, s1.UserID, school.RoleStudent)
	w = env.do(t, "GET", "/grades", studentTok, nil)
	var listResp struct {
		Data []school.Grade `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatal(err)
	}
	if len(listResp.Data) != 0 {
		t.Errorf("student sees %d unpublished grades, want 0", len(listResp.Data))
	}

	if w := env.do(t, "POST", "/grades/"+gradeResp.Data.ID+"/publish", teacherTok, nil); w.Code != http.StatusOK {
		t.Fatalf("publish: status = %d", w.Code)
	}
	if w := env.do(t, "POST", "/grades/"+gradeResp.Data.ID+"/publish", teacherTok, nil); w.Code != http.StatusConflict {
		t.Errorf("re-publish: status = %d, want 409", w.Code)
	}

	w = env.do(t, "GET", "/grades", studentTok, nil)
	listResp.Data = nil
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatal(err)
	}
	if len(listResp.Data) != 1 || listResp.Data[0].LetterGrade != "A" {
		t.Errorf("student view after publish = %+v, want one A grade", listResp.Data)
	}
}

func TestAssessmentValidation(t *testing.T) {
	env := newTestEnv(t)
	teacherUser := env.seedUser(t, school.RoleTeacher)
	if _, err := env.store.CreateTeacher(context.Background(),
		school.Teacher{UserID: teacherUser, Department: "Science"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	tok := env.token(t, teacherUser, school.RoleTeacher)

	bad := []map[string]any{
		{"name": "", "type": "final", "max_marks": 100, "obtained_marks": 50},
		{"name": "X", "type": "vibe-check", "max_marks": 100, "obtained_marks": 50},
		{"name": "X", "type": "final", "max_marks": 100, "obtained_marks": 150},
		{"name": "X", "type": "final", "max_marks": -1, "obtained_marks": -1},
	}
	for i, a := range bad {
		w := env.do(t, "POST", "/grades", tok, map[string]any{
			"enrollment_id": "whatever",
			"assessments":   []map[string]any{a},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, w.Code)
		}
	}
}
