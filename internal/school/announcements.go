package school

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

func (s *SQLStore) CreateAnnouncement(ctx context.Context, a Announcement, now time.Time) (Announcement, error) {
	a.ID = newID()
	a.IsActive = true
	a.CreatedAt = now.Unix()
	if len(a.Audience) == 0 {
		a.Audience = []string{"all"}
	}
	if a.Priority == "" {
		a.Priority = "medium"
	}
	auj, err := json.Marshal(a.Audience)
	if err != nil {
		return Announcement{}, err
	}
	atj, err := json.Marshal(emptyIfNil(a.Attachments))
	if err != nil {
		return Announcement{}, err
	}
	var expires any
	if a.ExpiresAt != nil {
		expires = *a.ExpiresAt
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO announcements (id,title,content,created_by,audience_json,priority,attachments_json,expires_at,is_active,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,`+boolLit(s.driver, true)+`,$9)`,
		a.ID, a.Title, a.Content, a.CreatedBy, string(auj), a.Priority, string(atj), expires, a.CreatedAt)
	if err != nil {
		return Announcement{}, err
	}
	return a, nil
}

const announcementCols = `a.id, a.title, a.content, a.created_by, a.audience_json, a.priority, a.attachments_json, a.expires_at, a.is_active, a.created_at`

func scanAnnouncement(row interface{ Scan(...any) error }) (Announcement, error) {
	var a Announcement
	var auj, atj string
	var expires sql.NullInt64
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.CreatedBy, &auj, &a.Priority, &atj,
		&expires, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Announcement{}, ErrNotFound
	}
	if err != nil {
		return Announcement{}, err
	}
	if expires.Valid {
		a.ExpiresAt = &expires.Int64
	}
	if err := json.Unmarshal([]byte(auj), &a.Audience); err != nil {
		a.Audience = []string{"all"}
	}
	if err := json.Unmarshal([]byte(atj), &a.Attachments); err != nil {
		a.Attachments = nil
	}
	return a, nil
}

func (s *SQLStore) GetAnnouncement(ctx context.Context, id string) (Announcement, error) {
	return scanAnnouncement(s.db.QueryRowContext(ctx,
		`SELECT `+announcementCols+` FROM announcements a WHERE a.id=$1`, id))
}

// ListAnnouncements returns active, unexpired announcements whose audience
// includes the caller's role (or "all"), highest priority first, then
// newest. Expiry is checked against the caller-supplied now.
func (s *SQLStore) ListAnnouncements(ctx context.Context, role Role, priority string, now time.Time, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	// Audience filtering happens here after the scan: the audience list
	// lives in a JSON column, and the candidate set is already small.
	q := `SELECT ` + announcementCols + ` FROM announcements a
	       WHERE a.is_active=` + boolLit(s.driver, true) + `
	         AND (a.expires_at IS NULL OR a.expires_at>=$1)`
	args := []any{now.Unix()}
	if priority != "" {
		args = append(args, priority)
		q += ` AND a.priority=$2`
	}
	q += ` ORDER BY CASE a.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, a.created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	audience := audienceFor(role)
	var out []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		if !audienceMatches(a.Audience, audience) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

func audienceFor(role Role) string {
	switch role {
	case RoleStudent:
		return "students"
	case RoleTeacher:
		return "teachers"
	default:
		return "admin"
	}
}

func audienceMatches(audience []string, want string) bool {
	for _, a := range audience {
		if a == "all" || a == want {
			return true
		}
	}
	return false
}

func (s *SQLStore) UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	auj, err := json.Marshal(a.Audience)
	if err != nil {
		return Announcement{}, err
	}
	atj, err := json.Marshal(emptyIfNil(a.Attachments))
	if err != nil {
		return Announcement{}, err
	}
	var expires any
	if a.ExpiresAt != nil {
		expires = *a.ExpiresAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET title=$1, content=$2, audience_json=$3, priority=$4, attachments_json=$5, expires_at=$6, is_active=$7
		 WHERE id=$8`,
		a.Title, a.Content, string(auj), a.Priority, string(atj), expires, a.IsActive, a.ID)
	if err != nil {
		return Announcement{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Announcement{}, ErrNotFound
	}
	return s.GetAnnouncement(ctx, a.ID)
}

func (s *SQLStore) DeactivateAnnouncement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET is_active=`+boolLit(s.driver, false)+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
