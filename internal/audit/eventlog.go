// Package audit appends domain events (enrollments, drops, grade
// publications) to an append-only log table for after-the-fact review.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EnrollmentCreated = "enrollment.created"
	EnrollmentDropped = "enrollment.dropped"
	GradePublished    = "grade.published"
)

type Event struct {
	Offset    int64
	Type      string
	Key       string // natural key: record id
	DataJSON  string
	CreatedAt int64
}

type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

// Append records an event. Payloads that fail to marshal are logged as
// empty objects rather than dropped.
func (l *Log) Append(ctx context.Context, typ, key string, payload any, now time.Time) error {
	data := "{}"
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			data = string(b)
		}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, data, now.Unix())
	return err
}

// Recent returns the newest events, for the admin activity feed.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT "offset", typ, key, data, created_at FROM event_log
		 ORDER BY "offset" DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
