package school

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// MarkAttendance upserts one day's sheet for a course. Re-marking the same
// (course, student, date) replaces the earlier status.
func (s *SQLStore) MarkAttendance(ctx context.Context, courseID, date, markedBy string, entries []AttendanceEntry, now time.Time) ([]AttendanceRecord, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]AttendanceRecord, 0, len(entries))
	for _, e := range entries {
		rec := AttendanceRecord{
			ID:        newID(),
			CourseID:  courseID,
			StudentID: e.StudentID,
			Date:      date,
			Status:    e.Status,
			Remarks:   e.Remarks,
			MarkedBy:  markedBy,
			CreatedAt: now.Unix(),
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance (id,course_id,student_id,date,status,remarks,marked_by,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 ON CONFLICT (course_id, student_id, date)
			 DO UPDATE SET status=EXCLUDED.status, remarks=EXCLUDED.remarks, marked_by=EXCLUDED.marked_by`,
			rec.ID, rec.CourseID, rec.StudentID, rec.Date, rec.Status, rec.Remarks, rec.MarkedBy, rec.CreatedAt); err != nil {
			return nil, err
		}
		// On conflict the existing row keeps its id; return what is stored.
		if err := tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM attendance WHERE course_id=$1 AND student_id=$2 AND date=$3`,
			rec.CourseID, rec.StudentID, rec.Date).Scan(&rec.ID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) ListAttendance(ctx context.Context, opts AttendanceListOpts) ([]AttendanceRecord, error) {
	where := []string{"1=1"}
	var args []any
	filter := func(col, op, val string) {
		if val != "" {
			args = append(args, val)
			where = append(where, fmt.Sprintf("%s%s$%d", col, op, len(args)))
		}
	}
	filter("a.course_id", "=", opts.CourseID)
	filter("a.student_id", "=", opts.StudentID)
	if opts.Date != "" {
		filter("a.date", "=", opts.Date)
	} else {
		filter("a.date", ">=", opts.From)
		filter("a.date", "<=", opts.To)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.course_id, a.student_id, a.date, a.status, a.remarks, a.marked_by, a.created_at
		   FROM attendance a WHERE `+strings.Join(where, " AND ")+` ORDER BY a.date DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		if err := rows.Scan(&r.ID, &r.CourseID, &r.StudentID, &r.Date, &r.Status, &r.Remarks, &r.MarkedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AttendanceSummary computes the attended percentage (present and late
// both count) plus per-status totals for one student in one course.
func (s *SQLStore) AttendanceSummary(ctx context.Context, studentID, courseID, from, to string) (AttendanceSummary, error) {
	recs, err := s.ListAttendance(ctx, AttendanceListOpts{
		CourseID: courseID, StudentID: studentID, From: from, To: to,
	})
	if err != nil {
		return AttendanceSummary{}, err
	}
	sum := AttendanceSummary{StatusCounts: map[string]int{}}
	attended := 0
	for _, r := range recs {
		sum.StatusCounts[string(r.Status)]++
		if r.Status == AttendancePresent || r.Status == AttendanceLate {
			attended++
		}
	}
	if len(recs) > 0 {
		sum.Percentage = math.Round(float64(attended)/float64(len(recs))*10000) / 100
	}
	return sum, nil
}
