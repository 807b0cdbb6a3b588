package school

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/campushub-sms/internal/audit"
	"github.com/campushub/campushub-sms/internal/grading"
)

// CreateGrade stores a grade with its initial assessment list. Derived
// fields come from the evaluator, never from the caller.
func (s *SQLStore) CreateGrade(ctx context.Context, g Grade, now time.Time) (Grade, error) {
	e, err := s.GetEnrollment(ctx, g.EnrollmentID)
	if err != nil {
		return Grade{}, err
	}
	g.ID = newID()
	g.StudentID = e.StudentID
	g.CourseID = e.CourseID
	if g.AcademicYear == "" {
		g.AcademicYear = e.AcademicYear
	}
	if g.Semester == "" {
		g.Semester = e.Semester
	}
	g.IsPublished = false
	g.PublishedAt = nil
	g.CreatedAt = now.Unix()

	sum := grading.Recompute(g.Assessments)
	g.TotalMarks, g.Percentage, g.LetterGrade, g.GPA = sum.TotalMarks, sum.Percentage, sum.Letter, sum.GPA

	aj, err := json.Marshal(emptyIfNil(g.Assessments))
	if err != nil {
		return Grade{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grades (id,enrollment_id,student_id,course_id,teacher_id,assessments_json,total_marks,percentage,letter_grade,gpa,academic_year,semester,is_published,published_at,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,`+boolLit(s.driver, false)+`,NULL,$13)`,
		g.ID, g.EnrollmentID, g.StudentID, g.CourseID, g.TeacherID, string(aj),
		g.TotalMarks, g.Percentage, g.LetterGrade, g.GPA, g.AcademicYear, g.Semester, g.CreatedAt)
	if err != nil {
		return Grade{}, err
	}
	return g, nil
}

const gradeCols = `g.id, g.enrollment_id, g.student_id, g.course_id, g.teacher_id, g.assessments_json, g.total_marks, g.percentage, g.letter_grade, g.gpa, g.academic_year, g.semester, g.is_published, g.published_at, g.created_at`

func scanGrade(row interface{ Scan(...any) error }) (Grade, error) {
	var g Grade
	var aj string
	var publishedAt sql.NullInt64
	err := row.Scan(&g.ID, &g.EnrollmentID, &g.StudentID, &g.CourseID, &g.TeacherID, &aj,
		&g.TotalMarks, &g.Percentage, &g.LetterGrade, &g.GPA, &g.AcademicYear, &g.Semester,
		&g.IsPublished, &publishedAt, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Grade{}, ErrNotFound
	}
	if err != nil {
		return Grade{}, err
	}
	if publishedAt.Valid {
		g.PublishedAt = &publishedAt.Int64
	}
	if err := json.Unmarshal([]byte(aj), &g.Assessments); err != nil {
		g.Assessments = nil
	}
	return g, nil
}

func (s *SQLStore) GetGrade(ctx context.Context, id string) (Grade, error) {
	return scanGrade(s.db.QueryRowContext(ctx,
		`SELECT `+gradeCols+` FROM grades g WHERE g.id=$1`, id))
}

func (s *SQLStore) ListGrades(ctx context.Context, opts GradeListOpts) ([]Grade, error) {
	where := []string{"1=1"}
	var args []any
	filter := func(col, val string) {
		if val != "" {
			args = append(args, val)
			where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
		}
	}
	filter("g.student_id", opts.StudentID)
	filter("g.course_id", opts.CourseID)
	filter("g.academic_year", opts.AcademicYear)
	filter("g.semester", opts.Semester)
	if opts.PublishedOnly {
		where = append(where, "g.is_published="+boolLit(s.driver, true))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gradeCols+` FROM grades g WHERE `+strings.Join(where, " AND ")+
			` ORDER BY g.created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grade
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ReplaceAssessments swaps the assessment list and writes the recomputed
// derived fields in the same statement, so the stored summary can never
// disagree with the stored list.
func (s *SQLStore) ReplaceAssessments(ctx context.Context, gradeID string, assessments []grading.Assessment) (Grade, error) {
	sum := grading.Recompute(assessments)
	aj, err := json.Marshal(emptyIfNil(assessments))
	if err != nil {
		return Grade{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE grades SET assessments_json=$1, total_marks=$2, percentage=$3, letter_grade=$4, gpa=$5
		 WHERE id=$6`,
		string(aj), sum.TotalMarks, sum.Percentage, sum.Letter, sum.GPA, gradeID)
	if err != nil {
		return Grade{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Grade{}, ErrNotFound
	}
	return s.GetGrade(ctx, gradeID)
}

// PublishGrade marks the grade published and copies its letter grade onto
// the enrollment's final grade in one transaction. A published grade stays
// published; re-publishing is a conflict.
func (s *SQLStore) PublishGrade(ctx context.Context, gradeID string, now time.Time) (Grade, error) {
	g, err := s.GetGrade(ctx, gradeID)
	if err != nil {
		return Grade{}, err
	}
	if g.IsPublished {
		return Grade{}, ErrAlreadyPublished
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Grade{}, err
	}
	defer tx.Rollback()

	ts := now.Unix()
	// Conditional flip: the earlier read happened outside this transaction,
	// so a concurrent publish may have won in between. Zero rows affected
	// means someone else already published.
	res, err := tx.ExecContext(ctx,
		`UPDATE grades SET is_published=`+boolLit(s.driver, true)+`, published_at=$1
		 WHERE id=$2 AND is_published=`+boolLit(s.driver, false),
		ts, gradeID)
	if err != nil {
		return Grade{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Grade{}, ErrAlreadyPublished
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET final_grade=$1 WHERE id=$2`,
		g.LetterGrade, g.EnrollmentID); err != nil {
		return Grade{}, err
	}
	if err := tx.Commit(); err != nil {
		return Grade{}, err
	}

	if s.events != nil {
		_ = s.events.Append(ctx, audit.GradePublished, gradeID,
			map[string]string{"enrollment_id": g.EnrollmentID, "letter_grade": g.LetterGrade}, now)
	}
	g.IsPublished = true
	g.PublishedAt = &ts
	return g, nil
}
