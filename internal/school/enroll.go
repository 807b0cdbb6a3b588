package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/campushub-sms/internal/audit"
)

// Enroll seats a student in a course. The duplicate-active check, the
// capacity check, the roster insert and the enrollment insert form one
// critical section per course: without it two concurrent attempts could
// both observe a free seat and overshoot capacity.
func (s *SQLStore) Enroll(ctx context.Context, studentID, courseID string, now time.Time) (Enrollment, error) {
	mu := s.courseLock(courseID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Enrollment{}, err
	}
	defer tx.Rollback()

	var capacity int
	err = tx.QueryRowContext(ctx,
		`SELECT capacity FROM courses WHERE id=$1 AND is_active=`+boolLit(s.driver, true), courseID).
		Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, err
	}
	if _, err := scanStudent(tx.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students s WHERE s.id=$1`, studentID)); err != nil {
		return Enrollment{}, err
	}

	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE student_id=$1 AND course_id=$2 AND status='enrolled'`,
		studentID, courseID).Scan(&active); err != nil {
		return Enrollment{}, err
	}
	if active > 0 {
		return Enrollment{}, ErrDuplicateEnrollment
	}

	var seated int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM course_roster WHERE course_id=$1`, courseID).Scan(&seated); err != nil {
		return Enrollment{}, err
	}
	if seated >= capacity {
		return Enrollment{}, ErrCourseFull
	}

	// Idempotent membership add; the PK makes a double insert impossible.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO course_roster (course_id, student_id, added_at) VALUES ($1,$2,$3)
		 ON CONFLICT (course_id, student_id) DO NOTHING`,
		courseID, studentID, now.Unix()); err != nil {
		return Enrollment{}, err
	}

	// Snapshot credits/year/semester so later course edits don't rewrite
	// historical enrollments.
	var credits float64
	var year string
	var semester Semester
	if err := tx.QueryRowContext(ctx,
		`SELECT credits, academic_year, semester FROM courses WHERE id=$1`, courseID).
		Scan(&credits, &year, &semester); err != nil {
		return Enrollment{}, err
	}

	seq, err := nextSeq(ctx, tx, "enrollment")
	if err != nil {
		return Enrollment{}, err
	}
	e := Enrollment{
		ID:           newID(),
		Code:         enrollmentCode(now, seq),
		StudentID:    studentID,
		CourseID:     courseID,
		Status:       StatusEnrolled,
		Credits:      credits,
		AcademicYear: year,
		Semester:     semester,
		EnrolledAt:   now.Unix(),
		CreatedAt:    now.Unix(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrollments (id,code,student_id,course_id,status,final_grade,credits,academic_year,semester,enrolled_at,created_at)
		 VALUES ($1,$2,$3,$4,'enrolled','',$5,$6,$7,$8,$9)`,
		e.ID, e.Code, e.StudentID, e.CourseID, e.Credits, e.AcademicYear, e.Semester, e.EnrolledAt, e.CreatedAt); err != nil {
		return Enrollment{}, err
	}
	if err := tx.Commit(); err != nil {
		return Enrollment{}, err
	}
	if s.events != nil {
		_ = s.events.Append(ctx, audit.EnrollmentCreated, e.ID,
			map[string]string{"student_id": studentID, "course_id": courseID, "code": e.Code}, now)
	}
	return e, nil
}

// Drop releases the student's seat and marks the enrollment dropped.
// Dropping twice is a no-op; re-enrollment afterwards creates a fresh
// record. Completed enrollments are terminal and cannot be dropped.
func (s *SQLStore) Drop(ctx context.Context, enrollmentID string, now time.Time) error {
	e, err := s.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if e.Status == StatusDropped {
		return nil
	}
	if e.Status != StatusEnrolled {
		return ErrNotEnrolled
	}

	mu := s.courseLock(e.CourseID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM course_roster WHERE course_id=$1 AND student_id=$2`,
		e.CourseID, e.StudentID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET status='dropped' WHERE id=$1`, enrollmentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.events != nil {
		_ = s.events.Append(ctx, audit.EnrollmentDropped, enrollmentID,
			map[string]string{"student_id": e.StudentID, "course_id": e.CourseID}, now)
	}
	return nil
}

const enrollmentCols = `e.id, e.code, e.student_id, e.course_id, e.status, e.final_grade, e.credits, e.academic_year, e.semester, e.enrolled_at, e.created_at`

func scanEnrollment(row interface{ Scan(...any) error }) (Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.Code, &e.StudentID, &e.CourseID, &e.Status, &e.FinalGrade,
		&e.Credits, &e.AcademicYear, &e.Semester, &e.EnrolledAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	return e, err
}

func (s *SQLStore) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return scanEnrollment(s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments e WHERE e.id=$1`, id))
}

func (s *SQLStore) ListEnrollments(ctx context.Context, opts EnrollmentListOpts) ([]Enrollment, error) {
	where := []string{"1=1"}
	var args []any
	filter := func(col, val string) {
		if val != "" {
			args = append(args, val)
			where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
		}
	}
	filter("e.student_id", opts.StudentID)
	filter("e.course_id", opts.CourseID)
	filter("e.status", opts.Status)
	filter("e.academic_year", opts.AcademicYear)
	filter("e.semester", opts.Semester)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments e WHERE `+
			strings.Join(where, " AND ")+` ORDER BY e.created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListStudentCourses(ctx context.Context, studentID string) ([]Enrollment, error) {
	es, err := s.ListEnrollments(ctx, EnrollmentListOpts{StudentID: studentID, Status: string(StatusEnrolled)})
	if err != nil {
		return nil, err
	}
	// Attach courses explicitly; one lookup per active enrollment keeps the
	// read path obvious and is plenty at course-load sizes.
	for i := range es {
		c, err := s.GetCourse(ctx, es[i].CourseID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err == nil {
			c.Roster = nil
			es[i].Course = &c
		}
	}
	return es, nil
}

func (s *SQLStore) UpdateEnrollment(ctx context.Context, id string, status EnrollmentStatus, finalGrade string, now time.Time) (Enrollment, error) {
	e, err := s.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if status == "" {
		status = e.Status
	}
	if finalGrade == "" {
		finalGrade = e.FinalGrade
	}
	if status != e.Status {
		// dropped and completed are terminal; only an active enrollment
		// may change state. Going back to enrolled would hold a seat the
		// roster never granted.
		if e.Status != StatusEnrolled {
			return Enrollment{}, ErrNotEnrolled
		}
		// Dropping through this path must free the seat too.
		if status == StatusDropped {
			if err := s.Drop(ctx, id, now); err != nil {
				return Enrollment{}, err
			}
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET status=$1, final_grade=$2 WHERE id=$3`,
		status, finalGrade, id); err != nil {
		return Enrollment{}, err
	}
	return s.GetEnrollment(ctx, id)
}
