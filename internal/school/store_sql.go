package school

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campushub/campushub-sms/internal/audit"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	events *audit.Log

	// Per-course serialization of enroll/drop. The read-check-write of the
	// roster must be one critical section per course; the transaction plus
	// the partial unique index are the cross-process backstop.
	courseLocks sync.Map // courseID -> *sync.Mutex
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, driver string, events *audit.Log) *SQLStore {
	return &SQLStore{db: db, driver: driver, events: events}
}

func (s *SQLStore) courseLock(courseID string) *sync.Mutex {
	v, _ := s.courseLocks.LoadOrStore(courseID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// likeOp returns the case-insensitive LIKE operator for the driver.
func (s *SQLStore) likeOp() string {
	if s.driver == "postgres" {
		return "ILIKE"
	}
	return "LIKE" // sqlite LIKE is case-insensitive for ASCII
}

// ---- students ----

func (s *SQLStore) CreateStudent(ctx context.Context, st Student, now time.Time) (Student, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Student{}, err
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "student")
	if err != nil {
		return Student{}, err
	}
	st.ID = newID()
	st.Code = studentCode(now, seq)
	if st.EnrolledOn == 0 {
		st.EnrolledOn = now.Unix()
	}
	st.IsActive = true
	_, err = tx.ExecContext(ctx,
		`INSERT INTO students (id,user_id,code,grade_level,section,parent_name,parent_email,parent_phone,enrolled_on,is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		st.ID, st.UserID, st.Code, st.GradeLevel, st.Section,
		st.ParentName, st.ParentEmail, st.ParentPhone, st.EnrolledOn, st.IsActive)
	if err != nil {
		return Student{}, err
	}
	if err := tx.Commit(); err != nil {
		return Student{}, err
	}
	return st, nil
}

const studentCols = `s.id, s.user_id, s.code, s.grade_level, s.section, s.parent_name, s.parent_email, s.parent_phone, s.enrolled_on, s.is_active`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var st Student
	err := row.Scan(&st.ID, &st.UserID, &st.Code, &st.GradeLevel, &st.Section,
		&st.ParentName, &st.ParentEmail, &st.ParentPhone, &st.EnrolledOn, &st.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	return st, err
}

func (s *SQLStore) GetStudent(ctx context.Context, id string) (Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students s WHERE s.id=$1`, id))
	if err != nil {
		return Student{}, err
	}
	u, err := s.getUser(ctx, st.UserID)
	if err == nil {
		st.User = &u
	}
	return st, nil
}

func (s *SQLStore) GetStudentByUserID(ctx context.Context, userID string) (Student, error) {
	return scanStudent(s.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students s WHERE s.user_id=$1`, userID))
}

func (s *SQLStore) ListStudents(ctx context.Context, opts StudentListOpts) ([]Student, int, error) {
	where := []string{"1=1"}
	var args []any
	if opts.GradeLevel != "" {
		args = append(args, opts.GradeLevel)
		where = append(where, fmt.Sprintf("s.grade_level=$%d", len(args)))
	}
	if opts.Section != "" {
		args = append(args, opts.Section)
		where = append(where, fmt.Sprintf("s.section=$%d", len(args)))
	}
	if opts.Active != nil {
		args = append(args, *opts.Active)
		where = append(where, fmt.Sprintf("s.is_active=$%d", len(args)))
	}
	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(s.code %[1]s $%[2]d OR u.first_name %[1]s $%[2]d OR u.last_name %[1]s $%[2]d OR u.email %[1]s $%[2]d)",
			s.likeOp(), n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students s JOIN users u ON u.id=s.user_id WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(opts.Limit, opts.Offset)
	args = append(args, limit, offset)
	q := `SELECT ` + studentCols + `, u.id, u.username, u.email, u.role, u.first_name, u.last_name, u.phone, u.is_active, u.created_at
	        FROM students s JOIN users u ON u.id=s.user_id
	       WHERE ` + cond +
		fmt.Sprintf(` ORDER BY s.code LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var st Student
		var u User
		if err := rows.Scan(&st.ID, &st.UserID, &st.Code, &st.GradeLevel, &st.Section,
			&st.ParentName, &st.ParentEmail, &st.ParentPhone, &st.EnrolledOn, &st.IsActive,
			&u.ID, &u.Username, &u.Email, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		st.User = &u
		out = append(out, st)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) UpdateStudent(ctx context.Context, st Student) (Student, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE students SET grade_level=$1, section=$2, parent_name=$3, parent_email=$4, parent_phone=$5, is_active=$6
		 WHERE id=$7`,
		st.GradeLevel, st.Section, st.ParentName, st.ParentEmail, st.ParentPhone, st.IsActive, st.ID)
	if err != nil {
		return Student{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Student{}, ErrNotFound
	}
	return s.GetStudent(ctx, st.ID)
}

// ---- teachers ----

func (s *SQLStore) CreateTeacher(ctx context.Context, t Teacher, now time.Time) (Teacher, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Teacher{}, err
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "teacher")
	if err != nil {
		return Teacher{}, err
	}
	t.ID = newID()
	t.Code = teacherCode(now, seq)
	if t.JoinedOn == 0 {
		t.JoinedOn = now.Unix()
	}
	t.IsActive = true
	sj, err := json.Marshal(emptyIfNil(t.Subjects))
	if err != nil {
		return Teacher{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO teachers (id,user_id,code,department,qualification,specialization,experience_years,subjects_json,joined_on,is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.UserID, t.Code, t.Department, t.Qualification, t.Specialization,
		t.ExperienceYears, string(sj), t.JoinedOn, t.IsActive)
	if err != nil {
		return Teacher{}, err
	}
	if err := tx.Commit(); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

const teacherCols = `t.id, t.user_id, t.code, t.department, t.qualification, t.specialization, t.experience_years, t.subjects_json, t.joined_on, t.is_active`

func scanTeacher(row interface{ Scan(...any) error }) (Teacher, error) {
	var t Teacher
	var sj string
	err := row.Scan(&t.ID, &t.UserID, &t.Code, &t.Department, &t.Qualification,
		&t.Specialization, &t.ExperienceYears, &sj, &t.JoinedOn, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, ErrNotFound
	}
	if err != nil {
		return Teacher{}, err
	}
	if err := json.Unmarshal([]byte(sj), &t.Subjects); err != nil {
		t.Subjects = nil
	}
	return t, nil
}

func (s *SQLStore) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	t, err := scanTeacher(s.db.QueryRowContext(ctx,
		`SELECT `+teacherCols+` FROM teachers t WHERE t.id=$1`, id))
	if err != nil {
		return Teacher{}, err
	}
	u, err := s.getUser(ctx, t.UserID)
	if err == nil {
		t.User = &u
	}
	return t, nil
}

func (s *SQLStore) GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error) {
	return scanTeacher(s.db.QueryRowContext(ctx,
		`SELECT `+teacherCols+` FROM teachers t WHERE t.user_id=$1`, userID))
}

func (s *SQLStore) ListTeachers(ctx context.Context, opts TeacherListOpts) ([]Teacher, int, error) {
	where := []string{"1=1"}
	var args []any
	if opts.Department != "" {
		args = append(args, opts.Department)
		where = append(where, fmt.Sprintf("t.department=$%d", len(args)))
	}
	if opts.Active != nil {
		args = append(args, *opts.Active)
		where = append(where, fmt.Sprintf("t.is_active=$%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teachers t WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(opts.Limit, opts.Offset)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+teacherCols+` FROM teachers t WHERE `+cond+
			fmt.Sprintf(` ORDER BY t.code LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	sj, err := json.Marshal(emptyIfNil(t.Subjects))
	if err != nil {
		return Teacher{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE teachers SET department=$1, qualification=$2, specialization=$3, experience_years=$4, subjects_json=$5, is_active=$6
		 WHERE id=$7`,
		t.Department, t.Qualification, t.Specialization, t.ExperienceYears, string(sj), t.IsActive, t.ID)
	if err != nil {
		return Teacher{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Teacher{}, ErrNotFound
	}
	return s.GetTeacher(ctx, t.ID)
}

// ---- courses ----

func (s *SQLStore) CreateCourse(ctx context.Context, c Course, now time.Time) (Course, error) {
	c.ID = newID()
	c.IsActive = true
	c.CreatedAt = now.Unix()
	if c.Capacity <= 0 {
		c.Capacity = 40
	}
	sj, err := json.Marshal(emptyIfNil(c.Schedule))
	if err != nil {
		return Course{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO courses (id,code,name,description,grade_level,department,credits,teacher_id,schedule_json,capacity,academic_year,semester,is_active,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, strings.ToUpper(c.Code), c.Name, c.Description, c.GradeLevel, c.Department,
		c.Credits, c.TeacherID, string(sj), c.Capacity, c.AcademicYear, c.Semester, c.IsActive, c.CreatedAt)
	if err != nil {
		return Course{}, err
	}
	c.Code = strings.ToUpper(c.Code)
	c.AvailableSeats = c.Capacity
	return c, nil
}

const courseCols = `c.id, c.code, c.name, c.description, c.grade_level, c.department, c.credits, c.teacher_id, c.schedule_json, c.capacity, c.academic_year, c.semester, c.is_active, c.created_at`

func scanCourse(row interface{ Scan(...any) error }, extra ...*int) (Course, error) {
	var c Course
	var sj string
	dest := []any{&c.ID, &c.Code, &c.Name, &c.Description, &c.GradeLevel, &c.Department,
		&c.Credits, &c.TeacherID, &sj, &c.Capacity, &c.AcademicYear, &c.Semester, &c.IsActive, &c.CreatedAt}
	for _, e := range extra {
		dest = append(dest, e)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, err
	}
	if err := json.Unmarshal([]byte(sj), &c.Schedule); err != nil {
		c.Schedule = nil
	}
	return c, nil
}

// GetCourse returns the course with derived seat counts, its teacher and
// the roster attached. Joins are explicit here rather than implicit on
// every read.
func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var enrolled int
	c, err := scanCourse(s.db.QueryRowContext(ctx,
		`SELECT `+courseCols+`, (SELECT COUNT(*) FROM course_roster r WHERE r.course_id=c.id)
		   FROM courses c WHERE c.id=$1`, id), &enrolled)
	if err != nil {
		return Course{}, err
	}
	c.EnrolledCount = enrolled
	c.AvailableSeats = c.Capacity - enrolled

	if t, err := s.GetTeacher(ctx, c.TeacherID); err == nil {
		c.Teacher = &t
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentCols+` FROM students s
		   JOIN course_roster r ON r.student_id=s.id
		  WHERE r.course_id=$1 ORDER BY s.code`, id)
	if err != nil {
		return Course{}, err
	}
	defer rows.Close()
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return Course{}, err
		}
		c.Roster = append(c.Roster, st)
	}
	return c, rows.Err()
}

func (s *SQLStore) ListCourses(ctx context.Context, opts CourseListOpts) ([]Course, int, error) {
	where := []string{"c.is_active=" + boolLit(s.driver, true)}
	var args []any
	filter := func(col, val string) {
		if val != "" {
			args = append(args, val)
			where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
		}
	}
	filter("c.grade_level", opts.GradeLevel)
	filter("c.department", opts.Department)
	filter("c.teacher_id", opts.TeacherID)
	filter("c.academic_year", opts.AcademicYear)
	filter("c.semester", opts.Semester)
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM courses c WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(opts.Limit, opts.Offset)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+courseCols+`, (SELECT COUNT(*) FROM course_roster r WHERE r.course_id=c.id)
		   FROM courses c WHERE `+cond+
			fmt.Sprintf(` ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var enrolled int
		c, err := scanCourse(rows, &enrolled)
		if err != nil {
			return nil, 0, err
		}
		c.EnrolledCount = enrolled
		c.AvailableSeats = c.Capacity - enrolled
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) ListCoursesByTeacher(ctx context.Context, teacherID string) ([]Course, error) {
	cs, _, err := s.ListCourses(ctx, CourseListOpts{TeacherID: teacherID, Limit: 200})
	return cs, err
}

func (s *SQLStore) UpdateCourse(ctx context.Context, c Course) (Course, error) {
	sj, err := json.Marshal(emptyIfNil(c.Schedule))
	if err != nil {
		return Course{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET name=$1, description=$2, grade_level=$3, department=$4, credits=$5,
		        teacher_id=$6, schedule_json=$7, capacity=$8, academic_year=$9, semester=$10, is_active=$11
		 WHERE id=$12`,
		c.Name, c.Description, c.GradeLevel, c.Department, c.Credits,
		c.TeacherID, string(sj), c.Capacity, c.AcademicYear, c.Semester, c.IsActive, c.ID)
	if err != nil {
		return Course{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Course{}, ErrNotFound
	}
	return s.GetCourse(ctx, c.ID)
}

func (s *SQLStore) DeactivateCourse(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET is_active=`+boolLit(s.driver, false)+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- dashboard ----

func (s *SQLStore) Counts(ctx context.Context) (students, teachers, courses int, err error) {
	active := boolLit(s.driver, true)
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students WHERE is_active=`+active).Scan(&students); err != nil {
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teachers WHERE is_active=`+active).Scan(&teachers); err != nil {
		return
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE is_active=`+active).Scan(&courses)
	return
}

// ---- shared helpers ----

func (s *SQLStore) getUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role, first_name, last_name, phone, is_active, created_at
		   FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.FirstName, &u.LastName, &u.Phone, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func boolLit(driver string, v bool) string {
	if driver == "postgres" {
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	if v {
		return "1"
	}
	return "0"
}

func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
