package school

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campushub/campushub-sms/internal/audit"
	"github.com/campushub/campushub-sms/internal/db"
	"github.com/campushub/campushub-sms/internal/grading"
)

func newTestStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh, "sqlite", audit.NewLog(dbh)), dbh
}

func seedUser(t *testing.T, dbh *sql.DB, role Role) string {
	t.Helper()
	id := uuid.NewString()
	_, err := dbh.ExecContext(context.Background(),
		`INSERT INTO users (id, username, email, password_hash, role, is_active, created_at)
		 VALUES ($1,$2,$3,'x',$4,1,$5)`,
		id, "u-"+id[:8], id[:8]+"@test.local", role, time.Now().Unix())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func seedTeacher(t *testing.T, s *SQLStore, dbh *sql.DB) Teacher {
	t.Helper()
	tch, err := s.CreateTeacher(context.Background(), Teacher{
		UserID:     seedUser(t, dbh, RoleTeacher),
		Department: "Mathematics",
		Subjects:   []string{"Algebra"},
	}, time.Now())
	if err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	return tch
}

func seedStudent(t *testing.T, s *SQLStore, dbh *sql.DB) Student {
	t.Helper()
	st, err := s.CreateStudent(context.Background(), Student{
		UserID:     seedUser(t, dbh, RoleStudent),
		GradeLevel: "10",
	}, time.Now())
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return st
}

func seedCourse(t *testing.T, s *SQLStore, teacherID string, capacity int) Course {
	t.Helper()
	c, err := s.CreateCourse(context.Background(), Course{
		Code:         "MATH-" + uuid.NewString()[:8],
		Name:         "Algebra I",
		GradeLevel:   "10",
		Credits:      3,
		TeacherID:    teacherID,
		Capacity:     capacity,
		AcademicYear: "2026-2027",
		Semester:     SemesterFall,
	}, time.Now())
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return c
}

func TestEnrollCapacity(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 1)

	s1 := seedStudent(t, s, dbh)
	s2 := seedStudent(t, s, dbh)

	e, err := s.Enroll(ctx, s1.ID, course.ID, time.Now())
	if err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	if e.Status != StatusEnrolled || e.Credits != 3 {
		t.Errorf("enrollment = %+v, want enrolled with snapshot credits 3", e)
	}
	if !strings.HasPrefix(e.Code, "ENR") {
		t.Errorf("code = %q, want ENR prefix", e.Code)
	}

	if _, err := s.Enroll(ctx, s2.ID, course.ID, time.Now()); !errors.Is(err, ErrCourseFull) {
		t.Fatalf("second enroll: got %v, want ErrCourseFull", err)
	}

	c, err := s.GetCourse(ctx, course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.EnrolledCount != 1 || c.AvailableSeats != 0 {
		t.Errorf("counts = %d/%d, want 1 enrolled, 0 available", c.EnrolledCount, c.AvailableSeats)
	}
}

func TestEnrollDuplicate(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 10)
	st := seedStudent(t, s, dbh)

	if _, err := s.Enroll(ctx, st.ID, course.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Enroll(ctx, st.ID, course.ID, time.Now()); !errors.Is(err, ErrDuplicateEnrollment) {
		t.Fatalf("got %v, want ErrDuplicateEnrollment", err)
	}
}

func TestEnrollUnknownCourse(t *testing.T) {
	s, dbh := newTestStore(t)
	st := seedStudent(t, s, dbh)
	if _, err := s.Enroll(context.Background(), st.ID, uuid.NewString(), time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDropFreesSeat(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 1)
	s1 := seedStudent(t, s, dbh)
	s2 := seedStudent(t, s, dbh)

	e1, err := s.Enroll(ctx, s1.ID, course.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(ctx, e1.ID, time.Now()); err != nil {
		t.Fatalf("drop: %v", err)
	}

	got, err := s.GetEnrollment(ctx, e1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusDropped {
		t.Errorf("status = %s, want dropped", got.Status)
	}

	// The seat is free immediately.
	if _, err := s.Enroll(ctx, s2.ID, course.ID, time.Now()); err != nil {
		t.Fatalf("enroll after drop: %v", err)
	}
}

func TestReenrollAfterDropIsFreshRecord(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 5)
	st := seedStudent(t, s, dbh)

	e1, err := s.Enroll(ctx, st.ID, course.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(ctx, e1.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	e2, err := s.Enroll(ctx, st.ID, course.ID, time.Now())
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if e2.ID == e1.ID || e2.Code == e1.Code {
		t.Errorf("re-enrollment must be a fresh record: %v vs %v", e2.ID, e1.ID)
	}

	es, err := s.ListEnrollments(ctx, EnrollmentListOpts{StudentID: st.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(es) != 2 {
		t.Errorf("history length = %d, want 2 (dropped + enrolled)", len(es))
	}
}

// Capacity must hold under concurrent enrolls against the same course.
func TestEnrollConcurrent(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	const capacity = 3
	course := seedCourse(t, s, tch.ID, capacity)

	students := make([]Student, 10)
	for i := range students {
		students[i] = seedStudent(t, s, dbh)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(students))
	for i := range students {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Enroll(ctx, students[i].ID, course.ID, time.Now())
		}(i)
	}
	wg.Wait()

	ok, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCourseFull):
			full++
		default:
			t.Errorf("unexpected enroll error: %v", err)
		}
	}
	if ok != capacity || full != len(students)-capacity {
		t.Errorf("ok=%d full=%d, want %d/%d", ok, full, capacity, len(students)-capacity)
	}

	var seated int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM course_roster WHERE course_id=$1`, course.ID).Scan(&seated); err != nil {
		t.Fatal(err)
	}
	if seated != capacity {
		t.Errorf("roster size = %d, want exactly %d", seated, capacity)
	}
}

func TestUpdateEnrollmentDropPathFreesSeat(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 1)
	s1 := seedStudent(t, s, dbh)
	s2 := seedStudent(t, s, dbh)

	e, err := s.Enroll(ctx, s1.ID, course.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateEnrollment(ctx, e.ID, StatusDropped, "", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Enroll(ctx, s2.ID, course.ID, time.Now()); err != nil {
		t.Fatalf("enroll after status update: %v", err)
	}
}

// Dropped and completed enrollments are terminal; nothing transitions out
// of them, and in particular nothing goes back to enrolled.
func TestTerminalEnrollmentStates(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 5)
	s1 := seedStudent(t, s, dbh)
	s2 := seedStudent(t, s, dbh)

	e1, err := s.Enroll(ctx, s1.ID, course.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(ctx, e1.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	// Dropping twice stays a no-op.
	if err := s.Drop(ctx, e1.ID, time.Now()); err != nil {
		t.Errorf("second drop: %v, want nil", err)
	}
	if _, err := s.UpdateEnrollment(ctx, e1.ID, StatusEnrolled, "", time.Now()); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("dropped->enrolled: got %v, want ErrNotEnrolled", err)
	}
	if _, err := s.UpdateEnrollment(ctx, e1.ID, StatusCompleted, "", time.Now()); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("dropped->completed: got %v, want ErrNotEnrolled", err)
	}
	var seated int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM course_roster WHERE course_id=$1`, course.ID).Scan(&seated); err != nil {
		t.Fatal(err)
	}
	if seated != 0 {
		t.Errorf("roster size = %d after drop, want 0", seated)
	}

	e2, err := s.Enroll(ctx, s2.ID, course.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateEnrollment(ctx, e2.ID, StatusCompleted, "A", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(ctx, e2.ID, time.Now()); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("drop of completed: got %v, want ErrNotEnrolled", err)
	}
	if _, err := s.UpdateEnrollment(ctx, e2.ID, StatusEnrolled, "", time.Now()); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("completed->enrolled: got %v, want ErrNotEnrolled", err)
	}
	got, err := s.GetEnrollment(ctx, e2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || got.FinalGrade != "A" {
		t.Errorf("record = %s/%q, terminal state must be untouched", got.Status, got.FinalGrade)
	}
}

func TestCreateGradeDerivesFields(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 10)
	st := seedStudent(t, s, dbh)
	e, err := s.Enroll(ctx, st.ID, course.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	g, err := s.CreateGrade(ctx, Grade{
		EnrollmentID: e.ID,
		TeacherID:    tch.ID,
		Assessments: []grading.Assessment{
			{Name: "Midterm", Type: grading.TypeMidterm, MaxMarks: 100, ObtainedMarks: 95},
			{Name: "Final", Type: grading.TypeFinal, MaxMarks: 100, ObtainedMarks: 91},
		},
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if g.StudentID != st.ID || g.CourseID != course.ID {
		t.Errorf("grade must derive student/course from the enrollment: %+v", g)
	}
	if g.TotalMarks != 186 || g.Percentage != 93 || g.LetterGrade != "A" || g.GPA != 4.0 {
		t.Errorf("derived = %v/%v/%s/%v, want 186/93/A/4.0", g.TotalMarks, g.Percentage, g.LetterGrade, g.GPA)
	}
	if g.IsPublished {
		t.Error("new grade must start unpublished")
	}
	if g.AcademicYear != e.AcademicYear || g.Semester != e.Semester {
		t.Errorf("grade must inherit year/semester from enrollment: %+v", g)
	}
}

func TestReplaceAssessmentsRecomputes(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 10)
	st := seedStudent(t, s, dbh)
	e, _ := s.Enroll(ctx, st.ID, course.ID, time.Now())
	g, err := s.CreateGrade(ctx, Grade{EnrollmentID: e.ID, TeacherID: tch.ID}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if g.LetterGrade != "" {
		t.Errorf("empty assessment list must yield no letter, got %q", g.LetterGrade)
	}

	g2, err := s.ReplaceAssessments(ctx, g.ID, []grading.Assessment{
		{Name: "Quiz", Type: grading.TypeQuiz, MaxMarks: 50, ObtainedMarks: 30},
	})
	if err != nil {
		t.Fatal(err)
	}
	if g2.Percentage != 60 || g2.LetterGrade != "D" || g2.GPA != 1.0 {
		t.Errorf("recomputed = %v/%s/%v, want 60/D/1.0", g2.Percentage, g2.LetterGrade, g2.GPA)
	}
	if len(g2.Assessments) != 1 {
		t.Errorf("assessments = %d, want 1", len(g2.Assessments))
	}
}

func TestPublishGradeOnce(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 10)
	st := seedStudent(t, s, dbh)
	e, _ := s.Enroll(ctx, st.ID, course.ID, time.Now())
	g, err := s.CreateGrade(ctx, Grade{
		EnrollmentID: e.ID,
		TeacherID:    tch.ID,
		Assessments: []grading.Assessment{
			{Name: "Final", Type: grading.TypeFinal, MaxMarks: 100, ObtainedMarks: 88},
		},
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	pub, err := s.PublishGrade(ctx, g.ID, time.Now())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !pub.IsPublished || pub.PublishedAt == nil {
		t.Errorf("published grade = %+v, want is_published with timestamp", pub)
	}

	// Letter grade lands on the enrollment in the same transaction.
	e2, err := s.GetEnrollment(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e2.FinalGrade != "B+" {
		t.Errorf("enrollment final_grade = %q, want B+", e2.FinalGrade)
	}

	if _, err := s.PublishGrade(ctx, g.ID, time.Now()); !errors.Is(err, ErrAlreadyPublished) {
		t.Fatalf("second publish: got %v, want ErrAlreadyPublished", err)
	}

	// Students only see the grade once it is published.
	published, err := s.ListGrades(ctx, GradeListOpts{StudentID: st.ID, PublishedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(published) != 1 {
		t.Errorf("published grades = %d, want 1", len(published))
	}
}

// Concurrent publishes race past the read-side guard; the conditional
// update must let exactly one through.
func TestPublishGradeConcurrent(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 10)
	st := seedStudent(t, s, dbh)
	e, _ := s.Enroll(ctx, st.ID, course.ID, time.Now())
	g, err := s.CreateGrade(ctx, Grade{
		EnrollmentID: e.ID,
		TeacherID:    tch.ID,
		Assessments: []grading.Assessment{
			{Name: "Final", Type: grading.TypeFinal, MaxMarks: 100, ObtainedMarks: 77},
		},
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.PublishGrade(ctx, g.ID, time.Now())
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyPublished):
		default:
			t.Errorf("unexpected publish error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d publishes succeeded, want exactly 1", ok)
	}

	var events int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM event_log WHERE typ='grade.published'`).Scan(&events); err != nil {
		t.Fatal(err)
	}
	if events != 1 {
		t.Errorf("%d publish events logged, want 1", events)
	}
}

func TestAttendanceUpsertAndSummary(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	tch := seedTeacher(t, s, dbh)
	course := seedCourse(t, s, tch.ID, 10)
	st := seedStudent(t, s, dbh)

	mark := func(date string, status AttendanceStatus) AttendanceRecord {
		t.Helper()
		recs, err := s.MarkAttendance(ctx, course.ID, date, tch.ID,
			[]AttendanceEntry{{StudentID: st.ID, Status: status}}, time.Now())
		if err != nil {
			t.Fatalf("mark %s: %v", date, err)
		}
		return recs[0]
	}
	first := mark("2026-09-01", AttendanceAbsent)
	corrected := mark("2026-09-01", AttendancePresent) // correction replaces the first mark
	if corrected.ID != first.ID {
		t.Errorf("re-mark returned id %q, want the stored row's id %q", corrected.ID, first.ID)
	}
	mark("2026-09-02", AttendanceLate)
	mark("2026-09-03", AttendanceAbsent)
	mark("2026-09-04", AttendanceExcused)

	recs, err := s.ListAttendance(ctx, AttendanceListOpts{CourseID: course.ID, StudentID: st.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 {
		t.Fatalf("records = %d, want 4 (re-mark must not duplicate)", len(recs))
	}

	sum, err := s.AttendanceSummary(ctx, st.ID, course.ID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	// present + late = 2 of 4
	if sum.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", sum.Percentage)
	}
	if sum.StatusCounts["present"] != 1 || sum.StatusCounts["late"] != 1 ||
		sum.StatusCounts["absent"] != 1 || sum.StatusCounts["excused"] != 1 {
		t.Errorf("status counts = %v", sum.StatusCounts)
	}
}

func TestAnnouncementsAudienceAndExpiry(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	admin := seedUser(t, dbh, RoleAdmin)
	now := time.Now()

	mk := func(title string, audience []string, expires *int64) {
		t.Helper()
		_, err := s.CreateAnnouncement(ctx, Announcement{
			Title: title, Content: "c", CreatedBy: admin, Audience: audience, ExpiresAt: expires,
		}, now)
		if err != nil {
			t.Fatal(err)
		}
	}
	past := now.Add(-time.Hour).Unix()
	mk("everyone", []string{"all"}, nil)
	mk("teachers only", []string{"teachers"}, nil)
	mk("expired", []string{"all"}, &past)

	forStudents, err := s.ListAnnouncements(ctx, RoleStudent, "", now, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(forStudents) != 1 || forStudents[0].Title != "everyone" {
		t.Errorf("student view = %+v, want just the all-audience post", forStudents)
	}

	forTeachers, err := s.ListAnnouncements(ctx, RoleTeacher, "", now, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(forTeachers) != 2 {
		t.Errorf("teacher view = %d posts, want 2", len(forTeachers))
	}
}

// An oversized limit is clamped to the cap, never reset below it.
func TestAnnouncementsLimitClamp(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	admin := seedUser(t, dbh, RoleAdmin)
	now := time.Now()

	for i := 0; i < 25; i++ {
		if _, err := s.CreateAnnouncement(ctx, Announcement{
			Title: fmt.Sprintf("post %d", i), Content: "c", CreatedBy: admin,
		}, now); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListAnnouncements(ctx, RoleAdmin, "", now, 150)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 25 {
		t.Errorf("limit 150 returned %d posts, want all 25", len(got))
	}

	got, err = s.ListAnnouncements(ctx, RoleAdmin, "", now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("limit 10 returned %d posts, want 10", len(got))
	}
}

func TestStudentAndCodeSequences(t *testing.T) {
	s, dbh := newTestStore(t)
	yy := time.Now().Format("06")

	s1 := seedStudent(t, s, dbh)
	s2 := seedStudent(t, s, dbh)
	if s1.Code != "STU"+yy+"0001" || s2.Code != "STU"+yy+"0002" {
		t.Errorf("codes = %q, %q; want sequential STU%s000N", s1.Code, s2.Code, yy)
	}

	tch := seedTeacher(t, s, dbh)
	if !strings.HasPrefix(tch.Code, "TCH"+yy) {
		t.Errorf("teacher code = %q, want TCH%s prefix", tch.Code, yy)
	}
}
