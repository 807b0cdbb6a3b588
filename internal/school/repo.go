package school

import (
	"context"
	"time"

	"github.com/campushub/campushub-sms/internal/grading"
)

type StudentListOpts struct {
	GradeLevel string
	Section    string
	Active     *bool
	Search     string // matches code, or joined user name/email
	Limit      int
	Offset     int
}

type TeacherListOpts struct {
	Department string
	Active     *bool
	Limit      int
	Offset     int
}

type CourseListOpts struct {
	GradeLevel   string
	Department   string
	TeacherID    string
	AcademicYear string
	Semester     string
	Limit        int
	Offset       int
}

type EnrollmentListOpts struct {
	StudentID    string
	CourseID     string
	Status       string
	AcademicYear string
	Semester     string
}

type AttendanceListOpts struct {
	CourseID  string
	StudentID string
	Date      string // exact day, YYYY-MM-DD
	From      string // inclusive range bounds, used when Date is empty
	To        string
}

type GradeListOpts struct {
	StudentID     string
	CourseID      string
	AcademicYear  string
	Semester      string
	PublishedOnly bool
}

// AttendanceEntry is one student's status in a batch attendance sheet.
type AttendanceEntry struct {
	StudentID string           `json:"student_id"`
	Status    AttendanceStatus `json:"status"`
	Remarks   string           `json:"remarks,omitempty"`
}

// Store is the persistence contract for the school domain. Mutations that
// stamp wall time take it from the caller so behavior stays deterministic
// under test.
type Store interface {
	CreateStudent(ctx context.Context, s Student, now time.Time) (Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	GetStudentByUserID(ctx context.Context, userID string) (Student, error)
	ListStudents(ctx context.Context, opts StudentListOpts) ([]Student, int, error)
	UpdateStudent(ctx context.Context, s Student) (Student, error)

	CreateTeacher(ctx context.Context, t Teacher, now time.Time) (Teacher, error)
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error)
	ListTeachers(ctx context.Context, opts TeacherListOpts) ([]Teacher, int, error)
	UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)

	CreateCourse(ctx context.Context, c Course, now time.Time) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context, opts CourseListOpts) ([]Course, int, error)
	ListCoursesByTeacher(ctx context.Context, teacherID string) ([]Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	DeactivateCourse(ctx context.Context, id string) error

	// Enroll applies the duplicate-active check, the capacity check, the
	// roster insert and the enrollment insert as one atomic unit per
	// course. Rejections are ErrDuplicateEnrollment, ErrCourseFull and
	// ErrNotFound.
	Enroll(ctx context.Context, studentID, courseID string, now time.Time) (Enrollment, error)
	// Drop removes the student from the roster and marks the enrollment
	// dropped. The seat is free immediately. Dropping twice is a no-op;
	// dropping a completed enrollment is ErrNotEnrolled.
	Drop(ctx context.Context, enrollmentID string, now time.Time) error
	GetEnrollment(ctx context.Context, id string) (Enrollment, error)
	ListEnrollments(ctx context.Context, opts EnrollmentListOpts) ([]Enrollment, error)
	// ListStudentCourses returns the student's active enrollments with the
	// course record attached.
	ListStudentCourses(ctx context.Context, studentID string) ([]Enrollment, error)
	// UpdateEnrollment applies status and final-grade corrections. Status
	// may only change away from enrolled; dropped and completed are
	// terminal, and leaving them is ErrNotEnrolled.
	UpdateEnrollment(ctx context.Context, id string, status EnrollmentStatus, finalGrade string, now time.Time) (Enrollment, error)

	MarkAttendance(ctx context.Context, courseID, date, markedBy string, entries []AttendanceEntry, now time.Time) ([]AttendanceRecord, error)
	ListAttendance(ctx context.Context, opts AttendanceListOpts) ([]AttendanceRecord, error)
	AttendanceSummary(ctx context.Context, studentID, courseID, from, to string) (AttendanceSummary, error)

	CreateGrade(ctx context.Context, g Grade, now time.Time) (Grade, error)
	GetGrade(ctx context.Context, id string) (Grade, error)
	ListGrades(ctx context.Context, opts GradeListOpts) ([]Grade, error)
	// ReplaceAssessments swaps the assessment list and recomputes the
	// derived fields in the same update.
	ReplaceAssessments(ctx context.Context, gradeID string, assessments []grading.Assessment) (Grade, error)
	// PublishGrade flips the grade to published exactly once, stamping
	// publishedAt and copying the letter grade onto the enrollment's
	// final grade in the same transaction.
	PublishGrade(ctx context.Context, gradeID string, now time.Time) (Grade, error)

	CreateAnnouncement(ctx context.Context, a Announcement, now time.Time) (Announcement, error)
	GetAnnouncement(ctx context.Context, id string) (Announcement, error)
	// ListAnnouncements returns active, unexpired announcements visible to
	// the given role, newest first.
	ListAnnouncements(ctx context.Context, role Role, priority string, now time.Time, limit int) ([]Announcement, error)
	UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
	DeactivateAnnouncement(ctx context.Context, id string) error

	// Counts feeds the dashboard: active students, teachers and courses.
	Counts(ctx context.Context) (students, teachers, courses int, err error)
}
