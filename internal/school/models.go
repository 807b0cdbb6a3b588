package school

import (
	"github.com/campushub/campushub-sms/internal/grading"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type EnrollmentStatus string

const (
	StatusEnrolled  EnrollmentStatus = "enrolled"
	StatusDropped   EnrollmentStatus = "dropped"
	StatusCompleted EnrollmentStatus = "completed"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

type Semester string

const (
	SemesterSpring Semester = "Spring"
	SemesterFall   Semester = "Fall"
	SemesterSummer Semester = "Summer"
)

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt int64  `json:"created_at"`
}

type Student struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Code        string `json:"code"` // STUyyNNNN
	GradeLevel  string `json:"grade_level"`
	Section     string `json:"section,omitempty"`
	ParentName  string `json:"parent_name,omitempty"`
	ParentEmail string `json:"parent_email,omitempty"`
	ParentPhone string `json:"parent_phone,omitempty"`
	EnrolledOn  int64  `json:"enrolled_on"`
	IsActive    bool   `json:"is_active"`

	// Joined user fields, attached explicitly on reads that ask for them.
	User *User `json:"user,omitempty"`
}

type Teacher struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id"`
	Code            string   `json:"code"` // TCHyyNNNN
	Department      string   `json:"department"`
	Qualification   string   `json:"qualification,omitempty"`
	Specialization  string   `json:"specialization,omitempty"`
	ExperienceYears int      `json:"experience_years"`
	Subjects        []string `json:"subjects"`
	JoinedOn        int64    `json:"joined_on"`
	IsActive        bool     `json:"is_active"`

	User *User `json:"user,omitempty"`
}

// ScheduleSlot is one weekly meeting of a course. Times are "HH:MM".
type ScheduleSlot struct {
	Day       string `json:"day"` // Monday..Saturday
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room,omitempty"`
}

type Course struct {
	ID           string         `json:"id"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	GradeLevel   string         `json:"grade_level"`
	Department   string         `json:"department,omitempty"`
	Credits      float64        `json:"credits"`
	TeacherID    string         `json:"teacher_id"`
	Schedule     []ScheduleSlot `json:"schedule"`
	Capacity     int            `json:"capacity"`
	AcademicYear string         `json:"academic_year"`
	Semester     Semester       `json:"semester"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    int64          `json:"created_at"`

	// Derived from the roster.
	EnrolledCount  int `json:"enrolled_count"`
	AvailableSeats int `json:"available_seats"`

	Teacher *Teacher  `json:"teacher,omitempty"`
	Roster  []Student `json:"roster,omitempty"`
}

type Enrollment struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"` // ENRyyNNNN
	StudentID    string           `json:"student_id"`
	CourseID     string           `json:"course_id"`
	Status       EnrollmentStatus `json:"status"`
	FinalGrade   string           `json:"final_grade,omitempty"`
	Credits      float64          `json:"credits"`
	AcademicYear string           `json:"academic_year,omitempty"`
	Semester     Semester         `json:"semester,omitempty"`
	EnrolledAt   int64            `json:"enrolled_at"`
	CreatedAt    int64            `json:"created_at"`

	Course  *Course  `json:"course,omitempty"`
	Student *Student `json:"student,omitempty"`
}

type AttendanceRecord struct {
	ID        string           `json:"id"`
	CourseID  string           `json:"course_id"`
	StudentID string           `json:"student_id"`
	Date      string           `json:"date"` // YYYY-MM-DD
	Status    AttendanceStatus `json:"status"`
	Remarks   string           `json:"remarks,omitempty"`
	MarkedBy  string           `json:"marked_by"`
	CreatedAt int64            `json:"created_at"`
}

// AttendanceSummary aggregates a student's attendance in one course.
// Percentage counts present and late as attended, rounded to 2 decimals.
type AttendanceSummary struct {
	Percentage   float64        `json:"percentage"`
	StatusCounts map[string]int `json:"status_counts"`
}

type Grade struct {
	ID           string               `json:"id"`
	EnrollmentID string               `json:"enrollment_id"`
	StudentID    string               `json:"student_id"`
	CourseID     string               `json:"course_id"`
	TeacherID    string               `json:"teacher_id"`
	Assessments  []grading.Assessment `json:"assessments"`
	TotalMarks   float64              `json:"total_marks"`
	Percentage   float64              `json:"percentage"`
	LetterGrade  string               `json:"letter_grade"`
	GPA          float64              `json:"gpa"`
	AcademicYear string               `json:"academic_year,omitempty"`
	Semester     Semester             `json:"semester,omitempty"`
	IsPublished  bool                 `json:"is_published"`
	PublishedAt  *int64               `json:"published_at,omitempty"`
	CreatedAt    int64                `json:"created_at"`
}

type Attachment struct {
	FileName    string `json:"file_name"`
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
}

type Announcement struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	CreatedBy   string       `json:"created_by"`
	Audience    []string     `json:"audience"` // all|students|teachers|admin
	Priority    string       `json:"priority"` // low|medium|high
	Attachments []Attachment `json:"attachments,omitempty"`
	ExpiresAt   *int64       `json:"expires_at,omitempty"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   int64        `json:"created_at"`
}
