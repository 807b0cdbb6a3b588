package http

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/campushub-sms/internal/school"
)

var hhmmRe = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

func validSchedule(slots []school.ScheduleSlot) bool {
	for _, sl := range slots {
		switch sl.Day {
		case "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday":
		default:
			return false
		}
		if !hhmmRe.MatchString(sl.StartTime) || !hhmmRe.MatchString(sl.EndTime) {
			return false
		}
	}
	return true
}

func validSemester(s school.Semester) bool {
	switch s {
	case school.SemesterSpring, school.SemesterFall, school.SemesterSummer:
		return true
	}
	return false
}

func CreateCourseHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code         string                `json:"code"`
			Name         string                `json:"name"`
			Description  string                `json:"description"`
			GradeLevel   string                `json:"grade_level"`
			Department   string                `json:"department"`
			Credits      float64               `json:"credits"`
			TeacherID    string                `json:"teacher_id"`
			Schedule     []school.ScheduleSlot `json:"schedule"`
			Capacity     int                   `json:"capacity"`
			AcademicYear string                `json:"academic_year"`
			Semester     school.Semester       `json:"semester"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		switch {
		case strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "":
			badRequest(w, "code and name required")
			return
		case req.GradeLevel == "" || req.TeacherID == "" || req.AcademicYear == "":
			badRequest(w, "grade_level, teacher_id and academic_year required")
			return
		case !validSemester(req.Semester):
			badRequest(w, "semester must be Spring, Fall or Summer")
			return
		case !validSchedule(req.Schedule):
			badRequest(w, "schedule entries need a weekday and HH:MM times")
			return
		case req.Credits < 0 || req.Credits > 10 || req.Capacity < 0:
			badRequest(w, "credits must be 0-10 and capacity non-negative")
			return
		}
		if _, err := store.GetTeacher(r.Context(), req.TeacherID); err != nil {
			writeErr(w, err)
			return
		}
		c, err := store.CreateCourse(r.Context(), school.Course{
			Code:         req.Code,
			Name:         req.Name,
			Description:  req.Description,
			GradeLevel:   req.GradeLevel,
			Department:   req.Department,
			Credits:      req.Credits,
			TeacherID:    req.TeacherID,
			Schedule:     req.Schedule,
			Capacity:     req.Capacity,
			AcademicYear: req.AcademicYear,
			Semester:     req.Semester,
		}, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "Course created successfully", c)
	}
}

func ListCoursesHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := pageParams(r)
		q := r.URL.Query()
		courses, total, err := store.ListCourses(r.Context(), school.CourseListOpts{
			GradeLevel:   q.Get("grade"),
			Department:   q.Get("department"),
			TeacherID:    q.Get("teacher_id"),
			AcademicYear: q.Get("academic_year"),
			Semester:     q.Get("semester"),
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writePage(w, courses, page, limit, total)
	}
}

func GetCourseHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", c)
	}
}

func UpdateCourseHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			Name         *string               `json:"name"`
			Description  *string               `json:"description"`
			GradeLevel   *string               `json:"grade_level"`
			Department   *string               `json:"department"`
			Credits      *float64              `json:"credits"`
			TeacherID    *string               `json:"teacher_id"`
			Schedule     []school.ScheduleSlot `json:"schedule"`
			Capacity     *int                  `json:"capacity"`
			AcademicYear *string               `json:"academic_year"`
			Semester     *school.Semester      `json:"semester"`
			IsActive     *bool                 `json:"is_active"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		applyStr(&c.Name, req.Name)
		applyStr(&c.Description, req.Description)
		applyStr(&c.GradeLevel, req.GradeLevel)
		applyStr(&c.Department, req.Department)
		applyStr(&c.AcademicYear, req.AcademicYear)
		if req.Credits != nil {
			c.Credits = *req.Credits
		}
		if req.TeacherID != nil {
			c.TeacherID = *req.TeacherID
		}
		if req.Schedule != nil {
			if !validSchedule(req.Schedule) {
				badRequest(w, "schedule entries need a weekday and HH:MM times")
				return
			}
			c.Schedule = req.Schedule
		}
		if req.Capacity != nil {
			c.Capacity = *req.Capacity
		}
		if req.Semester != nil {
			if !validSemester(*req.Semester) {
				badRequest(w, "semester must be Spring, Fall or Summer")
				return
			}
			c.Semester = *req.Semester
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		updated, err := store.UpdateCourse(r.Context(), c)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Course updated successfully", updated)
	}
}

// DeleteCourseHandler deactivates the course; records referencing it stay
// intact.
func DeleteCourseHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeactivateCourse(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Course deleted successfully", nil)
	}
}
