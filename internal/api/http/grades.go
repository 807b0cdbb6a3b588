package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/grading"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
)

// validateAssessments rejects malformed marks before anything reaches the
// evaluator; the evaluator itself assumes clean input.
func validateAssessments(assessments []grading.Assessment) string {
	for _, a := range assessments {
		switch {
		case a.Name == "":
			return "assessment name required"
		case !grading.ValidType(a.Type):
			return "assessment type must be assignment, quiz, midterm, final, project or other"
		case a.MaxMarks < 0 || a.ObtainedMarks < 0:
			return "marks must be non-negative"
		case a.ObtainedMarks > a.MaxMarks:
			return "obtained marks cannot exceed max marks"
		case a.Weight != nil && (*a.Weight < 0 || *a.Weight > 100):
			return "weight must be between 0 and 100"
		}
	}
	return ""
}

func CreateGradeHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EnrollmentID string               `json:"enrollment_id"`
			TeacherID    string               `json:"teacher_id"`
			Assessments  []grading.Assessment `json:"assessments"`
			AcademicYear string               `json:"academic_year"`
			Semester     school.Semester      `json:"semester"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.EnrollmentID == "" {
			badRequest(w, "enrollment_id required")
			return
		}
		if msg := validateAssessments(req.Assessments); msg != "" {
			badRequest(w, msg)
			return
		}

		teacherID := req.TeacherID
		if rbac.RoleFromContext(r.Context()) == string(school.RoleTeacher) {
			t, err := store.GetTeacherByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
			if err != nil {
				writeErr(w, err)
				return
			}
			teacherID = t.ID
		}
		if teacherID == "" {
			badRequest(w, "teacher_id required")
			return
		}

		g, err := store.CreateGrade(r.Context(), school.Grade{
			EnrollmentID: req.EnrollmentID,
			TeacherID:    teacherID,
			Assessments:  req.Assessments,
			AcademicYear: req.AcademicYear,
			Semester:     req.Semester,
		}, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "Grade created successfully", g)
	}
}

// ListGradesHandler scopes student callers to their own published grades.
func ListGradesHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := school.GradeListOpts{
			StudentID:     q.Get("student_id"),
			CourseID:      q.Get("course_id"),
			AcademicYear:  q.Get("academic_year"),
			Semester:      q.Get("semester"),
			PublishedOnly: q.Get("is_published") == "true",
		}
		if rbac.RoleFromContext(r.Context()) == string(school.RoleStudent) {
			st, err := store.GetStudentByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
			if err != nil {
				writeErr(w, err)
				return
			}
			opts.StudentID = st.ID
			opts.PublishedOnly = true
		}
		gs, err := store.ListGrades(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", gs)
	}
}

// UpdateGradeHandler replaces the assessment list; derived fields are
// recomputed in the store.
func UpdateGradeHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Assessments []grading.Assessment `json:"assessments"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if msg := validateAssessments(req.Assessments); msg != "" {
			badRequest(w, msg)
			return
		}
		g, err := store.ReplaceAssessments(r.Context(), chi.URLParam(r, "id"), req.Assessments)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Grade updated successfully", g)
	}
}

func PublishGradeHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := store.PublishGrade(r.Context(), chi.URLParam(r, "id"), time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Grade published successfully", g)
	}
}
