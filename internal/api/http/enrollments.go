package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
)

func CreateEnrollmentHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentID string `json:"student_id"`
			CourseID  string `json:"course_id"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.StudentID == "" || req.CourseID == "" {
			badRequest(w, "student_id and course_id required")
			return
		}
		e, err := store.Enroll(r.Context(), req.StudentID, req.CourseID, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "Enrollment created successfully", e)
	}
}

// ListEnrollmentsHandler scopes student callers to their own records;
// teachers and admins may filter freely.
func ListEnrollmentsHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := school.EnrollmentListOpts{
			StudentID:    q.Get("student_id"),
			CourseID:     q.Get("course_id"),
			Status:       q.Get("status"),
			AcademicYear: q.Get("academic_year"),
			Semester:     q.Get("semester"),
		}
		if rbac.RoleFromContext(r.Context()) == string(school.RoleStudent) {
			st, err := store.GetStudentByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
			if err != nil {
				writeErr(w, err)
				return
			}
			opts.StudentID = st.ID
		}
		es, err := store.ListEnrollments(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", es)
	}
}

func UpdateEnrollmentHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status     school.EnrollmentStatus `json:"status"`
			FinalGrade string                  `json:"final_grade"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		switch req.Status {
		case "", school.StatusEnrolled, school.StatusDropped, school.StatusCompleted:
		default:
			badRequest(w, "status must be enrolled, dropped or completed")
			return
		}
		e, err := store.UpdateEnrollment(r.Context(), chi.URLParam(r, "id"), req.Status, req.FinalGrade, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Enrollment updated successfully", e)
	}
}

// DropEnrollmentHandler frees the seat and marks the enrollment dropped.
func DropEnrollmentHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Drop(r.Context(), chi.URLParam(r, "id"), time.Now()); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Enrollment dropped successfully", nil)
	}
}
