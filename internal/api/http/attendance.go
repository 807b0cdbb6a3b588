package http

import (
	"net/http"
	"time"

	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
)

func validAttendanceStatus(s school.AttendanceStatus) bool {
	switch s {
	case school.AttendancePresent, school.AttendanceAbsent, school.AttendanceLate, school.AttendanceExcused:
		return true
	}
	return false
}

func validDay(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// MarkAttendanceHandler records one day's sheet for a course. Teachers may
// only mark their own courses; admins any.
func MarkAttendanceHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CourseID string                   `json:"course_id"`
			Date     string                   `json:"date"` // YYYY-MM-DD
			Records  []school.AttendanceEntry `json:"records"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.CourseID == "" || !validDay(req.Date) || len(req.Records) == 0 {
			badRequest(w, "course_id, date (YYYY-MM-DD) and records required")
			return
		}
		for _, rec := range req.Records {
			if rec.StudentID == "" || !validAttendanceStatus(rec.Status) {
				badRequest(w, "each record needs student_id and a valid status")
				return
			}
		}

		course, err := store.GetCourse(r.Context(), req.CourseID)
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		markedBy := course.TeacherID
		if role == string(school.RoleTeacher) {
			t, err := store.GetTeacherByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
			if err != nil || t.ID != course.TeacherID {
				forbidden(w)
				return
			}
			markedBy = t.ID
		}

		recs, err := store.MarkAttendance(r.Context(), req.CourseID, req.Date, markedBy, req.Records, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Attendance marked successfully", recs)
	}
}

func ListAttendanceHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := school.AttendanceListOpts{
			CourseID:  q.Get("course_id"),
			StudentID: q.Get("student_id"),
			Date:      q.Get("date"),
			From:      q.Get("start_date"),
			To:        q.Get("end_date"),
		}
		if rbac.RoleFromContext(r.Context()) == string(school.RoleStudent) {
			st, err := store.GetStudentByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
			if err != nil {
				writeErr(w, err)
				return
			}
			opts.StudentID = st.ID
		}
		recs, err := store.ListAttendance(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", recs)
	}
}

func AttendanceSummaryHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		studentID, courseID := q.Get("student_id"), q.Get("course_id")
		if rbac.RoleFromContext(r.Context()) == string(school.RoleStudent) {
			st, err := store.GetStudentByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
			if err != nil {
				writeErr(w, err)
				return
			}
			studentID = st.ID
		}
		if studentID == "" || courseID == "" {
			badRequest(w, "student_id and course_id required")
			return
		}
		sum, err := store.AttendanceSummary(r.Context(), studentID, courseID, q.Get("start_date"), q.Get("end_date"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", sum)
	}
}
