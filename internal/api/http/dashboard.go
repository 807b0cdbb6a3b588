package http

import (
	"net/http"
	"time"

	"github.com/campushub/campushub-sms/internal/audit"
	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
)

// DashboardHandler shapes the payload to the caller's role: admins get
// school-wide counts plus the recent event feed, teachers their course
// load, students their enrollments and published grades.
func DashboardHandler(store school.Store, events *audit.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now()
		anns, err := store.ListAnnouncements(ctx, school.Role(rbac.RoleFromContext(ctx)), "", now, 5)
		if err != nil {
			writeErr(w, err)
			return
		}
		out := map[string]interface{}{"announcements": anns}

		switch rbac.RoleFromContext(ctx) {
		case string(school.RoleAdmin):
			students, teachers, courses, err := store.Counts(ctx)
			if err != nil {
				writeErr(w, err)
				return
			}
			recent, err := events.Recent(ctx, 20)
			if err != nil {
				writeErr(w, err)
				return
			}
			out["counts"] = map[string]int{
				"students": students,
				"teachers": teachers,
				"courses":  courses,
			}
			out["recent_events"] = recent

		case string(school.RoleTeacher):
			t, err := store.GetTeacherByUserID(ctx, authmw.SubjectFromContext(ctx))
			if err != nil {
				writeErr(w, err)
				return
			}
			cs, err := store.ListCoursesByTeacher(ctx, t.ID)
			if err != nil {
				writeErr(w, err)
				return
			}
			out["teacher"] = t
			out["courses"] = cs

		case string(school.RoleStudent):
			st, err := store.GetStudentByUserID(ctx, authmw.SubjectFromContext(ctx))
			if err != nil {
				writeErr(w, err)
				return
			}
			es, err := store.ListStudentCourses(ctx, st.ID)
			if err != nil {
				writeErr(w, err)
				return
			}
			gs, err := store.ListGrades(ctx, school.GradeListOpts{StudentID: st.ID, PublishedOnly: true})
			if err != nil {
				writeErr(w, err)
				return
			}
			out["student"] = st
			out["courses"] = es
			out["grades"] = gs
		}

		writeData(w, http.StatusOK, "", out)
	}
}
