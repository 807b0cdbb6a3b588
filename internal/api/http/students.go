package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/school"
)

// OwnStudent reports whether the caller is the student named in the route.
// Paired with rbac.RequireOwnerOr on the student read endpoints so the
// student themself gets through without the staff-wide view permission.
func OwnStudent(store school.Store) func(*http.Request) bool {
	return func(r *http.Request) bool {
		st, err := store.GetStudent(r.Context(), chi.URLParam(r, "id"))
		return err == nil && st.UserID == authmw.SubjectFromContext(r.Context())
	}
}

func CreateStudentHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID      string `json:"user_id"`
			GradeLevel  string `json:"grade_level"`
			Section     string `json:"section"`
			ParentName  string `json:"parent_name"`
			ParentEmail string `json:"parent_email"`
			ParentPhone string `json:"parent_phone"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.UserID == "" || req.GradeLevel == "" {
			badRequest(w, "user_id and grade_level required")
			return
		}
		st, err := store.CreateStudent(r.Context(), school.Student{
			UserID:      req.UserID,
			GradeLevel:  req.GradeLevel,
			Section:     req.Section,
			ParentName:  req.ParentName,
			ParentEmail: req.ParentEmail,
			ParentPhone: req.ParentPhone,
		}, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "Student created successfully", st)
	}
}

func ListStudentsHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := pageParams(r)
		q := r.URL.Query()
		students, total, err := store.ListStudents(r.Context(), school.StudentListOpts{
			GradeLevel: q.Get("grade"),
			Section:    q.Get("section"),
			Active:     boolParam(r, "is_active"),
			Search:     q.Get("search"),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writePage(w, students, page, limit, total)
	}
}

// GetStudentHandler serves admins, teachers, and the student themself;
// ownership is enforced by the route's RequireOwnerOr guard.
func GetStudentHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.GetStudent(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", st)
	}
}

func UpdateStudentHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, err := store.GetStudent(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			GradeLevel  *string `json:"grade_level"`
			Section     *string `json:"section"`
			ParentName  *string `json:"parent_name"`
			ParentEmail *string `json:"parent_email"`
			ParentPhone *string `json:"parent_phone"`
			IsActive    *bool   `json:"is_active"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		applyStr(&st.GradeLevel, req.GradeLevel)
		applyStr(&st.Section, req.Section)
		applyStr(&st.ParentName, req.ParentName)
		applyStr(&st.ParentEmail, req.ParentEmail)
		applyStr(&st.ParentPhone, req.ParentPhone)
		if req.IsActive != nil {
			st.IsActive = *req.IsActive
		}
		updated, err := store.UpdateStudent(r.Context(), st)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Student updated successfully", updated)
	}
}

// StudentCoursesHandler lists the student's active enrollments with their
// courses attached. Ownership is enforced by the route guard.
func StudentCoursesHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := store.GetStudent(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		es, err := store.ListStudentCourses(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", es)
	}
}

func applyStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
