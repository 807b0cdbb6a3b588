package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/campushub-sms/internal/school"
)

func CreateTeacherHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID          string   `json:"user_id"`
			Department      string   `json:"department"`
			Qualification   string   `json:"qualification"`
			Specialization  string   `json:"specialization"`
			ExperienceYears int      `json:"experience_years"`
			Subjects        []string `json:"subjects"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.UserID == "" || req.Department == "" {
			badRequest(w, "user_id and department required")
			return
		}
		t, err := store.CreateTeacher(r.Context(), school.Teacher{
			UserID:          req.UserID,
			Department:      req.Department,
			Qualification:   req.Qualification,
			Specialization:  req.Specialization,
			ExperienceYears: req.ExperienceYears,
			Subjects:        req.Subjects,
		}, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "Teacher created successfully", t)
	}
}

func ListTeachersHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := pageParams(r)
		teachers, total, err := store.ListTeachers(r.Context(), school.TeacherListOpts{
			Department: r.URL.Query().Get("department"),
			Active:     boolParam(r, "is_active"),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writePage(w, teachers, page, limit, total)
	}
}

func GetTeacherHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetTeacher(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", t)
	}
}

func UpdateTeacherHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetTeacher(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			Department      *string  `json:"department"`
			Qualification   *string  `json:"qualification"`
			Specialization  *string  `json:"specialization"`
			ExperienceYears *int     `json:"experience_years"`
			Subjects        []string `json:"subjects"`
			IsActive        *bool    `json:"is_active"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		applyStr(&t.Department, req.Department)
		applyStr(&t.Qualification, req.Qualification)
		applyStr(&t.Specialization, req.Specialization)
		if req.ExperienceYears != nil {
			t.ExperienceYears = *req.ExperienceYears
		}
		if req.Subjects != nil {
			t.Subjects = req.Subjects
		}
		if req.IsActive != nil {
			t.IsActive = *req.IsActive
		}
		updated, err := store.UpdateTeacher(r.Context(), t)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Teacher updated successfully", updated)
	}
}

func TeacherCoursesHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := store.GetTeacher(r.Context(), id); err != nil {
			writeErr(w, err)
			return
		}
		cs, err := store.ListCoursesByTeacher(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", cs)
	}
}
