package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campushub/campushub-sms/internal/auth/middleware"
	"github.com/campushub/campushub-sms/internal/rbac"
	"github.com/campushub/campushub-sms/internal/school"
)

func validAudience(aud []string) bool {
	for _, a := range aud {
		switch a {
		case "all", "students", "teachers", "admin":
		default:
			return false
		}
	}
	return true
}

func validPriority(p string) bool {
	switch p {
	case "", "low", "medium", "high":
		return true
	}
	return false
}

func CreateAnnouncementHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title       string              `json:"title"`
			Content     string              `json:"content"`
			Audience    []string            `json:"audience"`
			Priority    string              `json:"priority"`
			Attachments []school.Attachment `json:"attachments"`
			ExpiresAt   *int64              `json:"expires_at"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		switch {
		case req.Title == "" || req.Content == "":
			badRequest(w, "title and content required")
			return
		case !validAudience(req.Audience):
			badRequest(w, "audience values must be all, students, teachers or admin")
			return
		case !validPriority(req.Priority):
			badRequest(w, "priority must be low, medium or high")
			return
		}
		a, err := store.CreateAnnouncement(r.Context(), school.Announcement{
			Title:       req.Title,
			Content:     req.Content,
			CreatedBy:   authmw.SubjectFromContext(r.Context()),
			Audience:    req.Audience,
			Priority:    req.Priority,
			Attachments: req.Attachments,
			ExpiresAt:   req.ExpiresAt,
		}, time.Now())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusCreated, "Announcement created successfully", a)
	}
}

// ListAnnouncementsHandler filters by the caller's role; expired and
// deactivated announcements never show up.
func ListAnnouncementsHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Defaults and the upper bound live in the store.
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		role := school.Role(rbac.RoleFromContext(r.Context()))
		as, err := store.ListAnnouncements(r.Context(), role, r.URL.Query().Get("priority"), time.Now(), limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "", as)
	}
}

// canEditAnnouncement: the author, or an admin.
func canEditAnnouncement(r *http.Request, a school.Announcement) bool {
	if rbac.RoleFromContext(r.Context()) == string(school.RoleAdmin) {
		return true
	}
	return a.CreatedBy == authmw.SubjectFromContext(r.Context())
}

func UpdateAnnouncementHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAnnouncement(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canEditAnnouncement(r, a) {
			forbidden(w)
			return
		}
		var req struct {
			Title       *string             `json:"title"`
			Content     *string             `json:"content"`
			Audience    []string            `json:"audience"`
			Priority    *string             `json:"priority"`
			Attachments []school.Attachment `json:"attachments"`
			ExpiresAt   *int64              `json:"expires_at"`
			IsActive    *bool               `json:"is_active"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "bad json")
			return
		}
		applyStr(&a.Title, req.Title)
		applyStr(&a.Content, req.Content)
		if req.Audience != nil {
			if !validAudience(req.Audience) {
				badRequest(w, "audience values must be all, students, teachers or admin")
				return
			}
			a.Audience = req.Audience
		}
		if req.Priority != nil {
			if !validPriority(*req.Priority) {
				badRequest(w, "priority must be low, medium or high")
				return
			}
			a.Priority = *req.Priority
		}
		if req.Attachments != nil {
			a.Attachments = req.Attachments
		}
		if req.ExpiresAt != nil {
			a.ExpiresAt = req.ExpiresAt
		}
		if req.IsActive != nil {
			a.IsActive = *req.IsActive
		}
		updated, err := store.UpdateAnnouncement(r.Context(), a)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Announcement updated successfully", updated)
	}
}

func DeleteAnnouncementHandler(store school.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAnnouncement(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canEditAnnouncement(r, a) {
			forbidden(w)
			return
		}
		if err := store.DeactivateAnnouncement(r.Context(), a.ID); err != nil {
			writeErr(w, err)
			return
		}
		writeData(w, http.StatusOK, "Announcement deleted successfully", nil)
	}
}
