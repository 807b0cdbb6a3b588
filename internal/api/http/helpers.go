// Package http holds the REST handlers. Handlers are closures over their
// dependencies; routes and permission guards live in cmd/server.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/campushub/campushub-sms/internal/school"
)

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, msg string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: msg, Data: data})
}

func writePage(w http.ResponseWriter, data interface{}, page, limit, total int) {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Pagination: &pagination{Page: page, Limit: limit, Total: total, Pages: pages},
	})
}

// writeErr maps domain rejections to status codes: business-rule failures
// are 400, missing records 404, publish-twice 409, everything else 500.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, school.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, school.ErrCourseFull),
		errors.Is(err, school.ErrDuplicateEnrollment),
		errors.Is(err, school.ErrNotEnrolled):
		status = http.StatusBadRequest
	case errors.Is(err, school.ErrAlreadyPublished):
		status = http.StatusConflict
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: msg})
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, envelope{Success: false, Message: "forbidden"})
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// pageParams reads ?page=&limit= (1-based page, default 1/10, cap 200).
func pageParams(r *http.Request) (page, limit, offset int) {
	page, limit = 1, 10
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		if v > 200 {
			v = 200
		}
		limit = v
	}
	return page, limit, (page - 1) * limit
}

func itoa(v int) string { return strconv.Itoa(v) }

func boolParam(r *http.Request, name string) *bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}
