package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/rbac"
)

// POST /courses/{courseID}/problems/{problemURLName}/submit
// Body: { "responses": { "q1": "B", ... } }
func SubmitProblemHandler(reg *course.Registry, rt *course.Runtime, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Get(chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		urlName := strings.TrimSpace(chi.URLParam(r, "problemURLName"))
		if urlName == "" {
			http.Error(w, "problemURLName required", http.StatusBadRequest)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req struct {
			Responses map[string]any `json:"responses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		student := grading.User{ID: sub, Username: lookupUsername(r.Context(), db, sub)}
		rec, err := rt.SubmitProblem(r.Context(), student, c, urlName, req.Responses)
		if err != nil {
			http.Error(w, "submit: "+err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"earned":   rec.Grade,
			"possible": rec.MaxGrade,
		})
	}
}
