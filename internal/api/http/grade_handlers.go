package http

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/rbac"
)

// GET /courses/{courseID}/grade
// Grades the calling student, or ?student_id= when the caller may view any
// record. ?raw=1 additionally returns every per-item score.
func GetGradeHandler(engine *grading.Engine, reg *course.Registry, rt *course.Runtime, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Get(chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		student, code := studentFor(r.Context(), db, r)
		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		keepRaw := r.URL.Query().Get("raw") == "1" &&
			checker.Has(rbac.RoleFromContext(r.Context()), "grade:view-any")

		gs, err := engine.Grade(r.Context(), student, c, rt.For(student), keepRaw)
		if err != nil {
			http.Error(w, "grade: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(gs)
	}
}

// GET /courses/{courseID}/progress
func ProgressHandler(engine *grading.Engine, reg *course.Registry, rt *course.Runtime, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Get(chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		student, code := studentFor(r.Context(), db, r)
		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		chapters, err := engine.ProgressSummary(r.Context(), student, c, rt.For(student))
		if err != nil {
			http.Error(w, "progress: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(chapters)
	}
}
