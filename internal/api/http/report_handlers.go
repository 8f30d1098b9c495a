package http

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/state"
)

// GET /courses/{courseID}/distributions
// Aggregates how every student answered every problem part. Rows whose state
// cannot be parsed, and problems since removed from the course, are skipped.
func DistributionsHandler(reg *course.Registry, store state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Get(chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		dists, err := grading.AnswerDistributions(r.Context(), c.ID(), store, reg)
		if err != nil {
			http.Error(w, "distributions: "+err.Error(), http.StatusInternalServerError)
			return
		}

		type entry struct {
			URLName     string         `json:"url_name"`
			DisplayName string         `json:"display_name"`
			PartID      string         `json:"part_id"`
			Counts      map[string]int `json:"counts"`
		}
		out := make([]entry, 0, len(dists))
		for k, counts := range dists {
			out = append(out, entry{k.URLName, k.DisplayName, k.PartID, counts})
		}
		sort.Slice(out, func(a, b int) bool {
			if out[a].URLName != out[b].URLName {
				return out[a].URLName < out[b].URLName
			}
			return out[a].PartID < out[b].PartID
		})
		_ = json.NewEncoder(w).Encode(out)
	}
}

// GET /courses/{courseID}/grades/export
// Streams one CSV row per enrolled student. A student whose grading fails
// gets an error row instead of aborting the export.
func ExportGradesHandler(engine *grading.Engine, reg *course.Registry, rt *course.Runtime, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Get(chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		students, err := studentRoster(r, db)
		if err != nil {
			http.Error(w, "roster: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", c.ID()+"-grades.csv"))
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"student_id", "username", "percent", "grade", "error"})

		engine.IterateGradesFor(r.Context(), c, students, rt, func(sg grading.StudentGrade) {
			row := []string{sg.Student.ID, sg.Student.Username, "", "", ""}
			if sg.Err != "" {
				row[4] = sg.Err
			} else if sg.Grades != nil {
				row[2] = strconv.FormatFloat(sg.Grades.Percent, 'f', -1, 64)
				row[3] = sg.Grades.Grade
			}
			_ = cw.Write(row)
		})
		cw.Flush()
	}
}

func studentRoster(r *http.Request, db *sql.DB) ([]grading.User, error) {
	rows, err := db.QueryContext(r.Context(),
		`SELECT id, username FROM users WHERE role='student' ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grading.User
	for rows.Next() {
		var u grading.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
