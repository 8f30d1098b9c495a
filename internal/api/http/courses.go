package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/grading"
)

type courseSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GET /courses
func ListCoursesHandler(reg *course.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []courseSummary{}
		for _, c := range reg.List() {
			out = append(out, courseSummary{ID: c.ID(), Name: c.DisplayName()})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

type outlineNode struct {
	Name     string        `json:"name"`
	Format   string        `json:"format,omitempty"`
	Graded   bool          `json:"graded,omitempty"`
	Children []outlineNode `json:"children,omitempty"`
}

// GET /courses/{courseID}
// Returns the static outline: chapters, sections and their gradedness. Split
// blocks list every branch's content; branch assignment is per student.
func GetCourseHandler(reg *course.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Get(chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		out := struct {
			ID       string             `json:"id"`
			Name     string             `json:"name"`
			Cutoffs  map[string]float64 `json:"grade_cutoffs"`
			Chapters []outlineNode      `json:"chapters"`
		}{ID: c.ID(), Name: c.DisplayName(), Cutoffs: c.GradeCutoffs()}
		for _, ch := range c.Chapters() {
			out.Chapters = append(out.Chapters, outlineFor(ch))
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func outlineFor(d grading.Descriptor) outlineNode {
	n := outlineNode{Name: d.DisplayName(), Format: d.Format(), Graded: d.Graded()}
	for _, child := range d.Children() {
		n.Children = append(n.Children, outlineFor(child))
	}
	return n
}
