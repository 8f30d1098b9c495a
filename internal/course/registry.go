package course

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencourse/grader/internal/grading"
)

// Registry holds every loaded course, keyed by ID. It also resolves
// persisted module keys back to problems for the distributions report.
type Registry struct {
	courses map[string]*Course
}

// LoadDir loads every *.yaml / *.yml course definition in dir.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	reg := &Registry{courses: map[string]*Course{}}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		c, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Name(), err)
		}
		if _, dup := reg.courses[c.ID()]; dup {
			return nil, fmt.Errorf("duplicate course id %s in %s", c.ID(), entry.Name())
		}
		reg.courses[c.ID()] = c
	}
	return reg, nil
}

func NewRegistry(courses ...*Course) *Registry {
	reg := &Registry{courses: map[string]*Course{}}
	for _, c := range courses {
		reg.courses[c.ID()] = c
	}
	return reg
}

func (r *Registry) Get(id string) (*Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %s not found", id)
	}
	return c, nil
}

func (r *Registry) List() []*Course {
	out := make([]*Course, 0, len(r.courses))
	for _, c := range r.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID() < out[b].ID() })
	return out
}

// ProblemInfo implements grading.ContentResolver: it maps a module key back
// to the problem's identity, or reports ErrItemNotFound when the content has
// been removed from the course.
func (r *Registry) ProblemInfo(_ context.Context, courseID, moduleKey string) (grading.ProblemInfo, error) {
	c, ok := r.courses[courseID]
	if !ok {
		return grading.ProblemInfo{}, grading.ErrItemNotFound
	}
	n, ok := c.block(moduleKey)
	if !ok || !n.HasScore() {
		return grading.ProblemInfo{}, grading.ErrItemNotFound
	}
	return grading.ProblemInfo{URLName: n.urlName, DisplayName: n.DisplayName()}, nil
}
