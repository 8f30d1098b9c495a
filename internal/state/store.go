// Package state persists per-student module state: one row per
// (student, course, module) holding the recorded grade, the point total at
// grading time, and the free-form submission state JSON.
package state

import (
	"context"

	"github.com/opencourse/grader/internal/grading"
)

// Record is one persisted state row. Grade and MaxGrade stay nil until the
// module has been graded at least once; State carries submission data that
// the grading engine treats as opaque.
type Record struct {
	ID         string   `json:"id"`
	StudentID  string   `json:"student_id"`
	CourseID   string   `json:"course_id"`
	ModuleKey  string   `json:"module_key"`
	ModuleType string   `json:"module_type"` // "problem" for scoreable leaves
	Grade      *float64 `json:"grade,omitempty"`
	MaxGrade   *float64 `json:"max_grade,omitempty"`
	State      string   `json:"state"`
	CreatedAt  int64    `json:"created_at"`
	ModifiedAt int64    `json:"modified_at"`
}

// Store is the full state interface: the read side consumed by the grading
// engine plus the write side used by the submission path.
type Store interface {
	grading.StateReader
	grading.SubmissionScanner

	// Upsert inserts or updates the row keyed by (student, course, module).
	Upsert(ctx context.Context, rec Record) (Record, error)

	// View runs fn inside one read transaction when the backend supports
	// it, so a grading pass sees a consistent snapshot.
	View(ctx context.Context, fn func(grading.StateReader) error) error
}
