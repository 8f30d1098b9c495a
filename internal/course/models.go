// Package course loads course definitions and exposes them as the content
// tree the grading engine walks. Definitions are YAML documents: chapters
// contain sections, sections contain blocks, and problem blocks carry their
// questions and answer keys.
package course

import (
	"time"

	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/problem"
)

type CourseDef struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Chapters []ChapterDef `yaml:"chapters"`
	Policy   PolicyDef    `yaml:"grading_policy"`
}

// PolicyDef is the course grading policy document: assignment categories
// with their weights plus letter-grade cutoffs.
type PolicyDef struct {
	Graders []grading.PolicyAssignment `yaml:"graders"`
	Cutoffs map[string]float64         `yaml:"grade_cutoffs"`
}

type ChapterDef struct {
	URLName  string       `yaml:"url_name"`
	Name     string       `yaml:"name"`
	Sections []SectionDef `yaml:"sections"`
}

type SectionDef struct {
	URLName string     `yaml:"url_name"`
	Name    string     `yaml:"name"`
	Format  string     `yaml:"format,omitempty"` // grading category, e.g. "Homework"
	Graded  bool       `yaml:"graded,omitempty"`
	Due     *time.Time `yaml:"due,omitempty"`
	Blocks  []BlockDef `yaml:"blocks,omitempty"`
}

// BlockDef is one content block. Type "problem" blocks are scoreable;
// "split_test" blocks pick one branch per student; anything else is inert
// structure (html, video, containers).
type BlockDef struct {
	URLName string   `yaml:"url_name"`
	Name    string   `yaml:"name,omitempty"`
	Type    string   `yaml:"type"`
	Weight  *float64 `yaml:"weight,omitempty"`
	// AlwaysRecalculate marks problems whose state changes outside the
	// submission flow; the engine rescores them on every pass.
	AlwaysRecalculate bool                  `yaml:"always_recalculate,omitempty"`
	Questions         []problem.Question    `yaml:"questions,omitempty"`
	Branches          map[string][]BlockDef `yaml:"branches,omitempty"`
	Blocks            []BlockDef            `yaml:"blocks,omitempty"`
}
