package course_test

import (
	"context"
	"strings"
	"testing"

	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/grading"
)

func loadGradedCourse(t *testing.T) *course.Course {
	t.Helper()
	c, err := course.Load("testdata/graded_course.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoadGradedCourse(t *testing.T) {
	c := loadGradedCourse(t)

	if c.ID() != "edu-101" || c.DisplayName() != "Introduction to Everything" {
		t.Fatalf("identity = %s / %s", c.ID(), c.DisplayName())
	}
	if len(c.Chapters()) != 2 {
		t.Fatalf("chapters = %d, want 2", len(c.Chapters()))
	}
	if c.GradeCutoffs()["C"] != 0.5 {
		t.Fatalf("cutoffs = %+v", c.GradeCutoffs())
	}

	graded := c.GradedSections()
	if len(graded["Homework"]) != 2 {
		t.Fatalf("homework sections = %d, want 2", len(graded["Homework"]))
	}
	if len(graded["Final Exam"]) != 1 {
		t.Fatalf("final sections = %d, want 1", len(graded["Final Exam"]))
	}

	// Leaves of homework 1 must cover both split branches.
	hw1 := graded["Homework"][0]
	var locs []string
	for _, leaf := range hw1.Leaves {
		locs = append(locs, leaf.Location())
	}
	joined := strings.Join(locs, ",")
	if !strings.Contains(joined, "h1p2a") || !strings.Contains(joined, "h1p2b") {
		t.Fatalf("homework 1 leaves missing split branches: %v", locs)
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	cases := []struct {
		name, yaml, wantErr string
	}{
		{
			"missing id",
			`name: X
grading_policy:
  graders:
    - {type: Homework, weight: 1}`,
			"no id",
		},
		{
			"empty policy",
			`id: x
name: X`,
			"no assignment entries",
		},
		{
			"branches on non-split block",
			`id: x
name: X
grading_policy:
  graders:
    - {type: Homework, weight: 1}
chapters:
  - url_name: ch1
    name: C
    sections:
      - url_name: s1
        name: S
        blocks:
          - url_name: b1
            type: html
            branches:
              a:
                - {url_name: p1, type: problem}`,
			"only split_test blocks",
		},
		{
			"duplicate block",
			`id: x
name: X
grading_policy:
  graders:
    - {type: Homework, weight: 1}
chapters:
  - url_name: ch1
    name: C
    sections:
      - url_name: s1
        name: S
        blocks:
          - {url_name: p1, type: problem}
          - {url_name: p1, type: problem}`,
			"duplicate block",
		},
	}
	for _, tc := range cases {
		_, err := course.Parse([]byte(tc.yaml))
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: err = %v, want containing %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestRegistry(t *testing.T) {
	c := loadGradedCourse(t)
	reg := course.NewRegistry(c)

	if _, err := reg.Get("edu-101"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := reg.Get("nope"); err == nil {
		t.Fatal("unknown course must error")
	}
	if got := len(reg.List()); got != 1 {
		t.Fatalf("List = %d, want 1", got)
	}
}

func TestRegistryProblemInfo(t *testing.T) {
	c := loadGradedCourse(t)
	reg := course.NewRegistry(c)
	ctx := context.Background()

	info, err := reg.ProblemInfo(ctx, "edu-101", "block://edu-101/problem/h1p1")
	if err != nil {
		t.Fatalf("ProblemInfo: %v", err)
	}
	if info.URLName != "h1p1" || info.DisplayName != "H1 Problem 1" {
		t.Fatalf("info = %+v", info)
	}

	// Unknown keys and non-problem blocks resolve to the deleted-item error.
	for _, key := range []string{
		"block://edu-101/problem/ghost",
		"block://edu-101/html/syllabus",
	} {
		if _, err := reg.ProblemInfo(ctx, "edu-101", key); err != grading.ErrItemNotFound {
			t.Fatalf("ProblemInfo(%s) err = %v, want ErrItemNotFound", key, err)
		}
	}
	if _, err := reg.ProblemInfo(ctx, "ghost-course", "anything"); err != grading.ErrItemNotFound {
		t.Fatalf("unknown course err = %v, want ErrItemNotFound", err)
	}
}
