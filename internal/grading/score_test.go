package grading_test

import (
	"testing"

	"github.com/opencourse/grader/internal/grading"
)

func TestScorePercent(t *testing.T) {
	if got := (grading.Score{Earned: 3, Possible: 4}).Percent(); got != 0.75 {
		t.Fatalf("Percent = %v, want 0.75", got)
	}
	if got := (grading.Score{Earned: 3, Possible: 0}).Percent(); got != 0 {
		t.Fatalf("zero-possible Percent = %v, want 0", got)
	}
}

func TestAggregateScores(t *testing.T) {
	all, graded := grading.AggregateScores([]grading.Score{
		{Earned: 2, Possible: 4, Graded: true},
		{Earned: 1, Possible: 1, Graded: false},
		{Earned: 0, Possible: 5, Graded: true},
	}, "Week 1")

	if all.Earned != 3 || all.Possible != 10 || all.Graded {
		t.Fatalf("all total = %+v", all)
	}
	if graded.Earned != 2 || graded.Possible != 9 || !graded.Graded {
		t.Fatalf("graded total = %+v", graded)
	}
	if all.Section != "Week 1" || graded.Section != "Week 1" {
		t.Fatalf("section names not applied: %q, %q", all.Section, graded.Section)
	}
}

func TestAggregateScoresEmpty(t *testing.T) {
	all, graded := grading.AggregateScores(nil, "Empty")
	if all.Possible != 0 || graded.Possible != 0 {
		t.Fatalf("empty aggregate = %+v / %+v, want zero totals", all, graded)
	}
}
