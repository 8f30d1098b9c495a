package grading_test

import (
	"context"
	"testing"

	"github.com/opencourse/grader/internal/grading"
)

type sliceScanner struct{ rows []grading.SubmittedRow }

func (s sliceScanner) SubmittedProblems(_ context.Context, _ string, fn func(grading.SubmittedRow) error) error {
	for _, row := range s.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

type mapResolver struct{ problems map[string]grading.ProblemInfo }

func (r mapResolver) ProblemInfo(_ context.Context, _, moduleKey string) (grading.ProblemInfo, error) {
	info, ok := r.problems[moduleKey]
	if !ok {
		return grading.ProblemInfo{}, grading.ErrItemNotFound
	}
	return info, nil
}

func TestAnswerDistributions(t *testing.T) {
	scanner := sliceScanner{rows: []grading.SubmittedRow{
		{ID: "r1", StudentID: "alice", ModuleKey: "p1", State: `{"student_answers":{"q1":"B"}}`},
		{ID: "r2", StudentID: "bob", ModuleKey: "p1", State: `{"student_answers":{"q1":"B"}}`},
		{ID: "r3", StudentID: "carol", ModuleKey: "p1", State: `{"student_answers":{"q1":"C"}}`},
		{ID: "r4", StudentID: "dave", ModuleKey: "p1", State: `{"student_answers":{"q1":["a","b"]}}`},
	}}
	resolver := mapResolver{problems: map[string]grading.ProblemInfo{
		"p1": {URLName: "p1", DisplayName: "Problem 1"},
	}}

	dists, err := grading.AnswerDistributions(context.Background(), "course-1", scanner, resolver)
	if err != nil {
		t.Fatalf("AnswerDistributions: %v", err)
	}
	key := grading.DistributionKey{URLName: "p1", DisplayName: "Problem 1", PartID: "q1"}
	counts := dists[key]
	if counts == nil {
		t.Fatalf("no counts for %+v; got %+v", key, dists)
	}
	if counts["B"] != 2 || counts["C"] != 1 {
		t.Fatalf("counts = %+v", counts)
	}
	// Non-string answers are tallied by their JSON form.
	if counts[`["a","b"]`] != 1 {
		t.Fatalf("list answer not counted: %+v", counts)
	}
}

func TestAnswerDistributionsSkipsBadState(t *testing.T) {
	scanner := sliceScanner{rows: []grading.SubmittedRow{
		{ID: "r1", StudentID: "alice", ModuleKey: "p1", State: `{not json`},
		{ID: "r2", StudentID: "bob", ModuleKey: "p1", State: `{"student_answers":{"q1":"A"}}`},
	}}
	resolver := mapResolver{problems: map[string]grading.ProblemInfo{
		"p1": {URLName: "p1", DisplayName: "Problem 1"},
	}}

	dists, err := grading.AnswerDistributions(context.Background(), "course-1", scanner, resolver)
	if err != nil {
		t.Fatalf("AnswerDistributions: %v", err)
	}
	key := grading.DistributionKey{URLName: "p1", DisplayName: "Problem 1", PartID: "q1"}
	if dists[key]["A"] != 1 {
		t.Fatalf("parseable row lost alongside the bad one: %+v", dists)
	}
}

func TestAnswerDistributionsOmitsDeletedProblems(t *testing.T) {
	scanner := sliceScanner{rows: []grading.SubmittedRow{
		{ID: "r1", StudentID: "alice", ModuleKey: "deleted", State: `{"student_answers":{"q1":"A"}}`},
		{ID: "r2", StudentID: "alice", ModuleKey: "p1", State: `{"student_answers":{"q1":"A"}}`},
	}}
	resolver := mapResolver{problems: map[string]grading.ProblemInfo{
		"p1": {URLName: "p1", DisplayName: "Problem 1"},
	}}

	dists, err := grading.AnswerDistributions(context.Background(), "course-1", scanner, resolver)
	if err != nil {
		t.Fatalf("AnswerDistributions: %v", err)
	}
	if len(dists) != 1 {
		t.Fatalf("deleted problem leaked into the report: %+v", dists)
	}
}
