package course_test

import (
	"context"
	"strings"
	"testing"

	"github.com/opencourse/grader/internal/course"
	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/problem"
	"github.com/opencourse/grader/internal/state"
)

func newRuntime() (*course.Runtime, *state.MemoryStore) {
	store := state.NewMemoryStore()
	return &course.Runtime{States: store, Problems: problem.NewGrader()}, store
}

func TestSubmitProblemRejectsAnonymous(t *testing.T) {
	c := loadGradedCourse(t)
	rt, _ := newRuntime()
	_, err := rt.SubmitProblem(context.Background(), grading.User{Anonymous: true}, c,
		"h1p1", map[string]any{"q1": "B"})
	if err == nil {
		t.Fatal("anonymous submission must be rejected")
	}
}

func TestSubmitProblemUnknownProblem(t *testing.T) {
	c := loadGradedCourse(t)
	rt, _ := newRuntime()
	_, err := rt.SubmitProblem(context.Background(), grading.User{ID: "alice"}, c,
		"ghost", map[string]any{"q1": "B"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestSubmitProblemRecordsNaturalScoreAndAttempts(t *testing.T) {
	ctx := context.Background()
	c := loadGradedCourse(t)
	rt, store := newRuntime()
	alice := grading.User{ID: "alice", Username: "alice"}

	rec, err := rt.SubmitProblem(ctx, alice, c, "h2p1", map[string]any{"q1": "A", "q2": "D"})
	if err != nil {
		t.Fatalf("SubmitProblem: %v", err)
	}
	// The stored grade is the natural score; the weight override is applied
	// at grading time, not here.
	if *rec.Grade != 2 || *rec.MaxGrade != 2 {
		t.Fatalf("stored grade = %v/%v, want 2/2", *rec.Grade, *rec.MaxGrade)
	}
	if !strings.Contains(rec.State, `"attempts":1`) {
		t.Fatalf("state = %s, want attempts 1", rec.State)
	}

	rec, err = rt.SubmitProblem(ctx, alice, c, "h2p1", map[string]any{"q1": "A"})
	if err != nil {
		t.Fatalf("SubmitProblem: %v", err)
	}
	if *rec.Grade != 1 {
		t.Fatalf("resubmitted grade = %v, want 1", *rec.Grade)
	}
	if !strings.Contains(rec.State, `"attempts":2`) {
		t.Fatalf("state = %s, want attempts 2", rec.State)
	}

	ms, err := store.LookupState(ctx, "alice", "edu-101", "block://edu-101/problem/h2p1")
	if err != nil || ms == nil {
		t.Fatalf("LookupState: %+v, %v", ms, err)
	}
	if !strings.Contains(ms.State, "student_answers") {
		t.Fatalf("persisted state = %s", ms.State)
	}
}

// TestGradedCourseScenario walks a student through the whole course and
// checks the course percent after every submission.
func TestGradedCourseScenario(t *testing.T) {
	ctx := context.Background()
	c := loadGradedCourse(t)
	rt, store := newRuntime()
	engine := &grading.Engine{States: store}
	alice := grading.User{ID: "alice", Username: "alice"}

	submit := func(urlName string, responses map[string]any) {
		t.Helper()
		if _, err := rt.SubmitProblem(ctx, alice, c, urlName, responses); err != nil {
			t.Fatalf("submit %s: %v", urlName, err)
		}
	}
	checkGrade := func(wantPercent float64, wantLetter string) {
		t.Helper()
		gs, err := engine.Grade(ctx, alice, c, rt.For(alice), false)
		if err != nil {
			t.Fatalf("Grade: %v", err)
		}
		if gs.Percent != wantPercent {
			t.Fatalf("percent = %v, want %v", gs.Percent, wantPercent)
		}
		if gs.Grade != wantLetter {
			t.Fatalf("letter = %q, want %q", gs.Grade, wantLetter)
		}
	}

	// Nothing submitted yet.
	checkGrade(0, "")

	// Half of homework 1 problem 1.
	submit("h1p1", map[string]any{"q1": "B"})
	checkGrade(0.06, "")

	// All of it.
	submit("h1p1", map[string]any{"q1": "B", "q2": "C"})
	checkGrade(0.13, "")

	// The split problem. Submitting both branches is harmless: only the
	// branch assigned to this student counts toward the grade.
	submit("h1p2a", map[string]any{"q1": "true"})
	submit("h1p2b", map[string]any{"q1": "true"})
	checkGrade(0.25, "")

	// A wrong answer on homework 2 touches the section without earning
	// anything, and the grade must not move.
	submit("h2p1", map[string]any{"q1": "X", "q2": "X"})
	checkGrade(0.25, "")

	// Full credit on the weighted problem: 2 natural points scaled to 4.
	submit("h2p1", map[string]any{"q1": "A", "q2": "D"})
	checkGrade(0.42, "")

	// Grading is idempotent; a second pass sees the same percent.
	checkGrade(0.42, "")

	submit("h2p2", map[string]any{"q1": "Paris"})
	checkGrade(0.5, "C")

	// Acing the final brings the course to 100%.
	submit("f1p1", map[string]any{"q1": "B", "q2": "42"})
	gs, err := engine.Grade(ctx, alice, c, rt.For(alice), false)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if gs.Percent != 1.0 || gs.Grade != "A" {
		t.Fatalf("final grade = %v %q, want 1.0 A", gs.Percent, gs.Grade)
	}
	if len(gs.GradeBreakdown) != 2 {
		t.Fatalf("grade breakdown = %+v, want one entry per component", gs.GradeBreakdown)
	}

	// The homework rows carry the drop annotation from the policy.
	var dropMarks int
	for _, row := range gs.SectionBreakdown {
		if row.Mark != "" {
			dropMarks++
		}
	}
	if dropMarks != 1 {
		t.Fatalf("drop marks = %d, want 1", dropMarks)
	}
}

func TestSplitBranchIsStablePerStudent(t *testing.T) {
	ctx := context.Background()
	c := loadGradedCourse(t)
	rt, store := newRuntime()
	engine := &grading.Engine{States: store}
	student := grading.User{ID: "student-42", Username: "student-42"}

	if _, err := rt.SubmitProblem(ctx, student, c, "h1p2a", map[string]any{"q1": "true"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := rt.SubmitProblem(ctx, student, c, "h1p2b", map[string]any{"q1": "false"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := engine.Grade(ctx, student, c, rt.For(student), false)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Grade(ctx, student, c, rt.For(student), false)
		if err != nil {
			t.Fatalf("Grade: %v", err)
		}
		if again.Percent != first.Percent {
			t.Fatalf("branch assignment drifted: %v then %v", first.Percent, again.Percent)
		}
	}
}

func TestProgressSummaryOverLoadedCourse(t *testing.T) {
	ctx := context.Background()
	c := loadGradedCourse(t)
	rt, store := newRuntime()
	engine := &grading.Engine{States: store}
	alice := grading.User{ID: "alice", Username: "alice"}

	if _, err := rt.SubmitProblem(ctx, alice, c, "h1p1", map[string]any{"q1": "B", "q2": "C"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	chapters, err := engine.ProgressSummary(ctx, alice, c, rt.For(alice))
	if err != nil {
		t.Fatalf("ProgressSummary: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(chapters))
	}

	hw1 := chapters[0].Sections[0]
	if hw1.DisplayName != "Homework 1" || !hw1.Graded {
		t.Fatalf("section = %+v", hw1)
	}
	// H1P1 plus exactly one split branch.
	if len(hw1.Scores) != 2 {
		t.Fatalf("scores = %+v, want 2 items", hw1.Scores)
	}
	if hw1.Scores[0].Section != "H1 Problem 1" || hw1.Scores[0].Earned != 2 {
		t.Fatalf("first score = %+v", hw1.Scores[0])
	}
	if hw1.SectionTotal.Possible != 4 {
		t.Fatalf("section total = %+v, want possible 4", hw1.SectionTotal)
	}

	// Ungraded sections still show up.
	notes := chapters[1].Sections[1]
	if notes.DisplayName != "Course Notes" || notes.Graded {
		t.Fatalf("notes = %+v", notes)
	}
}

func TestAnswerDistributionsOverLoadedCourse(t *testing.T) {
	ctx := context.Background()
	c := loadGradedCourse(t)
	reg := course.NewRegistry(c)
	rt, store := newRuntime()

	for _, student := range []string{"alice", "bob", "carol"} {
		answer := "B"
		if student == "carol" {
			answer = "A"
		}
		u := grading.User{ID: student, Username: student}
		if _, err := rt.SubmitProblem(ctx, u, c, "h1p1", map[string]any{"q1": answer}); err != nil {
			t.Fatalf("submit for %s: %v", student, err)
		}
	}

	dists, err := grading.AnswerDistributions(ctx, "edu-101", store, reg)
	if err != nil {
		t.Fatalf("AnswerDistributions: %v", err)
	}
	key := grading.DistributionKey{URLName: "h1p1", DisplayName: "H1 Problem 1", PartID: "q1"}
	counts := dists[key]
	if counts["B"] != 2 || counts["A"] != 1 {
		t.Fatalf("counts = %+v", counts)
	}
}
