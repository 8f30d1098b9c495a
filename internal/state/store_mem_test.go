package state_test

import (
	"context"
	"strings"
	"testing"

	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/state"
)

func fptr(v float64) *float64 { return &v }

func TestMemoryStoreUpsertAndLookup(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()

	rec, err := store.Upsert(ctx, state.Record{
		StudentID: "alice",
		CourseID:  "course-1",
		ModuleKey: "p1",
		Grade:     fptr(2),
		MaxGrade:  fptr(4),
		State:     `{"student_answers":{"q1":"B"}}`,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt == 0 {
		t.Fatalf("record not initialized: %+v", rec)
	}
	if rec.ModuleType != "problem" {
		t.Fatalf("module type = %q, want default problem", rec.ModuleType)
	}

	ms, err := store.LookupState(ctx, "alice", "course-1", "p1")
	if err != nil {
		t.Fatalf("LookupState: %v", err)
	}
	if ms == nil || *ms.Grade != 2 || *ms.MaxGrade != 4 {
		t.Fatalf("state = %+v", ms)
	}

	// Absent rows are nil, not an error.
	ms, err = store.LookupState(ctx, "alice", "course-1", "missing")
	if err != nil || ms != nil {
		t.Fatalf("missing row = %+v, %v; want nil, nil", ms, err)
	}
}

func TestMemoryStoreUpsertPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()

	first, _ := store.Upsert(ctx, state.Record{
		StudentID: "alice", CourseID: "course-1", ModuleKey: "p1", Grade: fptr(1), MaxGrade: fptr(2),
	})
	second, err := store.Upsert(ctx, state.Record{
		StudentID: "alice", CourseID: "course-1", ModuleKey: "p1", Grade: fptr(2), MaxGrade: fptr(2),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("resubmission changed the row id: %s -> %s", first.ID, second.ID)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Fatal("resubmission changed created_at")
	}
	if *second.Grade != 2 {
		t.Fatalf("grade not updated: %v", *second.Grade)
	}
}

func TestMemoryStoreHasStateFor(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	_, _ = store.Upsert(ctx, state.Record{StudentID: "alice", CourseID: "course-1", ModuleKey: "p2"})

	ok, err := store.HasStateFor(ctx, "alice", "course-1", []string{"p1", "p2", "p3"})
	if err != nil || !ok {
		t.Fatalf("HasStateFor = %v, %v; want true", ok, err)
	}
	ok, err = store.HasStateFor(ctx, "bob", "course-1", []string{"p1", "p2"})
	if err != nil || ok {
		t.Fatalf("HasStateFor for untouched student = %v, %v; want false", ok, err)
	}
}

func TestMemoryStoreSubmittedProblems(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	_, _ = store.Upsert(ctx, state.Record{
		StudentID: "alice", CourseID: "course-1", ModuleKey: "p1",
		Grade: fptr(1), MaxGrade: fptr(2), State: `{"student_answers":{"q1":"A"}}`,
	})
	// Ungraded rows and other courses stay out of the scan.
	_, _ = store.Upsert(ctx, state.Record{StudentID: "alice", CourseID: "course-1", ModuleKey: "p2"})
	_, _ = store.Upsert(ctx, state.Record{
		StudentID: "alice", CourseID: "course-2", ModuleKey: "p1", Grade: fptr(1), MaxGrade: fptr(1),
	})

	var rows []grading.SubmittedRow
	err := store.SubmittedProblems(ctx, "course-1", func(r grading.SubmittedRow) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		t.Fatalf("SubmittedProblems: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1: %+v", len(rows), rows)
	}
	if rows[0].ModuleKey != "p1" || !strings.Contains(rows[0].State, "student_answers") {
		t.Fatalf("row = %+v", rows[0])
	}
}
