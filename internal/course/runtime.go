package course

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/problem"
	"github.com/opencourse/grader/internal/state"
)

// Runtime instantiates live, per-student modules over loaded courses. It is
// the grading.FactoryProvider the engine and the handlers share.
type Runtime struct {
	States   state.Store
	Problems problem.Grader
}

func (rt *Runtime) For(student grading.User) grading.ModuleFactory {
	return &studentFactory{rt: rt, student: student}
}

type studentFactory struct {
	rt      *Runtime
	student grading.User
}

func (f *studentFactory) Module(ctx context.Context, d grading.Descriptor) grading.Module {
	n, ok := d.(*node)
	if !ok {
		return nil
	}
	switch n.typ {
	case "problem":
		return &problemModule{f: f, n: n}
	case "split_test":
		return &splitModule{n: n, branch: branchFor(f.student.ID, n)}
	default:
		return &containerModule{n: n}
	}
}

// problemModule scores one problem for one student by replaying the
// persisted responses against the answer key.
type problemModule struct {
	f *studentFactory
	n *node
}

func (m *problemModule) MaxScore() (float64, bool) {
	// A problem without questions is an authoring error; it cannot report
	// a point total.
	if len(m.n.questions) == 0 {
		return 0, false
	}
	var total float64
	for _, q := range m.n.questions {
		total += q.Points
	}
	return total, true
}

func (m *problemModule) Score(ctx context.Context) (grading.Points, bool) {
	possible, ok := m.MaxScore()
	if !ok {
		return grading.Points{}, false
	}

	rec, err := m.f.rt.States.LookupState(ctx, m.f.student.ID, m.n.courseID, m.n.Location())
	if err != nil || rec == nil {
		// No responses yet: a live module still knows its score is zero.
		return grading.Points{Earned: 0, Possible: possible}, err == nil
	}

	var st struct {
		StudentAnswers map[string]any `json:"student_answers"`
	}
	if rec.State != "" {
		if err := json.Unmarshal([]byte(rec.State), &st); err != nil {
			return grading.Points{}, false
		}
	}
	earned, possible, err := problem.ScoreAll(ctx, m.f.rt.Problems, m.n.questions, st.StudentAnswers)
	if err != nil {
		return grading.Points{}, false
	}
	return grading.Points{Earned: earned, Possible: possible}, true
}

func (m *problemModule) ChildDescriptors() []grading.Descriptor { return nil }

// splitModule exposes only the branch this student was assigned.
type splitModule struct {
	n      *node
	branch string
}

func (m *splitModule) Score(context.Context) (grading.Points, bool) { return grading.Points{}, false }
func (m *splitModule) MaxScore() (float64, bool)                    { return 0, false }

func (m *splitModule) ChildDescriptors() []grading.Descriptor {
	return m.n.branches[m.branch]
}

// branchFor deterministically assigns a student to one branch, so the same
// student always sees the same content.
func branchFor(studentID string, n *node) string {
	if len(n.branchKeys) == 0 {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(studentID))
	h.Write([]byte("|"))
	h.Write([]byte(n.Location()))
	return n.branchKeys[int(h.Sum32())%len(n.branchKeys)]
}

// containerModule is inert structure: its children are its static children.
type containerModule struct {
	n *node
}

func (m *containerModule) Score(context.Context) (grading.Points, bool) { return grading.Points{}, false }
func (m *containerModule) MaxScore() (float64, bool)                    { return 0, false }
func (m *containerModule) ChildDescriptors() []grading.Descriptor       { return m.n.children }

// SubmitProblem scores the responses against the problem's answer key and
// records the natural (unweighted) score plus the raw answers in the state
// store. Weight overrides are applied later, at grading time.
func (rt *Runtime) SubmitProblem(ctx context.Context, student grading.User, c *Course, problemURLName string, responses map[string]any) (state.Record, error) {
	if student.Anonymous {
		return state.Record{}, fmt.Errorf("anonymous users cannot submit")
	}
	blk, err := c.problemByURLName(problemURLName)
	if err != nil {
		return state.Record{}, err
	}
	if len(blk.questions) == 0 {
		return state.Record{}, fmt.Errorf("problem %q has no questions", problemURLName)
	}

	earned, possible, err := problem.ScoreAll(ctx, rt.Problems, blk.questions, responses)
	if err != nil {
		return state.Record{}, err
	}

	attempts := 1
	if prev, err := rt.States.LookupState(ctx, student.ID, c.ID(), blk.Location()); err == nil && prev != nil {
		var prevState struct {
			Attempts int `json:"attempts"`
		}
		if prev.State != "" && json.Unmarshal([]byte(prev.State), &prevState) == nil {
			attempts = prevState.Attempts + 1
		}
	}

	stateJSON, err := json.Marshal(map[string]any{
		"student_answers": responses,
		"attempts":        attempts,
	})
	if err != nil {
		return state.Record{}, err
	}

	return rt.States.Upsert(ctx, state.Record{
		StudentID:  student.ID,
		CourseID:   c.ID(),
		ModuleKey:  blk.Location(),
		ModuleType: "problem",
		Grade:      &earned,
		MaxGrade:   &possible,
		State:      string(stateJSON),
	})
}
