package grading

import (
	"context"
	"log"
	"math"
	"time"
)

// User identifies the student being graded. Anonymous users have no
// persisted state and cannot be scored.
type User struct {
	ID        string
	Username  string
	Anonymous bool
}

// Points is a raw (earned, possible) pair before it is tagged with the
// graded flag and display name.
type Points struct {
	Earned   float64
	Possible float64
}

// Descriptor is one read-only node of the course content tree. A descriptor
// carries structure and metadata; per-student state lives behind Module.
type Descriptor interface {
	// Location is the stable identity used to key persisted state.
	Location() string
	DisplayName() string
	// Format is the grading category of a section ("Homework"), or "".
	Format() string
	Graded() bool
	HasScore() bool
	// Weight overrides the item's natural point total when present.
	Weight() (float64, bool)
	// AlwaysRecalculate marks items whose state changes outside the normal
	// submission flow; their scores must be recomputed on every pass.
	AlwaysRecalculate() bool
	// HasDynamicChildren marks nodes whose child list depends on the
	// student, e.g. A/B test branches.
	HasDynamicChildren() bool
	Children() []Descriptor
	Due() *time.Time
}

// Module is a live, per-student instance of one content item.
type Module interface {
	// Score returns the student's current score, or ok=false when the item
	// has no score for this student.
	Score(ctx context.Context) (Points, bool)
	// MaxScore returns the item's point total, or ok=false when the module
	// is in an error state and cannot report one.
	MaxScore() (float64, bool)
	// ChildDescriptors lists the children this student actually sees.
	ChildDescriptors() []Descriptor
}

// ModuleFactory instantiates live modules for one student. Module returns
// nil when the student cannot access the item or instantiation failed.
type ModuleFactory interface {
	Module(ctx context.Context, d Descriptor) Module
}

// FactoryProvider binds a factory to a student, replacing the ad hoc
// closures that batch callers would otherwise need.
type FactoryProvider interface {
	For(student User) ModuleFactory
}

// GradedSection is one graded section plus the static scoreable descriptors
// beneath it, used to decide whether the section needs grading at all.
type GradedSection struct {
	Section Descriptor
	Leaves  []Descriptor
}

// Course is the course-tree collaborator the engine grades against.
type Course interface {
	ID() string
	DisplayName() string
	Grader() Grader
	GradeCutoffs() map[string]float64
	// GradedSections groups every graded section by format.
	GradedSections() map[string][]GradedSection
	// Chapters lists top-level chapters, for the progress summary.
	Chapters() []Descriptor
}

// ModuleState is one persisted score row for a (student, item) pair.
// MaxGrade is nil until the item has been graded at least once.
type ModuleState struct {
	Grade    *float64
	MaxGrade *float64
	State    string // opaque JSON payload; grading never writes it
}

// StateReader looks up persisted per-student module state.
type StateReader interface {
	// LookupState returns nil when the student has no row for the item.
	LookupState(ctx context.Context, studentID, courseID, moduleKey string) (*ModuleState, error)
	// HasStateFor reports whether any row exists for the student across the
	// given module keys.
	HasStateFor(ctx context.Context, studentID, courseID string, moduleKeys []string) (bool, error)
}

// TxStateReader is implemented by stores that can scope a batch of reads in
// one transaction. When the engine's store supports it, a whole grade
// computation runs inside a single consistent read.
type TxStateReader interface {
	StateReader
	View(ctx context.Context, fn func(StateReader) error) error
}

// GradeSet is the full structured result of one grade computation.
type GradeSet struct {
	Percent          float64             `json:"percent"`
	Grade            string              `json:"grade,omitempty"` // letter grade; "" when below every cutoff
	SectionBreakdown []BreakdownEntry    `json:"section_breakdown"`
	GradeBreakdown   []CategoryBreakdown `json:"grade_breakdown"`
	TotaledScores    GradeSheet          `json:"totaled_scores"`
	RawScores        []Score             `json:"raw_scores,omitempty"`
}

// Engine computes grades. It holds no per-computation state: every Grade
// call is a pure function of the course tree and the persisted state at
// call time.
type Engine struct {
	States StateReader
	// RandomScores feeds the graders synthetic earned values, for profiling
	// and demo seeding only.
	RandomScores bool
}

// Grade computes the student's gradeset for the course. When the state store
// supports transactions the whole computation runs inside one read
// transaction; any error rolls it back and is returned as-is. keepRaw
// additionally collects every per-item score for instructor download.
func (e *Engine) Grade(ctx context.Context, student User, course Course, factory ModuleFactory, keepRaw bool) (*GradeSet, error) {
	if tx, ok := e.States.(TxStateReader); ok {
		var gs *GradeSet
		err := tx.View(ctx, func(r StateReader) error {
			var err error
			gs, err = e.grade(ctx, r, student, course, factory, keepRaw)
			return err
		})
		if err != nil {
			return nil, err
		}
		return gs, nil
	}
	return e.grade(ctx, e.States, student, course, factory, keepRaw)
}

func (e *Engine) grade(ctx context.Context, states StateReader, student User, course Course, factory ModuleFactory, keepRaw bool) (*GradeSet, error) {
	sheet := GradeSheet{}
	var raw []Score

	for format, sections := range course.GradedSections() {
		var formatScores []Score
		for _, sec := range sections {
			sectionName := sec.Section.DisplayName()

			shouldGrade := false
			for _, leaf := range sec.Leaves {
				if leaf.AlwaysRecalculate() {
					shouldGrade = true
					break
				}
			}
			// An untouched section is an assumed 0%; skipping it avoids
			// instantiating every module in it.
			if !shouldGrade {
				keys := make([]string, 0, len(sec.Leaves))
				for _, leaf := range sec.Leaves {
					keys = append(keys, leaf.Location())
				}
				var err error
				shouldGrade, err = states.HasStateFor(ctx, student.ID, course.ID(), keys)
				if err != nil {
					return nil, err
				}
			}

			var gradedTotal Score
			if shouldGrade {
				var scores []Score
				for _, item := range DynamicDescendants(ctx, sec.Section, factory) {
					pts, ok, err := e.getScore(ctx, states, course.ID(), student, item, factory)
					if err != nil {
						return nil, err
					}
					if !ok {
						continue
					}
					graded := item.Graded()
					if !(pts.Possible > 0) {
						// A score out of zero cannot become a percentage.
						graded = false
					}
					scores = append(scores, Score{
						Earned:   pts.Earned,
						Possible: pts.Possible,
						Graded:   graded,
						Section:  item.DisplayName(),
					})
				}
				_, gradedTotal = AggregateScores(scores, sectionName)
				if keepRaw {
					raw = append(raw, scores...)
				}
			} else {
				gradedTotal = Score{Earned: 0, Possible: 1, Graded: true, Section: sectionName}
			}

			if gradedTotal.Possible > 0 {
				formatScores = append(formatScores, gradedTotal)
			} else {
				log.Printf("grading: section %s has zero possible points; excluded from %q",
					sec.Section.Location(), format)
			}
		}
		sheet[format] = formatScores
	}

	summary := course.Grader().Grade(sheet, e.RandomScores)

	// Round to a whole percentage point so the grade is never displayed
	// differently than it was computed. The +0.05 biases half points upward
	// in percentage space; downstream numbers depend on this exact rule.
	percent := math.Round(summary.Percent*100+0.05) / 100

	gs := &GradeSet{
		Percent:          percent,
		Grade:            GradeForPercentage(course.GradeCutoffs(), percent),
		SectionBreakdown: summary.SectionBreakdown,
		GradeBreakdown:   summary.GradeBreakdown,
		TotaledScores:    sheet,
	}
	if keepRaw {
		gs.RawScores = raw
	}
	return gs, nil
}

// GetScore resolves the score for one item, or ok=false when the item cannot
// be scored for this student. The persisted row is authoritative whenever it
// has a max grade, even if the live item's point total has since changed;
// the staleness window closes on the student's next submission.
func (e *Engine) GetScore(ctx context.Context, courseID string, student User, item Descriptor, factory ModuleFactory) (Points, bool, error) {
	return e.getScore(ctx, e.States, courseID, student, item, factory)
}

func (e *Engine) getScore(ctx context.Context, states StateReader, courseID string, student User, item Descriptor, factory ModuleFactory) (Points, bool, error) {
	if student.Anonymous {
		return Points{}, false, nil
	}

	// Some items have state that is updated independently of submissions,
	// so a cached grade would lie; score them live every time.
	if item.AlwaysRecalculate() {
		m := factory.Module(ctx, item)
		if m == nil {
			return Points{}, false, nil
		}
		pts, ok := m.Score(ctx)
		if !ok {
			return Points{}, false, nil
		}
		return pts, true, nil
	}

	if !item.HasScore() {
		return Points{}, false, nil
	}

	rec, err := states.LookupState(ctx, student.ID, courseID, item.Location())
	if err != nil {
		return Points{}, false, err
	}

	var correct, total float64
	if rec != nil && rec.MaxGrade != nil {
		if rec.Grade != nil {
			correct = *rec.Grade
		}
		total = *rec.MaxGrade
	} else {
		// Not graded yet: instantiate the module to learn the point total.
		m := factory.Module(ctx, item)
		if m == nil {
			return Points{}, false, nil
		}
		max, ok := m.MaxScore()
		if !ok {
			// Error state: the module cannot report a point total.
			return Points{}, false, nil
		}
		correct, total = 0, max
	}

	if weight, ok := item.Weight(); ok {
		if total == 0 {
			log.Printf("grading: cannot reweight item %s with zero total points", item.Location())
			return Points{Earned: correct, Possible: total}, true, nil
		}
		correct = correct * weight / total
		total = weight
	}

	return Points{Earned: correct, Possible: total}, true, nil
}

// DynamicDescendants returns every descendant of root, depth first. When a
// descriptor declares dynamic children, a live module is instantiated and
// its child descriptors are used, so the walk sees exactly the children this
// student encounters. Each call is a fresh traversal.
func DynamicDescendants(ctx context.Context, root Descriptor, factory ModuleFactory) []Descriptor {
	children := func(d Descriptor) []Descriptor {
		if d.HasDynamicChildren() {
			m := factory.Module(ctx, d)
			if m == nil {
				return nil
			}
			return m.ChildDescriptors()
		}
		return d.Children()
	}

	stack := []Descriptor{root}
	var out []Descriptor
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, children(next)...)
		out = append(out, next)
	}
	return out
}

// StaticScoreableDescendants collects every descendant with a score using
// static structure only, descending into all dynamic branches. This is the
// superset used to decide whether a student has touched a section.
func StaticScoreableDescendants(root Descriptor) []Descriptor {
	var out []Descriptor
	stack := []Descriptor{root}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, next.Children()...)
		if next.HasScore() {
			out = append(out, next)
		}
	}
	return out
}
