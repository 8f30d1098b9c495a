package grading

import (
	"context"
	"time"
)

// SectionProgress summarizes one section for the progress page, graded or
// not.
type SectionProgress struct {
	DisplayName  string     `json:"display_name"`
	Scores       []Score    `json:"scores"`
	SectionTotal Score      `json:"section_total"`
	Format       string     `json:"format"`
	Due          *time.Time `json:"due,omitempty"`
	Graded       bool       `json:"graded"`
}

// ChapterProgress groups section summaries under one chapter.
type ChapterProgress struct {
	Course      string            `json:"course"`
	DisplayName string            `json:"display_name"`
	Sections    []SectionProgress `json:"sections"`
}

// ProgressSummary walks every chapter and section of the course and scores
// each item the student sees, including ungraded ones. Unlike Grade it never
// skips untouched sections; it exists to render a full course summary.
func (e *Engine) ProgressSummary(ctx context.Context, student User, course Course, factory ModuleFactory) ([]ChapterProgress, error) {
	run := func(states StateReader) ([]ChapterProgress, error) {
		var chapters []ChapterProgress
		for _, chapter := range course.Chapters() {
			cp := ChapterProgress{
				Course:      course.DisplayName(),
				DisplayName: chapter.DisplayName(),
			}
			for _, section := range chapter.Children() {
				graded := section.Graded()

				var scores []Score
				for _, item := range DynamicDescendants(ctx, section, factory) {
					pts, ok, err := e.getScore(ctx, states, course.ID(), student, item, factory)
					if err != nil {
						return nil, err
					}
					if !ok {
						continue
					}
					scores = append(scores, Score{
						Earned:   pts.Earned,
						Possible: pts.Possible,
						Graded:   graded,
						Section:  item.DisplayName(),
					})
				}
				// The walk pops siblings in reverse; restore display order.
				for i, j := 0, len(scores)-1; i < j; i, j = i+1, j-1 {
					scores[i], scores[j] = scores[j], scores[i]
				}

				sectionTotal, _ := AggregateScores(scores, section.DisplayName())
				cp.Sections = append(cp.Sections, SectionProgress{
					DisplayName:  section.DisplayName(),
					Scores:       scores,
					SectionTotal: sectionTotal,
					Format:       section.Format(),
					Due:          section.Due(),
					Graded:       graded,
				})
			}
			chapters = append(chapters, cp)
		}
		return chapters, nil
	}

	if tx, ok := e.States.(TxStateReader); ok {
		var out []ChapterProgress
		err := tx.View(ctx, func(r StateReader) error {
			var err error
			out, err = run(r)
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return run(e.States)
}
