package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// ErrItemNotFound is returned by a ContentResolver when a module key in
// persisted state no longer maps to course content, which happens when a
// problem is deleted after students answered it.
var ErrItemNotFound = errors.New("item not found")

// ProblemInfo is the display identity of one problem.
type ProblemInfo struct {
	URLName     string
	DisplayName string
}

// ContentResolver maps a persisted module key back to its problem.
type ContentResolver interface {
	ProblemInfo(ctx context.Context, courseID, moduleKey string) (ProblemInfo, error)
}

// SubmittedRow is one persisted problem row with a recorded grade.
type SubmittedRow struct {
	ID        string
	StudentID string
	ModuleKey string
	State     string // JSON
}

// SubmissionScanner streams every submitted, graded problem row for a
// course. Implementations should read from a replica or a read-only
// transaction; the scan must not trigger re-evaluation side effects.
type SubmissionScanner interface {
	SubmittedProblems(ctx context.Context, courseID string, fn func(SubmittedRow) error) error
}

// DistributionKey identifies one answerable part of one problem.
type DistributionKey struct {
	URLName     string `json:"url_name"`
	DisplayName string `json:"display_name"`
	PartID      string `json:"part_id"`
}

// AnswerDistributions tallies, for every problem part in the course, how
// many students gave each answer. Rows with unparseable state are logged and
// skipped; answers whose problem has been deleted from the course are logged
// and omitted rather than failing the report.
func AnswerDistributions(ctx context.Context, courseID string, scanner SubmissionScanner, resolver ContentResolver) (map[DistributionKey]map[string]int, error) {
	// moduleKey -> problem info, so repeated rows don't re-resolve content.
	infoCache := map[string]ProblemInfo{}
	lookup := func(moduleKey string) (ProblemInfo, error) {
		if info, ok := infoCache[moduleKey]; ok {
			return info, nil
		}
		info, err := resolver.ProblemInfo(ctx, courseID, moduleKey)
		if err != nil {
			return ProblemInfo{}, err
		}
		infoCache[moduleKey] = info
		return info, nil
	}

	counts := map[DistributionKey]map[string]int{}
	err := scanner.SubmittedProblems(ctx, courseID, func(row SubmittedRow) error {
		var state struct {
			StudentAnswers map[string]any `json:"student_answers"`
		}
		if row.State != "" {
			if err := json.Unmarshal([]byte(row.State), &state); err != nil {
				log.Printf("answer distributions: could not parse state for row %s, course %s: %v",
					row.ID, courseID, err)
				return nil
			}
		}

		for partID, rawAnswer := range state.StudentAnswers {
			info, err := lookup(row.ModuleKey)
			if errors.Is(err, ErrItemNotFound) {
				log.Printf("answer distributions: item %s referenced in row %s for student %s, course %s not found; "+
					"the problem was likely deleted after the student answered, so this answer is omitted",
					row.ModuleKey, row.ID, row.StudentID, courseID)
				continue
			}
			if err != nil {
				return err
			}

			key := DistributionKey{URLName: info.URLName, DisplayName: info.DisplayName, PartID: partID}
			if counts[key] == nil {
				counts[key] = map[string]int{}
			}
			counts[key][stringifyAnswer(rawAnswer)]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func stringifyAnswer(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
