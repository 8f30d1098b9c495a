package grading

import "fmt"

// Score is the result of scoring one item or one aggregate of items.
// Possible may be 0, which means the item cannot contribute a percentage;
// aggregation excludes such scores from category math.
type Score struct {
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
	Graded   bool    `json:"graded"`
	Section  string  `json:"section"` // display name of the item or section
}

// Percent is Earned/Possible, or 0 when Possible is 0.
func (s Score) Percent() float64 {
	if s.Possible > 0 {
		return s.Earned / s.Possible
	}
	return 0
}

func (s Score) String() string {
	return fmt.Sprintf("%s (%s/%s)", s.Section, formatPoints(s.Earned), formatPoints(s.Possible))
}

// AggregateScores folds item scores into one section total. It returns the
// total over every item regardless of the graded flag, and the total over
// graded items only. An empty input yields (0, 0) totals.
func AggregateScores(scores []Score, displayName string) (all Score, graded Score) {
	var earned, possible, earnedGraded, possibleGraded float64
	for _, s := range scores {
		earned += s.Earned
		possible += s.Possible
		if s.Graded {
			earnedGraded += s.Earned
			possibleGraded += s.Possible
		}
	}
	all = Score{Earned: earned, Possible: possible, Graded: false, Section: displayName}
	graded = Score{Earned: earnedGraded, Possible: possibleGraded, Graded: true, Section: displayName}
	return all, graded
}
