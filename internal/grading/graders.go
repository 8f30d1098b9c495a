package grading

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
)

// BreakdownEntry is one display row of a grade summary. Percent feeds the
// final grade only through the category average row; the per-section rows
// exist so the progress page can show how the average was reached.
type BreakdownEntry struct {
	Percent   float64 `json:"percent"`
	Label     string  `json:"label"`
	Detail    string  `json:"detail"`
	Category  string  `json:"category,omitempty"`
	Prominent bool    `json:"prominent,omitempty"`
	Mark      string  `json:"mark,omitempty"` // set on rows excluded by the drop policy
}

// CategoryBreakdown is one category's weighted contribution to the grade.
type CategoryBreakdown struct {
	Percent  float64 `json:"percent"`
	Detail   string  `json:"detail"`
	Category string  `json:"category"`
}

// GradeSheet maps a section format ("Homework", "Exam") to the section
// totals collected for that format. Sections with zero possible points never
// appear here; the orchestrator drops them before grading.
type GradeSheet map[string][]Score

// Summary is the output of a grader: the fraction of the available credit
// earned plus the display breakdowns.
type Summary struct {
	Percent          float64             `json:"percent"`
	SectionBreakdown []BreakdownEntry    `json:"section_breakdown"`
	GradeBreakdown   []CategoryBreakdown `json:"grade_breakdown,omitempty"`
}

// Grader turns a grade sheet into a summary. randomScores substitutes
// synthetic earned values, used only for profiling and demo seeding.
type Grader interface {
	Grade(sheet GradeSheet, randomScores bool) Summary
}

// AssignmentGrader grades one category of sections: each section becomes a
// percentage, the lowest DropCount are dropped, and the rest are averaged.
// When fewer than MinCount sections exist the missing ones count as 0%, so a
// skipped assignment still drags the average down.
type AssignmentGrader struct {
	Category   string // format key in the sheet, also the display noun
	MinCount   int
	DropCount  int
	ShortLabel string // compact label prefix; defaults to Category
}

func (g AssignmentGrader) shortLabel() string {
	if g.ShortLabel != "" {
		return g.ShortLabel
	}
	return g.Category
}

func (g AssignmentGrader) Grade(sheet GradeSheet, randomScores bool) Summary {
	scores := sheet[g.Category]
	count := len(scores)
	if g.MinCount > count {
		count = g.MinCount
	}

	breakdown := make([]BreakdownEntry, 0, count+1)
	for i := 0; i < count; i++ {
		var percent float64
		var detail string
		if i < len(scores) {
			sc := scores[i]
			earned, possible := sc.Earned, sc.Possible
			if randomScores {
				earned, possible = syntheticPoints()
			}
			if possible > 0 {
				percent = earned / possible
			}
			detail = fmt.Sprintf("%s %d - %s - %s (%s/%s)",
				g.Category, i+1, sc.Section, formatPercent(percent),
				formatPoints(earned), formatPoints(possible))
		} else {
			detail = fmt.Sprintf("%s %d Unreleased - 0%% (?/?)", g.Category, i+1)
		}
		breakdown = append(breakdown, BreakdownEntry{
			Percent:  percent,
			Label:    fmt.Sprintf("%s %02d", g.shortLabel(), i+1),
			Detail:   detail,
			Category: g.Category,
		})
	}

	total, dropped := totalWithDrops(breakdown, g.DropCount)
	for _, di := range dropped {
		breakdown[di].Mark = fmt.Sprintf("The lowest %d %s scores are dropped.", g.DropCount, g.Category)
	}

	breakdown = append(breakdown, BreakdownEntry{
		Percent:   total,
		Label:     fmt.Sprintf("%s Avg", g.shortLabel()),
		Detail:    fmt.Sprintf("%s Average = %s", g.Category, formatPercent(total)),
		Category:  g.Category,
		Prominent: true,
	})

	return Summary{Percent: total, SectionBreakdown: breakdown}
}

// totalWithDrops averages the non-dropped percentages. The dropped rows are
// the DropCount lowest, ties dropping the earliest section; the average
// denominator shrinks accordingly.
func totalWithDrops(breakdown []BreakdownEntry, dropCount int) (float64, []int) {
	order := make([]int, len(breakdown))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return breakdown[order[a]].Percent < breakdown[order[b]].Percent
	})

	if dropCount > len(order) {
		dropCount = len(order)
	}
	var dropped []int
	if dropCount > 0 {
		dropped = order[:dropCount]
	}

	isDropped := make(map[int]bool, len(dropped))
	for _, i := range dropped {
		isDropped[i] = true
	}

	var total float64
	for i, row := range breakdown {
		if !isDropped[i] {
			total += row.Percent
		}
	}
	if n := len(breakdown) - len(dropped); n > 0 {
		total /= float64(n)
	}
	return total, dropped
}

// SingleSectionGrader grades exactly one named section within a category,
// e.g. a final exam that is its own grading component.
type SingleSectionGrader struct {
	Category   string // format key in the sheet
	Name       string // display name of the section to find
	ShortLabel string
}

func (g SingleSectionGrader) shortLabel() string {
	if g.ShortLabel != "" {
		return g.ShortLabel
	}
	return g.Name
}

func (g SingleSectionGrader) Grade(sheet GradeSheet, randomScores bool) Summary {
	var found *Score
	for _, sc := range sheet[g.Category] {
		if sc.Section == g.Name {
			found = &sc
			break
		}
	}

	var percent float64
	var detail string
	if found != nil || randomScores {
		earned, possible := 0.0, 0.0
		if found != nil {
			earned, possible = found.Earned, found.Possible
		}
		if randomScores {
			earned, possible = syntheticPoints()
		}
		if possible > 0 {
			percent = earned / possible
		}
		detail = fmt.Sprintf("%s - %s (%s/%s)",
			g.Name, formatPercent(percent), formatPoints(earned), formatPoints(possible))
	} else {
		detail = fmt.Sprintf("%s - 0%% (?/?)", g.Name)
	}

	breakdown := []BreakdownEntry{{
		Percent:   percent,
		Label:     g.shortLabel(),
		Detail:    detail,
		Category:  g.Category,
		Prominent: true,
	}}
	return Summary{Percent: percent, SectionBreakdown: breakdown}
}

// WeightedGrader composes sub-graders, one per grading component, and sums
// their weighted percentages into the course percent.
type WeightedGrader struct {
	Sections []WeightedSection
}

type WeightedSection struct {
	Grader   Grader
	Category string
	Weight   float64
}

func (g WeightedGrader) Grade(sheet GradeSheet, randomScores bool) Summary {
	var out Summary
	for _, sec := range g.Sections {
		sub := sec.Grader.Grade(sheet, randomScores)
		weighted := sub.Percent * sec.Weight
		out.Percent += weighted
		out.SectionBreakdown = append(out.SectionBreakdown, sub.SectionBreakdown...)
		out.GradeBreakdown = append(out.GradeBreakdown, CategoryBreakdown{
			Percent:  weighted,
			Detail:   fmt.Sprintf("%s = %s of a possible %s", sec.Category, formatPercent1(weighted), formatPercent(sec.Weight)),
			Category: sec.Category,
		})
	}
	return out
}

// PolicyAssignment is one entry of a course grading policy. When Name is set
// the entry grades a single named section; otherwise it grades the whole
// category with the min/drop rules.
type PolicyAssignment struct {
	Type       string  `yaml:"type" json:"type"`
	Name       string  `yaml:"name,omitempty" json:"name,omitempty"`
	MinCount   int     `yaml:"min_count,omitempty" json:"min_count,omitempty"`
	DropCount  int     `yaml:"drop_count,omitempty" json:"drop_count,omitempty"`
	ShortLabel string  `yaml:"short_label,omitempty" json:"short_label,omitempty"`
	Weight     float64 `yaml:"weight" json:"weight"`
}

// FromPolicy builds the course grader from policy entries.
func FromPolicy(entries []PolicyAssignment) (Grader, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("grading policy has no assignment entries")
	}
	var g WeightedGrader
	for i, e := range entries {
		if e.Type == "" {
			return nil, fmt.Errorf("grading policy entry %d: type is required", i)
		}
		if e.Weight < 0 || e.Weight > 1 {
			return nil, fmt.Errorf("grading policy entry %q: weight %v out of [0,1]", e.Type, e.Weight)
		}
		if e.DropCount < 0 {
			return nil, fmt.Errorf("grading policy entry %q: negative drop_count", e.Type)
		}
		var sub Grader
		if e.Name != "" {
			sub = SingleSectionGrader{Category: e.Type, Name: e.Name, ShortLabel: e.ShortLabel}
		} else {
			minCount := e.MinCount
			if minCount < 1 {
				minCount = 1
			}
			sub = AssignmentGrader{
				Category:   e.Type,
				MinCount:   minCount,
				DropCount:  e.DropCount,
				ShortLabel: e.ShortLabel,
			}
		}
		g.Sections = append(g.Sections, WeightedSection{Grader: sub, Category: e.Type, Weight: e.Weight})
	}
	return g, nil
}

// GradeForPercentage maps a percent to the letter whose cutoff it meets, or
// "" when it is below every cutoff. Cutoffs are checked highest first.
func GradeForPercentage(cutoffs map[string]float64, percent float64) string {
	letters := make([]string, 0, len(cutoffs))
	for l := range cutoffs {
		letters = append(letters, l)
	}
	sort.SliceStable(letters, func(a, b int) bool {
		if cutoffs[letters[a]] != cutoffs[letters[b]] {
			return cutoffs[letters[a]] > cutoffs[letters[b]]
		}
		return letters[a] < letters[b]
	})
	for _, l := range letters {
		if percent >= cutoffs[l] {
			return l
		}
	}
	return ""
}

func syntheticPoints() (earned, possible float64) {
	e := 2 + rand.Intn(14)
	p := e + rand.Intn(16-e)
	return float64(e), float64(p)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p*100)
}

func formatPercent1(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'g', 3, 64)
}
