// Package problem scores a student's responses to one problem against its
// answer key. A problem is a list of questions; each question type has a
// scoring strategy.
package problem

import (
	"context"
	"errors"
	"fmt"
)

// Question is the scoring view of one question.
type Question struct {
	ID        string   `yaml:"id" json:"id"`
	Type      string   `yaml:"type" json:"type"` // mcq_single, mcq_multi, true_false, short_word, numeric, essay
	Points    float64  `yaml:"points" json:"points"`
	AnswerKey []string `yaml:"answer_key,omitempty" json:"answer_key,omitempty"`
}

// Result is the outcome of scoring a single question response.
type Result struct {
	Earned      float64  // points awarded automatically
	Max         float64  // the question's max points
	NeedsReview bool     // true if instructor review is required
	Feedback    []string // optional notes
}

// Strategy scores a single question.
type Strategy interface {
	Score(ctx context.Context, q Question, response any) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Score(ctx context.Context, q Question, response any) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Score(ctx context.Context, q Question, response any) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{Max: q.Points, NeedsReview: true, Feedback: []string{"no strategy available"}}, nil
	}
	return s.Score(ctx, q, response)
}

type config struct {
	MaxEditDistance   int  // for short-word fuzzy matching
	AllowPartialMulti bool // partial credit for mcq_multi without false positives
}

type Option func(*config)

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }

// NewGrader installs the built-in strategies.
func NewGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance:   1,
		AllowPartialMulti: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq_single": mcqSingleStrategy{},
			"true_false": mcqSingleStrategy{},
			"mcq_multi":  mcqMultiStrategy{allowPartial: cfg.AllowPartialMulti},
			"short_word": shortWordStrategy{maxEdit: cfg.MaxEditDistance},
			"numeric":    numericStrategy{},
			"essay":      essayStrategy{},
		},
	}
}

// ScoreAll scores every question of a problem against the response map
// (question ID -> response) and returns (earned, possible). Unanswered
// questions earn nothing but still count toward the possible total.
func ScoreAll(ctx context.Context, g Grader, questions []Question, responses map[string]any) (earned, possible float64, err error) {
	for _, q := range questions {
		possible += q.Points
		resp, answered := responses[q.ID]
		if !answered {
			continue
		}
		res, serr := g.Score(ctx, q, resp)
		if serr != nil {
			return 0, 0, fmt.Errorf("question %s: %w", q.ID, serr)
		}
		earned += res.Earned
	}
	return earned, possible, nil
}

// --- Strategies ---

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Score(_ context.Context, q Question, response any) (Result, error) {
	res := Result{Max: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, errors.New("response must be string")
	}
	for _, k := range q.AnswerKey {
		if resp == k {
			res.Earned = q.Points
			return res, nil
		}
	}
	return res, nil
}

type mcqMultiStrategy struct{ allowPartial bool }

func (s mcqMultiStrategy) Score(_ context.Context, q Question, response any) (Result, error) {
	res := Result{Max: q.Points}
	respSlice, ok := toStringSlice(response)
	if !ok {
		return res, errors.New("response must be []string")
	}
	correct := toSet(q.AnswerKey)
	resp := toSet(respSlice)

	if setEqual(correct, resp) {
		res.Earned = q.Points
		return res, nil
	}
	hasFalsePositive := false
	for r := range resp {
		if _, ok := correct[r]; !ok {
			hasFalsePositive = true
			break
		}
	}
	if s.allowPartial && !hasFalsePositive && len(correct) > 0 {
		inter := 0
		for k := range resp {
			if _, ok := correct[k]; ok {
				inter++
			}
		}
		res.Earned = q.Points * (float64(inter) / float64(len(correct)))
	}
	return res, nil
}

type shortWordStrategy struct{ maxEdit int }

func (s shortWordStrategy) Score(_ context.Context, q Question, response any) (Result, error) {
	res := Result{Max: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, errors.New("response must be string")
	}
	normResp := normalize(resp)

	fuzzy := false
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		if nk == normResp {
			res.Earned = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
			fuzzy = true
		}
	}
	if fuzzy {
		res.Earned = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

type essayStrategy struct{}

func (essayStrategy) Score(_ context.Context, q Question, response any) (Result, error) {
	return Result{Max: q.Points, NeedsReview: true, Feedback: []string{"manual grading required"}}, nil
}

// helpers

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
