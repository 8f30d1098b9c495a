package course

import (
	"fmt"
	"sort"
	"time"

	"github.com/opencourse/grader/internal/grading"
	"github.com/opencourse/grader/internal/problem"
)

// node is one materialized content-tree node. It implements
// grading.Descriptor; per-student behavior lives in the runtime modules.
type node struct {
	courseID     string
	urlName      string
	name         string
	typ          string // chapter|sequential|problem|split_test|html|video|...
	format       string
	graded       bool
	due          *time.Time
	weight       *float64
	alwaysRecalc bool
	questions    []problem.Question
	children     []grading.Descriptor
	// branches maps split_test branch keys to their blocks; branchKeys is
	// the sorted key order used for deterministic assignment.
	branches   map[string][]grading.Descriptor
	branchKeys []string
}

func (n *node) Location() string {
	return fmt.Sprintf("block://%s/%s/%s", n.courseID, n.typ, n.urlName)
}

func (n *node) DisplayName() string {
	if n.name != "" {
		return n.name
	}
	return n.urlName
}

func (n *node) Format() string           { return n.format }
func (n *node) Graded() bool             { return n.graded }
func (n *node) HasScore() bool           { return n.typ == "problem" }
func (n *node) AlwaysRecalculate() bool  { return n.alwaysRecalc }
func (n *node) HasDynamicChildren() bool { return n.typ == "split_test" }
func (n *node) Due() *time.Time          { return n.due }

func (n *node) Weight() (float64, bool) {
	if n.weight != nil {
		return *n.weight, true
	}
	return 0, false
}

// Children returns the static child list. For a split_test this is every
// branch's blocks: the static view must cover everything any student could
// see, since it feeds the touched-section check.
func (n *node) Children() []grading.Descriptor {
	if n.typ != "split_test" {
		return n.children
	}
	var all []grading.Descriptor
	for _, key := range n.branchKeys {
		all = append(all, n.branches[key]...)
	}
	return all
}

func buildBlock(courseID string, def BlockDef, index map[string]*node) (*node, error) {
	if def.URLName == "" {
		return nil, fmt.Errorf("block of type %q has no url_name", def.Type)
	}
	if def.Type == "" {
		return nil, fmt.Errorf("block %q has no type", def.URLName)
	}
	n := &node{
		courseID:     courseID,
		urlName:      def.URLName,
		name:         def.Name,
		typ:          def.Type,
		weight:       def.Weight,
		alwaysRecalc: def.AlwaysRecalculate,
		questions:    def.Questions,
	}

	for _, childDef := range def.Blocks {
		child, err := buildBlock(courseID, childDef, index)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}

	if len(def.Branches) > 0 {
		if def.Type != "split_test" {
			return nil, fmt.Errorf("block %q: only split_test blocks may declare branches", def.URLName)
		}
		n.branches = map[string][]grading.Descriptor{}
		for key, blockDefs := range def.Branches {
			for _, childDef := range blockDefs {
				child, err := buildBlock(courseID, childDef, index)
				if err != nil {
					return nil, err
				}
				n.branches[key] = append(n.branches[key], child)
			}
			n.branchKeys = append(n.branchKeys, key)
		}
		sort.Strings(n.branchKeys)
	}

	if prev, dup := index[n.Location()]; dup {
		return nil, fmt.Errorf("duplicate block %s (also used by %q)", n.Location(), prev.DisplayName())
	}
	index[n.Location()] = n
	return n, nil
}
