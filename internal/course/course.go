package course

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opencourse/grader/internal/grading"
)

// Course is one loaded course. It implements grading.Course.
type Course struct {
	def      CourseDef
	grader   grading.Grader
	chapters []grading.Descriptor
	graded   map[string][]grading.GradedSection
	blocks   map[string]*node // location -> node
}

// New materializes a course definition: builds the tree, indexes blocks,
// groups graded sections by format, and constructs the course grader from
// the policy.
func New(def CourseDef) (*Course, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("course has no id")
	}
	if def.Name == "" {
		return nil, fmt.Errorf("course %s has no name", def.ID)
	}

	grader, err := grading.FromPolicy(def.Policy.Graders)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", def.ID, err)
	}

	c := &Course{
		def:    def,
		grader: grader,
		graded: map[string][]grading.GradedSection{},
		blocks: map[string]*node{},
	}

	for _, chapterDef := range def.Chapters {
		chapter := &node{courseID: def.ID, urlName: chapterDef.URLName, name: chapterDef.Name, typ: "chapter"}
		if chapter.urlName == "" {
			return nil, fmt.Errorf("course %s: chapter %q has no url_name", def.ID, chapterDef.Name)
		}
		for _, sectionDef := range chapterDef.Sections {
			section := &node{
				courseID: def.ID,
				urlName:  sectionDef.URLName,
				name:     sectionDef.Name,
				typ:      "sequential",
				format:   sectionDef.Format,
				graded:   sectionDef.Graded,
				due:      sectionDef.Due,
			}
			if section.urlName == "" {
				return nil, fmt.Errorf("course %s: section %q has no url_name", def.ID, sectionDef.Name)
			}
			for _, blockDef := range sectionDef.Blocks {
				block, err := buildBlock(def.ID, blockDef, c.blocks)
				if err != nil {
					return nil, fmt.Errorf("course %s: %w", def.ID, err)
				}
				block.graded = sectionDef.Graded
				markGraded(block, sectionDef.Graded)
				section.children = append(section.children, block)
			}
			chapter.children = append(chapter.children, section)

			if sectionDef.Graded {
				c.graded[sectionDef.Format] = append(c.graded[sectionDef.Format], grading.GradedSection{
					Section: section,
					Leaves:  grading.StaticScoreableDescendants(section),
				})
			}
		}
		c.chapters = append(c.chapters, chapter)
	}

	return c, nil
}

// markGraded propagates the section's graded flag down to every descendant,
// since an item inherits gradedness from the section that contains it.
func markGraded(d *node, graded bool) {
	d.graded = graded
	for _, child := range d.children {
		if n, ok := child.(*node); ok {
			markGraded(n, graded)
		}
	}
	for _, blocks := range d.branches {
		for _, child := range blocks {
			if n, ok := child.(*node); ok {
				markGraded(n, graded)
			}
		}
	}
}

// Load reads one course definition from a YAML file.
func Load(path string) (*Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a course from YAML bytes.
func Parse(data []byte) (*Course, error) {
	var def CourseDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse course: %w", err)
	}
	return New(def)
}

func (c *Course) ID() string                       { return c.def.ID }
func (c *Course) DisplayName() string              { return c.def.Name }
func (c *Course) Grader() grading.Grader           { return c.grader }
func (c *Course) GradeCutoffs() map[string]float64 { return c.def.Policy.Cutoffs }
func (c *Course) Chapters() []grading.Descriptor   { return c.chapters }

func (c *Course) GradedSections() map[string][]grading.GradedSection { return c.graded }

// block looks up a node by its full location key.
func (c *Course) block(location string) (*node, bool) {
	n, ok := c.blocks[location]
	return n, ok
}

// problemByURLName finds a problem block by its short url_name, for the
// submission path.
func (c *Course) problemByURLName(urlName string) (*node, error) {
	loc := fmt.Sprintf("block://%s/problem/%s", c.def.ID, urlName)
	n, ok := c.blocks[loc]
	if !ok {
		return nil, fmt.Errorf("problem %q not found in course %s", urlName, c.def.ID)
	}
	return n, nil
}
