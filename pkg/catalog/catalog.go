package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/peterhellberg/duration"
	"github.com/pkg/errors"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
)

// Catalog is the ordered list of training sections. Order is gating order: a section
// unlocks once the one before it is completed.
type Catalog struct {
	sections []v1.Section
	index    map[string]int
}

func New(sections []v1.Section) (*Catalog, error) {
	if len(sections) == 0 {
		return nil, hferrors.NewValidation("catalog has no sections")
	}
	c := &Catalog{
		sections: make([]v1.Section, len(sections)),
		index:    make(map[string]int, len(sections)),
	}
	for i, s := range sections {
		if s.Id == "" {
			return nil, hferrors.NewValidation(fmt.Sprintf("section %d has no id", i+1))
		}
		if _, dup := c.index[s.Id]; dup {
			return nil, hferrors.NewValidation(fmt.Sprintf("duplicate section id %s", s.Id))
		}
		c.index[s.Id] = i
		c.sections[i] = s
	}
	return c, nil
}

func Default() *Catalog {
	c, _ := New(DefaultSections())
	return c
}

func DefaultSections() []v1.Section {
	return []v1.Section{
		{
			Id:          "section1",
			Title:       "Professional Communication",
			Description: "Learn effective communication techniques in a professional environment",
			VideoUrl:    "https://drive.google.com/file/d/1K7hyyDPFesbN30_zfHBWIc_fXx56RxCN/view?usp=sharing",
			Duration:    3 * time.Minute,
		},
		{
			Id:          "section2",
			Title:       "Time Management",
			Description: "Master strategies for efficient time management in your workplace",
			VideoUrl:    "https://www.youtube.com/watch?v=AgYVYOZrpzY",
			Duration:    3 * time.Minute,
		},
		{
			Id:          "section3",
			Title:       "Workplace Etiquette",
			Description: "Understand essential workplace etiquette and professional conduct",
			VideoUrl:    "https://www.youtube.com/watch?v=VRXmsVF_QFY",
			Duration:    3 * time.Minute,
		},
	}
}

func (c *Catalog) Sections() []v1.Section {
	out := make([]v1.Section, len(c.sections))
	copy(out, c.sections)
	return out
}

func (c *Catalog) Total() int {
	return len(c.sections)
}

func (c *Catalog) Get(id string) (v1.Section, bool) {
	i, ok := c.index[id]
	if !ok {
		return v1.Section{}, false
	}
	return c.sections[i], true
}

// Previous returns the id of the section gating id, or "" for the first section.
func (c *Catalog) Previous(id string) string {
	i, ok := c.index[id]
	if !ok || i == 0 {
		return ""
	}
	return c.sections[i-1].Id
}

type sectionFile struct {
	Id          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoUrl    string `json:"video_url"`
	Duration    string `json:"duration"`
}

// LoadFile reads a JSON section list. Durations are ISO 8601 (e.g. "PT3M").
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading catalog %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	if err := validate(sectionsSchema, data); err != nil {
		return nil, errors.Wrap(err, "invalid section catalog")
	}

	var raw []sectionFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, hferrors.NewValidation(err.Error())
	}

	sections := make([]v1.Section, len(raw))
	for i, s := range raw {
		var d time.Duration
		if s.Duration != "" {
			parsed, err := duration.Parse(s.Duration)
			if err != nil {
				return nil, hferrors.NewValidation(fmt.Sprintf("section %s: invalid duration %q", s.Id, s.Duration))
			}
			d = parsed
		}
		sections[i] = v1.Section{
			Id:          s.Id,
			Title:       s.Title,
			Description: s.Description,
			VideoUrl:    s.VideoUrl,
			Duration:    d,
		}
	}
	return New(sections)
}
