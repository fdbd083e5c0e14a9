// Package content holds the inert copy of the site: owner details, section
// order and reveal settings, and the data each section renders.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dilipdevops/portfolio/internal/visibility"
)

//go:embed content.yaml
var defaultYAML []byte

type Site struct {
	Owner          Owner           `yaml:"owner"`
	Sections       []Section       `yaml:"sections"`
	Hero           Hero            `yaml:"hero"`
	About          About           `yaml:"about"`
	Tech           TechStack       `yaml:"tech"`
	Projects       []Project       `yaml:"projects"`
	Pipelines      []Pipeline      `yaml:"pipelines"`
	Experience     []Job           `yaml:"experience"`
	Certifications []Certification `yaml:"certifications"`
}

type Owner struct {
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Location string `yaml:"location"`
	GitHub   string `yaml:"github"`
	LinkedIn string `yaml:"linkedin"`
	Resume   string `yaml:"resume"`
}

// Section is one scroll-revealed region of the page.
type Section struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Animation string `yaml:"animation"`
	DelayMS   int    `yaml:"delay_ms"`
	// DurationMS of zero means visibility.DefaultDuration.
	DurationMS int      `yaml:"duration_ms"`
	Threshold  *float64 `yaml:"threshold"`
	RootMargin string   `yaml:"root_margin"`
	// Continuous sections hide again when scrolled out of view.
	Continuous bool `yaml:"continuous"`
}

// Options fills unset fields with the reveal defaults.
func (s Section) Options() visibility.Options {
	opts := visibility.DefaultOptions()
	if s.Threshold != nil {
		opts.Threshold = *s.Threshold
	}
	if s.RootMargin != "" {
		opts.RootMargin = s.RootMargin
	}
	opts.TriggerOnce = !s.Continuous
	return opts
}

func (s Section) Transition() visibility.Transition {
	return visibility.Transition{
		Delay:    time.Duration(s.DelayMS) * time.Millisecond,
		Duration: time.Duration(s.DurationMS) * time.Millisecond,
	}
}

type Hero struct {
	Headline string `yaml:"headline"`
	Tagline  string `yaml:"tagline"`
}

type Stat struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

type About struct {
	Summary string `yaml:"summary"`
	Stats   []Stat `yaml:"stats"`
}

type Category struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type Technology struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type TechStack struct {
	Categories   []Category   `yaml:"categories"`
	Technologies []Technology `yaml:"technologies"`
}

// AllCategories selects every technology.
const AllCategories = "all"

// Filter returns the technologies in category. An empty category or
// AllCategories returns everything.
func (t TechStack) Filter(category string) []Technology {
	if category == "" || category == AllCategories {
		return t.Technologies
	}
	var out []Technology
	for _, tech := range t.Technologies {
		if tech.Category == category {
			out = append(out, tech)
		}
	}
	return out
}

func (t TechStack) HasCategory(id string) bool {
	for _, c := range t.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

type Project struct {
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	Technologies []string          `yaml:"technologies"`
	GitHub       string            `yaml:"github"`
	Demo         string            `yaml:"demo"`
	Workflow     string            `yaml:"workflow"`
	Details      map[string]string `yaml:"details"`
}

type Stage struct {
	Name   string `yaml:"name"`
	Status string `yaml:"status"`
	Time   string `yaml:"time"`
}

type Pipeline struct {
	Title    string  `yaml:"title"`
	Subtitle string  `yaml:"subtitle"`
	Stages   []Stage `yaml:"stages"`
}

type Job struct {
	Title        string   `yaml:"title"`
	Company      string   `yaml:"company"`
	Location     string   `yaml:"location"`
	Period       string   `yaml:"period"`
	Description  string   `yaml:"description"`
	Achievements []string `yaml:"achievements"`
}

type Certification struct {
	Name         string `yaml:"name"`
	Issuer       string `yaml:"issuer"`
	Year         string `yaml:"year"`
	CredentialID string `yaml:"credential_id"`
}

// Section looks a section up by id.
func (s *Site) Section(id string) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return Section{}, false
}

// Validate checks the parts of the content the page logic depends on.
func (s *Site) Validate() error {
	var errs []error
	if len(s.Sections) == 0 {
		errs = append(errs, errors.New("no sections"))
	}
	seen := make(map[string]bool, len(s.Sections))
	for _, sec := range s.Sections {
		if sec.ID == "" {
			errs = append(errs, errors.New("section without id"))
			continue
		}
		if seen[sec.ID] {
			errs = append(errs, fmt.Errorf("duplicate section %q", sec.ID))
		}
		seen[sec.ID] = true
		if sec.Animation != "" {
			if _, ok := visibility.LookupVariant(sec.Animation); !ok {
				errs = append(errs, fmt.Errorf("section %q: unknown animation %q", sec.ID, sec.Animation))
			}
		}
		if sec.DelayMS < 0 || sec.DurationMS < 0 {
			errs = append(errs, fmt.Errorf("section %q: negative timing", sec.ID))
		}
		if err := sec.Options().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("section %q: %w", sec.ID, err))
		}
	}
	for _, tech := range s.Tech.Technologies {
		if !s.Tech.HasCategory(tech.Category) {
			errs = append(errs, fmt.Errorf("technology %q: unknown category %q", tech.Name, tech.Category))
		}
	}
	return errors.Join(errs...)
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Site, error) {
	var site Site
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&site); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	return &site, nil
}

// Load reads path, or the embedded document when path is empty.
func Load(path string) (*Site, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return Parse(data)
}

// Default is the content compiled into the binary.
func Default() (*Site, error) {
	return Parse(defaultYAML)
}
