package main

import (
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dilipdevops/portfolio/internal/content"
	"github.com/dilipdevops/portfolio/internal/form"
	"github.com/dilipdevops/portfolio/internal/page"
	"github.com/dilipdevops/portfolio/internal/submission"
)

// viewData is the single data shape every template receives; fragments
// read the parts they need.
type viewData struct {
	PageID   string
	Site     *content.Site
	Sections []page.SectionView
	View     page.SectionView

	Contact       form.Snapshot[submission.ContactMessage]
	ContactErrors map[string]string

	Interview       form.Snapshot[submission.InterviewRequest]
	InterviewErrors map[string]string
	InterviewOpen   bool

	Schedule     page.ScheduleState
	Category     string
	Technologies []content.Technology
	Year         int
}

func newViewData(p *page.Page, category string) viewData {
	site := p.Site()
	if category == "" || !site.Tech.HasCategory(category) {
		category = content.AllCategories
	}
	return viewData{
		PageID:        p.ID,
		Site:          site,
		Sections:      p.Sections(),
		Contact:       p.Contact(),
		Interview:     p.Interview(),
		InterviewOpen: p.InterviewOpen(),
		Schedule:      p.Schedule(),
		Category:      category,
		Technologies:  site.Tech.Filter(category),
		Year:          time.Now().Year(),
	}
}

var templateFuncs = template.FuncMap{
	"withView": func(d viewData, v page.SectionView) viewData {
		d.View = v
		return d
	},
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

var fieldMessages = map[string]string{
	"required":         "This field is required.",
	"email":            "Please enter a valid email address.",
	"isodate":          "Please pick a date.",
	"oneof":            "Please choose virtual or in-person.",
	"required_if":      "Location is required for in-person interviews.",
	"offline_location": "Location is required for in-person interviews.",
}

// fieldErrors turns a binding error into per-field messages keyed by the
// form field name. Errors that are not validation errors land under "".
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out[""] = "The form could not be read. Please try again."
		return out
	}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "This value is not valid."
		}
		out[strings.ToLower(fe.Field())] = msg
	}
	return out
}
