// Package web renders the upload page.
package web

import (
	"embed"
	"html/template"
	"io"

	"github.com/Brownie44l1/banana-detector/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var Templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const PageTemplate = "index.html"

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusResult  Status = "result"
)

// State is everything the page shows: a loading flag and an optional
// prediction text.
type State struct {
	Loading    bool
	Prediction *string
}

func Idle() State { return State{} }

func Loading() State { return State{Loading: true} }

func FromVerdict(v model.Verdict) State {
	msg := v.Message()
	return State{Prediction: &msg}
}

func (s State) Status() Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.Prediction != nil:
		return StatusResult
	default:
		return StatusIdle
	}
}

func (s State) Text() string {
	if s.Prediction == nil {
		return ""
	}
	return *s.Prediction
}

func Render(w io.Writer, s State) error {
	return Templates.ExecuteTemplate(w, PageTemplate, s)
}
