package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{"index", "stream", "comments", "friends", "profile", "error"}

// page is the value every template is executed with.
type page struct {
	Title       string
	CurrentUser string
	Flashes     []Flash
	Data        interface{}
}

type fieldView struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
	Value       string
	Errors      []string
}

func formFields(f *Form) []fieldView {
	views := make([]fieldView, 0, len(f.Fields))
	for _, field := range f.Fields {
		views = append(views, fieldView{
			Name:        f.Prefix + field.Name,
			Label:       field.Label,
			Type:        field.Type,
			Placeholder: field.Placeholder,
			Value:       field.Value,
			Errors:      field.Errors,
		})
	}
	return views
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"fields": formFields,
		"datetime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04")
		},
	}
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// render executes the page into a buffer first so a template error still
// produces a clean 500 instead of half a page.
func (rd *renderer) render(w http.ResponseWriter, status int, name string, p page) error {
	t, ok := rd.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", p); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
