// Package render compiles and renders handlebars templates, the syntax used
// by templates stored in SES.
package render

import (
	"fmt"

	"github.com/aymerick/raymond"
)

// Template is a compiled handlebars template.
type Template struct {
	tpl *raymond.Template
}

// Compile parses source into a reusable template.
func Compile(source string) (*Template, error) {
	tpl, err := raymond.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Template{tpl: tpl}, nil
}

// Render executes the template with data. Values are HTML-escaped unless the
// template uses triple braces.
func (t *Template) Render(data map[string]string) (string, error) {
	out, err := t.tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return out, nil
}

// String compiles and renders source in one step. An empty source renders to "".
func String(source string, data map[string]string) (string, error) {
	if source == "" {
		return "", nil
	}
	t, err := Compile(source)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
