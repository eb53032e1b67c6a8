// Package tmpl renders the static templates the binding generators ship
// with. Rendering is a pure function of the template id and its context.
package tmpl

import (
	"bytes"
	"io/fs"
	"strconv"
	"strings"
	"text/template"

	"github.com/iancoleman/strcase"

	"github.com/wippyai/wasm-pack/errors"
)

// Set is a parsed collection of templates addressed by file name.
type Set struct {
	t *template.Template
}

// Funcs are available to every template.
var Funcs = template.FuncMap{
	"snake":  strcase.ToSnake,
	"camel":  strcase.ToLowerCamel,
	"pascal": strcase.ToCamel,
	"quote":  strconv.Quote,
	"join":   strings.Join,
}

// Parse loads every template in fsys matching pattern. Templates are named
// by their base file name without the ".tmpl" suffix, so
// "templates/index.js.tmpl" renders as "index.js".
func Parse(fsys fs.FS, pattern string) (*Set, error) {
	paths, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, errors.ParseFailed("template pattern "+pattern, err)
	}
	if len(paths) == 0 {
		return nil, errors.NotFound(errors.PhaseRender, "template pattern", pattern)
	}

	root := template.New("").Funcs(Funcs).Option("missingkey=error")
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, errors.Render(p, err)
		}
		name := strings.TrimSuffix(p[strings.LastIndexByte(p, '/')+1:], ".tmpl")
		if _, err := root.New(name).Parse(string(data)); err != nil {
			return nil, errors.Render(name, err)
		}
	}
	return &Set{t: root}, nil
}

// Must is like Parse but panics on error. It is meant for package-level
// variables holding embedded templates.
func Must(s *Set, err error) *Set {
	if err != nil {
		panic(err)
	}
	return s
}

// Render executes the template id with ctx.
func (s *Set) Render(id string, ctx any) (string, error) {
	t := s.t.Lookup(id)
	if t == nil {
		return "", errors.NotFound(errors.PhaseRender, "template", id)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", errors.Render(id, err)
	}
	return buf.String(), nil
}

// Names lists the templates in the set.
func (s *Set) Names() []string {
	var names []string
	for _, t := range s.t.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	return names
}
