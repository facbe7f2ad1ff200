// Package templates renders the response templates. The template set is
// parsed once at process start and shared read-only across turns.
// Rendering is byte-deterministic: templates receive only the supplied
// context, never ambient sources such as wall-clock time.
package templates

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

// ErrNotFound wraps lookups of unknown template paths.
var ErrNotFound = fmt.Errorf("templates: template not found")

// Engine holds the parsed template set. Template names are their paths
// relative to the template root, so templates can include one another by
// path.
type Engine struct {
	root *template.Template
}

// New parses every *.tmpl file under fsys into a shared namespace.
func New(fsys fs.FS) (*Engine, error) {
	root := template.New("").Option("missingkey=error")

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("templates: read %s: %w", path, err)
		}
		if _, err := root.New(path).Parse(string(src)); err != nil {
			return fmt.Errorf("templates: parse %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Engine{root: root}, nil
}

// MustNew is New for template sets embedded at build time.
func MustNew(fsys fs.FS) *Engine {
	e, err := New(fsys)
	if err != nil {
		panic(err)
	}
	return e
}

// Render executes the template at path with the given context.
func (e *Engine) Render(path string, ctx any) (string, error) {
	t := e.root.Lookup(path)
	if t == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", path, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderString parses and executes an inline template source against the
// shared namespace, so inline templates can include file templates.
func (e *Engine) RenderString(src string, ctx any) (string, error) {
	clone, err := e.root.Clone()
	if err != nil {
		return "", fmt.Errorf("templates: clone namespace: %w", err)
	}
	t, err := clone.New("inline").Parse(src)
	if err != nil {
		return "", fmt.Errorf("templates: parse inline: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("templates: execute inline: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Has reports whether a template exists at path.
func (e *Engine) Has(path string) bool {
	return e.root.Lookup(path) != nil
}
