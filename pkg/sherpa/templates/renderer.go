// Package templates provides a filesystem-backed implementation of the
// Template Renderer collaborator (§6): the Artifact Builder hands it a
// named template and a parameter struct and gets back rendered config
// text or JSON. Template bodies themselves are operator-supplied, not
// baked into the binary.
package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// funcs mirrors the small helper set newtlab's boot-patch templates use.
var funcs = template.FuncMap{
	"mul": func(a, b int) int { return a * b },
	"add": func(a, b int) int { return a + b },
}

// DirRenderer loads "*.tmpl" bodies from a root directory and renders
// them with text/template, caching parsed templates by name.
type DirRenderer struct {
	Root string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewDirRenderer returns a renderer reading templates from root.
func NewDirRenderer(root string) *DirRenderer {
	return &DirRenderer{Root: root, cache: map[string]*template.Template{}}
}

func (r *DirRenderer) parse(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[name]; ok {
		return t, nil
	}
	path := filepath.Join(r.Root, name+".tmpl")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	t, err := template.New(name).Funcs(funcs).Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", path, err)
	}
	r.cache[name] = t
	return t, nil
}

// RenderText renders templateName against params and returns the result
// as text (cloud-init user-data, interface config bodies, and the like).
func (r *DirRenderer) RenderText(templateName string, params interface{}) (string, error) {
	t, err := r.parse(templateName)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("templates: render %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// RenderJSON renders templateName and validates the result is well-formed
// JSON (used for the HTTP ZTP method's config_db.json document).
func (r *DirRenderer) RenderJSON(templateName string, params interface{}) ([]byte, error) {
	text, err := r.RenderText(templateName, params)
	if err != nil {
		return nil, err
	}
	raw := []byte(text)
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("templates: %s did not render valid JSON: %w", templateName, err)
	}
	return raw, nil
}
