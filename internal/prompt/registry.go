// Package prompt loads the prompt templates the agents send to the
// language model.
package prompt

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Placeholders recognised by Fill. Replacement is literal.
const (
	PlaceholderTime  = "{{CURRENT_TIME}}"
	PlaceholderDate  = "{{CURRENT_DATE}}"
	PlaceholderInput = "{{USER_INPUT}}"
)

//go:embed defaults/*.md
var defaultFS embed.FS

// Template is one prompt file.
type Template struct {
	Name        string
	Description string
	Path        string
	Text        string
}

// Fill substitutes the placeholders in the template. A template without
// a {{USER_INPUT}} placeholder gets the input appended after a blank line.
func (t Template) Fill(now time.Time, input string) string {
	r := strings.NewReplacer(
		PlaceholderTime, now.Format(time.RFC3339),
		PlaceholderDate, now.Format(time.DateOnly),
		PlaceholderInput, input,
	)
	out := r.Replace(t.Text)
	if !strings.Contains(t.Text, PlaceholderInput) {
		out += "\n\nUser Input: " + input
	}
	return out
}

// Registry discovers templates by scanning for *.md files carrying YAML
// frontmatter. Templates are read once; the registry is not modified
// after startup.
type Registry struct {
	templates map[string]Template
}

// frontmatter holds the YAML fields parsed from a template's front matter.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// NewRegistry returns a registry holding the built-in templates, overridden
// by any same-named templates found in dirs.
func NewRegistry(dirs []string) (*Registry, error) {
	r := &Registry{}
	sub, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("opening built-in prompts: %w", err)
	}
	if err := r.Scan(sub); err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue // a missing override directory is not an error
		}
		if err := r.Scan(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	return r, nil
}

// Scan walks fsys looking for template files. Files without valid
// frontmatter are skipped. A template replaces any earlier one of the
// same name.
func (r *Registry) Scan(fsys fs.FS) error {
	if r.templates == nil {
		r.templates = make(map[string]Template)
	}
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() || path.Ext(d.Name()) != ".md" {
			return nil
		}

		tpl, err := parseTemplateFile(fsys, p)
		if err != nil {
			return nil // skip malformed files
		}

		r.templates[tpl.Name] = tpl
		return nil
	})
}

// Get returns the template registered under name.
func (r *Registry) Get(name string) (Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// MustGet is Get for callers that cannot run without the template.
func (r *Registry) MustGet(name string) (Template, error) {
	t, ok := r.Get(name)
	if !ok {
		return Template{}, fmt.Errorf("prompt template %q not found", name)
	}
	if strings.TrimSpace(t.Text) == "" {
		return Template{}, fmt.Errorf("prompt template %q is empty", name)
	}
	return t, nil
}

// Templates returns all templates sorted by name.
func (r *Registry) Templates() []Template {
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// parseTemplateFile reads a template file: YAML frontmatter delimited by
// "---" lines, followed by the template body.
func parseTemplateFile(fsys fs.FS, p string) (Template, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return Template{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	// First line must be "---"
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return Template{}, fmt.Errorf("%s: missing opening frontmatter delimiter", p)
	}

	var header []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		header = append(header, line)
	}
	if !closed || len(header) == 0 {
		return Template{}, fmt.Errorf("%s: empty or unterminated frontmatter", p)
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Template{}, fmt.Errorf("%s: reading: %w", p, err)
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(header, "\n")), &fm); err != nil {
		return Template{}, fmt.Errorf("%s: parsing frontmatter: %w", p, err)
	}
	if fm.Name == "" {
		return Template{}, fmt.Errorf("%s: frontmatter missing name", p)
	}

	return Template{
		Name:        fm.Name,
		Description: fm.Description,
		Path:        p,
		Text:        strings.TrimSpace(strings.Join(body, "\n")),
	}, nil
}
