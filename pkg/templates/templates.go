// Package templates renders CLI output through text/template. Built-in
// row templates can be overridden by files and replaced per command with
// --format.
package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"launchpad/pkg/fileutil"

	"github.com/dustin/go-humanize"
)

// Template names
const (
	ProjectRow    = "project-row"
	DeploymentRow = "deployment-row"
	LogLine       = "log-line"
	User          = "user"
	AnalyticsRow  = "analytics-row"
)

var builtins = map[string]string{
	ProjectRow:    `{{pad 36 .ID}}  {{pad 24 .Name}}  {{pad 28 .SubDomain}}  {{ago .CreatedAt}}`,
	DeploymentRow: `{{pad 36 .ID}}  #{{pad 4 .Sequence}}  {{status .Status}}  {{ago .CreatedAt}}`,
	LogLine:       `{{date .CreatedAt}}  {{.Log}}`,
	User:          `{{.Name}} <{{.Email}}>{{if not .IsVerified}} (unverified){{end}}`,
	AnalyticsRow:  `{{.Date}}  {{pad 10 (comma .Count)}}  {{ms .ResponseTimeMs}}`,
}

// Funcs returns the functions available to every template. status is
// the identity here; callers may replace it to add color.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return humanize.Time(t)
		},
		"date": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04:05")
		},
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"ms": func(p *int) string {
			if p == nil {
				return "-"
			}
			return fmt.Sprintf("%dms", *p)
		},
		"pad": func(width int, v any) string {
			return fmt.Sprintf("%-*v", width, v)
		},
		"truncate": func(n int, s string) string {
			if len(s) <= n {
				return s
			}
			if n <= 3 {
				return s[:n]
			}
			return s[:n-3] + "..."
		},
		"json": func(v any) (string, error) {
			data, err := json.Marshal(v)
			return string(data), err
		},
		"upper":  strings.ToUpper,
		"lower":  strings.ToLower,
		"join":   strings.Join,
		"status": func(s string) string { return fmt.Sprintf("%-7s", s) },
	}
}

// GetTemplatePaths returns the override search paths for a template
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".tmpl"
	paths := []string{filepath.Join(".", "templates", filename)}
	if dir, err := fileutil.UserDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "templates", filename))
	}
	return paths
}

// GetTemplate returns the raw template text by name.
// Templates are loaded in the following order:
// 1. ./templates/<name>.tmpl
// 2. <user config dir>/launchpad/templates/<name>.tmpl
// 3. the built-in template
func GetTemplate(name string) (string, error) {
	if !ValidateTemplate(name) {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	for _, path := range GetTemplatePaths(name) {
		if content, err := os.ReadFile(path); err == nil {
			return strings.TrimRight(string(content), "\n"), nil
		}
	}

	return builtins[name], nil
}

// Parse compiles text with the standard functions plus extra
func Parse(name, text string, extra template.FuncMap) (*template.Template, error) {
	funcs := Funcs()
	for k, v := range extra {
		funcs[k] = v
	}

	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// Load compiles format when set, otherwise the named template
func Load(format, name string, extra template.FuncMap) (*template.Template, error) {
	if format != "" {
		return Parse("format", format, extra)
	}

	text, err := GetTemplate(name)
	if err != nil {
		return nil, err
	}
	return Parse(name, text, extra)
}

// Render executes tmpl with data
func Render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// ListTemplates returns the names of all built-in templates
func ListTemplates() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateTemplate checks if a template name is valid
func ValidateTemplate(name string) bool {
	_, ok := builtins[name]
	return ok
}
