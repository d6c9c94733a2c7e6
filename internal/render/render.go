// Package render writes a report document through text templates.
//
// Templates are resolved per format along a lookup chain (highest to
// lowest priority):
//  1. Explicit template directory (--templates flag or report.templates config)
//  2. .irsreport/templates/ (project-level)
//  3. <user config dir>/irsreport/templates/ (user-level)
//  4. Embedded default
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/sync/errgroup"

	"github.com/irsreport/irsreport/internal/debug"
	"github.com/irsreport/irsreport/internal/report"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// DefaultPrefix is prepended to output file names.
const DefaultPrefix = "irs_"

// Format is an output format.
type Format string

const (
	FormatTeX      Format = "tex"
	FormatMarkdown Format = "markdown"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatTeX, FormatMarkdown}
}

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tex", "latex":
		return FormatTeX, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: tex, markdown)", s)
}

// Ext returns the file extension of f.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

func (f Format) templateFile() string {
	return "report." + f.Ext() + ".tmpl"
}

func (f Format) dialect() dialect {
	if f == FormatMarkdown {
		return markdown
	}
	return tex
}

// LoadOptions configures template resolution.
type LoadOptions struct {
	// Dir overrides the lookup chain when it holds the format's template.
	Dir string

	// ProjectDir is the project .irsreport/ directory, used for
	// project-level templates.
	ProjectDir string
}

// Source returns where the template of f would be loaded from.
func Source(f Format, opts LoadOptions) string {
	_, source, err := resolve(f, opts)
	if err != nil {
		return "not found"
	}
	return source
}

// resolve walks the lookup chain and returns template content and its source.
func resolve(f Format, opts LoadOptions) ([]byte, string, error) {
	name := f.templateFile()

	// An explicit directory must hold the template.
	if opts.Dir != "" {
		path := filepath.Join(opts.Dir, name)
		content, err := os.ReadFile(path) // #nosec G304 - user-specified template dir
		if err != nil {
			return nil, "", fmt.Errorf("explicit template %s: %w", path, err)
		}
		return content, path, nil
	}

	if opts.ProjectDir != "" {
		path := filepath.Join(opts.ProjectDir, "templates", name)
		if content, err := os.ReadFile(path); err == nil { // #nosec G304 - project template path
			return content, path, nil
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(configDir, "irsreport", "templates", name)
		if content, err := os.ReadFile(path); err == nil { // #nosec G304 - user config template path
			return content, path, nil
		}
	}

	content, err := defaultTemplates.ReadFile("templates/" + name)
	if err != nil {
		return nil, "", fmt.Errorf("embedded default template not found: %w", err)
	}
	return content, "embedded:" + name, nil
}

// Load resolves and parses the template of f with helpers bound to doc.
func Load(f Format, doc *report.Document, opts LoadOptions) (*template.Template, error) {
	content, source, err := resolve(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template: %w", err)
	}
	debug.Logf("template: loaded %s from %s\n", f.templateFile(), source)

	tmpl, err := template.New(f.templateFile()).
		Option("missingkey=error").
		Funcs(f.dialect().funcs(doc)).
		Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", source, err)
	}
	return tmpl, nil
}

// Render writes doc in format f to w.
func Render(w io.Writer, f Format, doc *report.Document, opts LoadOptions) error {
	tmpl, err := Load(f, doc, opts)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, doc); err != nil {
		return fmt.Errorf("failed to render %s report: %w", f, err)
	}
	return nil
}

// Options configures WriteAll.
type Options struct {
	OutputDir string
	// Prefix is prepended to the file name; empty means DefaultPrefix.
	Prefix    string
	Formats   []Format
	Templates LoadOptions
}

// OutputPath returns the file a format is written to: <prefix>report.<ext>.
func OutputPath(dir, prefix string, f Format) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return filepath.Join(dir, prefix+"report."+f.Ext())
}

// WriteAll renders every requested format concurrently and returns the
// written paths in format order. doc is only read.
func WriteAll(ctx context.Context, doc *report.Document, opts Options) ([]string, error) {
	if len(opts.Formats) == 0 {
		return nil, fmt.Errorf("no output formats requested")
	}
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	paths := make([]string, len(opts.Formats))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range opts.Formats {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := Render(&buf, f, doc, opts.Templates); err != nil {
				return err
			}
			path := OutputPath(opts.OutputDir, opts.Prefix, f)
			// #nosec G306 - reports are meant to be shared
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
