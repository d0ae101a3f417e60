// Package render turns a melded context into document text through Go
// text/template, optionally rendering the result a second time.
package render

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/location"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/observability"
)

// BuiltinTemplate is used when a target names no template: the global
// frontmatter block followed by the content source.
const BuiltinTemplate = `{{ ._global_frontmatter.fenced }}{{ with .content }}{{ . }}{{ end }}`

// BuiltinName is the template name reported for BuiltinTemplate.
const BuiltinName = "<builtin>"

// Renderer loads templates and executes them.
type Renderer struct {
	fs           afero.Fs
	reader       location.Reader
	filters      *FilterSet
	templateRoot string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFS sets the filesystem templates are read from.
func WithFS(fsys afero.Fs) Option {
	return func(r *Renderer) { r.fs = fsys }
}

// WithFetcher enables URL templates.
func WithFetcher(f location.Fetcher) Option {
	return func(r *Renderer) { r.reader.Fetcher = f }
}

// WithFilters replaces the default filter set.
func WithFilters(f *FilterSet) Option {
	return func(r *Renderer) { r.filters = f }
}

// WithTemplateRoot sets the directory searched for bare template names that
// do not resolve next to the defining config. A target's mm_templates wins.
func WithTemplateRoot(dir string) Option {
	return func(r *Renderer) { r.templateRoot = dir }
}

// New creates a Renderer with DefaultFilters over the OS filesystem.
func New(opts ...Option) *Renderer {
	r := &Renderer{fs: afero.NewOsFs(), filters: DefaultFilters()}
	for _, opt := range opts {
		opt(r)
	}
	r.reader.FS = r.fs
	return r
}

// Template is a loaded, unparsed template.
type Template struct {
	Name string
	Body string
}

// Load finds the template spec names. An empty name selects BuiltinTemplate.
func (r *Renderer) Load(ctx context.Context, spec *config.TargetSpec) (Template, error) {
	name := spec.JinjaTemplate
	if name == "" {
		observability.WarnContext(ctx, "No template configured, using built-in template")
		return Template{Name: BuiltinName, Body: BuiltinTemplate}, nil
	}

	for _, candidate := range r.candidates(name, spec) {
		if !location.IsURL(candidate) && !r.reader.Exists(candidate) {
			continue
		}
		data, err := r.reader.Read(ctx, candidate)
		if err != nil {
			return Template{}, notFound(name, err)
		}
		observability.DebugContext(ctx, "Loaded template", logfields.Template(candidate))
		return Template{Name: candidate, Body: string(data)}, nil
	}
	return Template{}, notFound(name, nil)
}

func (r *Renderer) candidates(name string, spec *config.TargetSpec) []string {
	if location.IsURL(name) {
		return []string{name}
	}
	base := spec.DefPath
	if base == "" {
		base = spec.CfgFilePath
	}
	out := []string{location.Resolve(location.Expand(name), base)}

	root := spec.TemplateRoot
	if root == "" {
		root = r.templateRoot
	}
	if root != "" && !filepath.IsAbs(name) {
		root = location.Resolve(location.Expand(root), base)
		out = append(out, filepath.Join(root, name))
	}
	return out
}

func notFound(name string, cause error) error {
	msg := fmt.Sprintf("template %q not found", name)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return ferrors.WrapError(ErrTemplateNotFound, ferrors.CategoryTemplate, msg).
		WithContext("template", name).
		Build()
}

// Execute renders tpl against data. When double is true the output is parsed
// as a template itself and rendered again against the same data.
func (r *Renderer) Execute(tpl Template, data map[string]any, double bool) (string, error) {
	out, err := r.execute(tpl.Name, tpl.Body, data)
	if err != nil || !double {
		return out, err
	}
	return r.execute(tpl.Name+" (second pass)", out, data)
}

// Render loads the template for spec and executes it.
func (r *Renderer) Render(ctx context.Context, spec *config.TargetSpec, data map[string]any, double bool) (string, error) {
	tpl, err := r.Load(ctx, spec)
	if err != nil {
		return "", err
	}
	return r.Execute(tpl, data, double)
}

func (r *Renderer) execute(name, body string, data map[string]any) (string, error) {
	tpl, err := template.New(name).Funcs(r.filters.FuncMap()).Parse(body)
	if err != nil {
		return "", templateError(name, "parse", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", templateError(name, "execute", err)
	}
	return buf.String(), nil
}

func templateError(name, op string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryTemplate, fmt.Sprintf("%s template %s", op, name)).
		WithContext("template", name).
		Build()
}
