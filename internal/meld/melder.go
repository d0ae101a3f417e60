// Package meld combines a target's YAML and Markdown data sources into one
// render context.
package meld

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/frontmatter"
	"git.home.luguber.info/inful/docmeld/internal/location"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/observability"
)

// FrontmatterPrefix marks YAML sources and variables that feed global frontmatter.
// A variable named frontmatter_title contributes the key title.
const FrontmatterPrefix = "frontmatter"

// Input is what one meld operates on.
type Input struct {
	Data config.DataSpec
	// DefPath is the document that defined the target; relative refs resolve against it.
	DefPath string
	// Params are the resolved target parameters. They seed the context.
	Params *cfgtree.Map
}

// Result is a melded context plus the sources that degraded to empty values.
type Result struct {
	Context  Context
	Warnings error
}

// Melder reads data sources.
type Melder struct {
	fs     afero.Fs
	reader location.Reader
}

// Option configures a Melder.
type Option func(*Melder)

// WithFS sets the filesystem local sources are read from.
func WithFS(fsys afero.Fs) Option {
	return func(m *Melder) { m.fs = fsys }
}

// WithFetcher enables URL sources.
func WithFetcher(f location.Fetcher) Option {
	return func(m *Melder) { m.reader.Fetcher = f }
}

// New creates a Melder reading from the OS filesystem.
func New(opts ...Option) *Melder {
	m := &Melder{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(m)
	}
	m.reader.FS = m.fs
	return m
}

// state accumulates one meld.
type state struct {
	root     *cfgtree.Map
	raw      map[string]any
	yaml     *cfgtree.Map
	md       map[string]any
	local    map[string]any
	mdFM     *cfgtree.Map
	yamlFM   *cfgtree.Map
	varFM    *cfgtree.Map
	warnings *multierror.Error
}

// Meld resolves every source in in.Data. YAML sources are processed first,
// then Markdown, then variables. Unreadable sources are logged, collected in
// Result.Warnings and contribute empty values; only malformed glob patterns
// and internal failures are returned as errors.
func (m *Melder) Meld(ctx context.Context, in Input) (*Result, error) {
	ctx = observability.WithStage(ctx, "meld")
	s := &state{
		root:   in.Params.Clone(),
		raw:    map[string]any{},
		yaml:   cfgtree.NewMap(),
		md:     map[string]any{},
		local:  map[string]any{},
		mdFM:   cfgtree.NewMap(),
		yamlFM: cfgtree.NewMap(),
		varFM:  cfgtree.NewMap(),
	}
	d := in.Data

	for _, pattern := range d.YamlGlobsUnkeyed {
		files, err := m.glob(pattern, in.DefPath)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			m.yamlSource(ctx, s, location.Stem(f), f, true)
		}
	}
	for _, pattern := range d.YamlGlobs {
		files, err := m.glob(pattern, in.DefPath)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			m.yamlSource(ctx, s, location.Stem(f), f, false)
		}
	}
	for _, src := range d.YamlFiles {
		ref := ""
		if src.Ref != "" {
			ref = location.Resolve(src.Ref, in.DefPath)
		}
		m.yamlSource(ctx, s, src.Key, ref, false)
	}

	for _, pattern := range d.MdGlobs {
		files, err := m.glob(pattern, in.DefPath)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := m.markdownSource(ctx, s, location.Stem(f), f); err != nil {
				return nil, err
			}
		}
	}
	for _, src := range d.MdFiles {
		ref := ""
		if src.Ref != "" {
			ref = location.Resolve(src.Ref, in.DefPath)
		}
		if err := m.markdownSource(ctx, s, src.Key, ref); err != nil {
			return nil, err
		}
	}

	d.Variables.Range(func(k string, v cfgtree.Value) bool {
		if suffix, ok := strings.CutPrefix(k, FrontmatterPrefix+"_"); ok && suffix != "" {
			s.varFM.Set(suffix, v.Clone())
		}
		return true
	})
	s.root = cfgtree.MergeMaps(s.root, d.Variables)

	global := cfgtree.MergeMaps(cfgtree.MergeMaps(s.mdFM, s.yamlFM), s.varFM)
	globalViews, err := frontmatterViews(global)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "render global frontmatter").Build()
	}
	globalVars := cfgtree.MergeMaps(cfgtree.MergeMaps(in.Params, global), d.Variables)

	out := Context(s.root.Interface())
	out[KeyRaw] = s.raw
	out[KeyYAML] = s.yaml.Interface()
	out[KeyMarkdown] = s.md
	out[KeyLocalFrontmatter] = s.local
	out[KeyGlobalFrontmatter] = globalViews
	out[KeyGlobalVars] = globalVars.Interface()

	if d.GitInfo {
		info, err := gitInfo(location.Dir(in.DefPath))
		if err != nil {
			m.warn(ctx, s, "git", in.DefPath, err)
			info = map[string]any{"commit": "", "short_commit": "", "branch": ""}
		}
		out[KeyGit] = info
	}

	return &Result{Context: out, Warnings: s.warnings.ErrorOrNil()}, nil
}

func (m *Melder) glob(pattern, defPath string) ([]string, error) {
	resolved := location.Resolve(pattern, defPath)
	if location.IsURL(resolved) {
		return nil, ferrors.WrapError(config.ErrInvalidTarget, ferrors.CategoryValidation,
			fmt.Sprintf("glob pattern %q cannot address a URL", pattern)).Build()
	}
	files, err := location.Glob(m.fs, resolved)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation,
			fmt.Sprintf("invalid glob pattern %q", pattern)).Build()
	}
	return files, nil
}

func (m *Melder) yamlSource(ctx context.Context, s *state, key, ref string, unkeyed bool) {
	value := cfgtree.Mapping(nil)
	if ref != "" {
		data, err := m.reader.Read(ctx, ref)
		if err == nil {
			value, err = cfgtree.Parse(data)
		}
		if err != nil {
			m.warn(ctx, s, key, ref, err)
			value = cfgtree.Mapping(nil)
		}
		if value.IsNull() {
			value = cfgtree.Mapping(nil)
		}
	}

	dumped, err := cfgtree.Dump(value)
	if err != nil {
		m.warn(ctx, s, key, ref, err)
	}
	s.raw[key] = dumped

	if unkeyed {
		if !value.IsMapping() {
			m.warn(ctx, s, key, ref, fmt.Errorf("unkeyed YAML must be a mapping, got %s", value.Kind()))
			return
		}
		s.root = cfgtree.MergeMaps(s.root, value.Map())
		s.yaml = cfgtree.MergeMaps(s.yaml, value.Map())
	} else {
		s.root.Set(key, value)
		s.yaml.Set(key, value)
	}

	if isFrontmatterKey(key) {
		if value.IsMapping() {
			s.yamlFM = cfgtree.MergeMaps(s.yamlFM, value.Map())
		} else {
			m.warn(ctx, s, key, ref, fmt.Errorf("frontmatter source must be a mapping, got %s", value.Kind()))
		}
	}
}

func (m *Melder) markdownSource(ctx context.Context, s *state, key, ref string) error {
	doc := &frontmatter.Document{Meta: cfgtree.NewMap()}
	if ref != "" {
		data, err := m.reader.Read(ctx, ref)
		if err != nil {
			m.warn(ctx, s, key, ref, err)
		} else if parsed, perr := frontmatter.Parse(data); perr != nil {
			m.warn(ctx, s, key, ref, perr)
			doc = &frontmatter.Document{Meta: cfgtree.NewMap(), Body: string(data), Raw: string(data)}
		} else {
			doc = parsed
		}
	}

	views, err := frontmatterViews(doc.Meta)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "render frontmatter").
			WithContext("source", key).
			Build()
	}
	s.root.Set(key, cfgtree.Scalar(doc.Body))
	s.md[key] = doc.Body
	s.raw[key] = doc.Raw
	s.local[key] = views
	s.mdFM = cfgtree.MergeMaps(s.mdFM, doc.Meta)
	return nil
}

func (m *Melder) warn(ctx context.Context, s *state, key, ref string, cause error) {
	err := ferrors.WrapError(ErrDataFileMissing, ferrors.CategoryData,
		fmt.Sprintf("data source %q: %v", key, cause)).
		WithContext("source", key).
		WithContext("ref", ref).
		Warning().
		Build()
	s.warnings = multierror.Append(s.warnings, err)
	observability.WarnContext(ctx, "Data source unavailable, using empty value",
		logfields.SourceKey(key), logfields.Path(ref), slog.String("reason", cause.Error()))
}

func isFrontmatterKey(key string) bool {
	return key == FrontmatterPrefix || strings.HasPrefix(key, FrontmatterPrefix+"_")
}

// WarningCount reports how many sources degraded.
func (r *Result) WarningCount() int {
	var merr *multierror.Error
	if errors.As(r.Warnings, &merr) {
		return merr.Len()
	}
	if r.Warnings != nil {
		return 1
	}
	return 0
}
