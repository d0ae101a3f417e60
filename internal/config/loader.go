package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/location"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/version"
)

// Loader reads configuration documents and resolves their imports.
type Loader struct {
	fs        afero.Fs
	reader    location.Reader
	factories *FactoryRegistry
	version   string

	imported map[string]bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the filesystem documents are read from.
func WithFS(fsys afero.Fs) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithFetcher enables URL imports.
func WithFetcher(f location.Fetcher) LoaderOption {
	return func(l *Loader) { l.reader.Fetcher = f }
}

// WithFactories replaces the default factory registry.
func WithFactories(r *FactoryRegistry) LoaderOption {
	return func(l *Loader) { l.factories = r }
}

// WithVersion sets the version checked against required_version.
func WithVersion(v string) LoaderOption {
	return func(l *Loader) { l.version = v }
}

// NewLoader creates a Loader reading from the OS filesystem.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:        afero.NewOsFs(),
		factories: DefaultFactories(),
		version:   version.Version,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.reader.FS = l.fs
	return l
}

// Load reads the document at path and everything it imports.
func (l *Loader) Load(ctx context.Context, path string) (*Tree, error) {
	if !location.IsURL(path) {
		abs, err := filepath.Abs(location.Expand(path))
		if err != nil {
			return nil, err
		}
		path = abs
	}
	l.imported = make(map[string]bool)

	root, err := l.load(ctx, path, "", true)
	if err != nil {
		return nil, err
	}
	return &Tree{Path: path, Root: root}, nil
}

func (l *Loader) load(ctx context.Context, path, workPath string, isRoot bool) (cfgtree.Value, error) {
	if l.imported[path] {
		slog.Debug("Configuration already imported", logfields.Path(path))
		return cfgtree.Mapping(nil), nil
	}
	l.imported[path] = true

	data, err := l.reader.Read(ctx, path)
	if err != nil {
		if isRoot {
			return cfgtree.Value{}, ferrors.WrapError(ErrConfigNotFound, ferrors.CategoryConfig,
				fmt.Sprintf("cannot read configuration: %v", err)).
				WithContext("path", path).
				Fatal().
				Build()
		}
		if errors.Is(err, fs.ErrNotExist) {
			slog.Error("Imported configuration not found", logfields.Path(path))
		} else {
			slog.Error("Imported configuration could not be read", logfields.Path(path), logfields.Error(err))
		}
		return cfgtree.Mapping(nil), nil
	}

	doc, err := l.parse(path, data)
	if err != nil {
		return cfgtree.Value{}, err
	}

	effectiveWork := workPath
	if effectiveWork == "" {
		effectiveWork = path
	}
	if err := stampTargets(doc, path, effectiveWork); err != nil {
		return cfgtree.Value{}, err
	}

	lower := cfgtree.Mapping(nil)
	imports, err := stringList(doc, KeyImports)
	if err != nil {
		return cfgtree.Value{}, parseError(path, err)
	}
	for _, imp := range imports {
		child, err := l.load(ctx, location.Resolve(imp, path), effectiveWork, false)
		if err != nil {
			return cfgtree.Value{}, err
		}
		if lower, err = DeepMerge(lower, child, true); err != nil {
			return cfgtree.Value{}, err
		}
	}
	relative, err := stringList(doc, KeyImportsRelative)
	if err != nil {
		return cfgtree.Value{}, parseError(path, err)
	}
	for _, imp := range relative {
		child, err := l.load(ctx, location.Resolve(imp, path), "", false)
		if err != nil {
			return cfgtree.Value{}, err
		}
		if lower, err = DeepMerge(lower, child, true); err != nil {
			return cfgtree.Value{}, err
		}
	}

	merged, err := DeepMerge(lower, cfgtree.Mapping(doc), true)
	if err != nil {
		return cfgtree.Value{}, err
	}
	return l.runFactories(ctx, doc, merged, path, effectiveWork)
}

func (l *Loader) parse(path string, data []byte) (*cfgtree.Map, error) {
	v, err := cfgtree.Parse(data)
	if err != nil {
		return nil, parseError(path, err)
	}
	if v.IsNull() {
		v = cfgtree.Mapping(nil)
	}
	if !v.IsMapping() {
		return nil, parseError(path, fmt.Errorf("document must be a mapping, got %s", v.Kind()))
	}
	doc := v.Map()

	if expand, ok := doc.Get(KeyExpandEnv); ok {
		if b, _ := expand.AsBool(); b {
			doc = cfgtree.MapStrings(v, os.ExpandEnv).Map()
		}
	}

	if rv, ok := doc.Get(KeyRequiredVersion); ok && !rv.IsNull() {
		if err := version.Check(rv.Text(), l.version); err != nil {
			if errors.Is(err, version.ErrUnknownVersion) {
				slog.Debug("Skipping required_version check for development build", logfields.Path(path))
			} else {
				return nil, ferrors.WrapError(ErrVersionConstraint, ferrors.CategoryConfig, err.Error()).
					WithContext("path", path).
					Fatal().
					Build()
			}
		}
	}

	doc.Set(KeyCfgFilePath, cfgtree.Scalar(path))
	return doc, nil
}

func (l *Loader) runFactories(ctx context.Context, doc *cfgtree.Map, merged cfgtree.Value, path, workPath string) (cfgtree.Value, error) {
	entries, ok := doc.Get(KeyTargetFactories)
	if !ok || entries.IsNull() {
		return merged, nil
	}
	if !entries.IsSequence() {
		return cfgtree.Value{}, parseError(path, fmt.Errorf("%s must be a list", KeyTargetFactories))
	}

	for _, entry := range entries.Items() {
		if !entry.IsMapping() {
			return cfgtree.Value{}, parseError(path, fmt.Errorf("%s entries must be {name: args} mappings", KeyTargetFactories))
		}
		var err error
		entry.Map().Range(func(name string, args cfgtree.Value) bool {
			merged, err = l.runFactory(ctx, name, args, merged, path, workPath)
			return err == nil
		})
		if err != nil {
			return cfgtree.Value{}, err
		}
	}
	return merged, nil
}

func (l *Loader) runFactory(ctx context.Context, name string, args, merged cfgtree.Value, path, workPath string) (cfgtree.Value, error) {
	factory, ok := l.factories.Get(name)
	if !ok {
		return cfgtree.Value{}, ferrors.WrapError(ErrUnknownFactory, ferrors.CategoryConfig,
			fmt.Sprintf("unknown target factory %q", name)).
			WithContext("path", path).
			WithContext("known", l.factories.Names()).
			Fatal().
			Build()
	}

	produced, err := factory(ctx, FactoryInput{
		Args: args,
		Tree: &Tree{Path: path, Root: merged},
		FS:   l.fs,
	})
	if err != nil {
		return cfgtree.Value{}, ferrors.WrapError(ErrFactoryFailed, ferrors.CategoryConfig,
			fmt.Sprintf("target factory %q failed: %v", name, err)).
			WithContext("path", path).
			Fatal().
			Build()
	}
	slog.Debug("Target factory produced targets", logfields.Factory(name), slog.Int("count", produced.Len()))

	fragment := cfgtree.NewMap()
	fragment.Set(KeyTargets, cfgtree.Mapping(produced))
	if err := stampTargets(fragment, path, workPath); err != nil {
		return cfgtree.Value{}, err
	}
	return DeepMerge(merged, cfgtree.Mapping(fragment), true)
}

// stampTargets records where each target was defined and where its command runs.
func stampTargets(doc *cfgtree.Map, defPath, workPath string) error {
	v, ok := doc.Get(KeyTargets)
	if !ok || v.IsNull() {
		return nil
	}
	if !v.IsMapping() {
		return parseError(defPath, fmt.Errorf("%s must be a mapping", KeyTargets))
	}
	targets := v.Map()
	for _, name := range targets.Keys() {
		t, _ := targets.Get(name)
		switch {
		case t.IsNull():
			t = cfgtree.Mapping(nil)
		case !t.IsMapping():
			return parseError(defPath, fmt.Errorf("target %q must be a mapping", name))
		}
		t.Map().Set(KeyDefPath, cfgtree.Scalar(defPath))
		t.Map().Set(KeyWorkPath, cfgtree.Scalar(workPath))
		targets.Set(name, t)
	}
	return nil
}

func stringList(doc *cfgtree.Map, key string) ([]string, error) {
	v, ok := doc.Get(key)
	if !ok || v.IsNull() {
		return nil, nil
	}
	if v.IsScalar() {
		return []string{v.Text()}, nil
	}
	if !v.IsSequence() {
		return nil, fmt.Errorf("%s must be a list", key)
	}
	out := make([]string, 0, len(v.Items()))
	for _, it := range v.Items() {
		if !it.IsScalar() {
			return nil, fmt.Errorf("%s entries must be paths", key)
		}
		out = append(out, it.Text())
	}
	return out, nil
}

func parseError(path string, err error) error {
	return ferrors.WrapError(ErrConfigParse, ferrors.CategoryConfig,
		fmt.Sprintf("invalid configuration: %v", err)).
		WithContext("path", path).
		Fatal().
		Build()
}
