// Package target turns a named target of a loaded configuration into a fully
// resolved parameter set.
package target

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

// DefaultRenderer is the command used when a target names none.
const DefaultRenderer = "pandoc"

// Parameters seeded into every resolved target.
const (
	ParamToday = "today"
	ParamNow   = "now"
)

// Resolved is a target ready to build. Params is the build's own copy.
type Resolved struct {
	Name   string
	Params *cfgtree.Map
	Spec   config.TargetSpec
}

// WithParam returns a copy of r with key bound to v in its parameters.
func (r *Resolved) WithParam(key string, v cfgtree.Value) (*Resolved, error) {
	params := r.Params.Clone()
	params.Set(key, v)
	spec, err := config.DecodeTarget(r.Name, params)
	if err != nil {
		return nil, err
	}
	return &Resolved{Name: r.Name, Params: params, Spec: spec}, nil
}

// Resolver builds Resolved targets.
type Resolver struct {
	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve applies, in order: date seeds, the document's shared data, the
// inheritance chain, the target's own fields, the config path stamp and vars.
// A default command is synthesized when none is set.
func (r *Resolver) Resolve(tree *config.Tree, name string, vars []Var) (*Resolved, error) {
	if !tree.HasTargets() {
		return nil, ferrors.WrapError(ErrNoTargetsDefined, ferrors.CategoryConfig,
			"configuration defines no targets").
			WithContext("path", tree.Path).
			Build()
	}
	targets := tree.Targets()
	if !targets.Has(name) {
		return nil, notFound(name, "", targets)
	}

	now := r.now()
	params := cfgtree.NewMap()
	params.Set(ParamToday, cfgtree.Scalar(strftime.Format("%Y-%m-%d", now)))
	params.Set(ParamNow, cfgtree.Scalar(strconv.FormatInt(now.Unix(), 10)))
	if shared, ok := tree.Root.Map().Get(config.KeyData); ok && shared.IsMapping() {
		params.Set(config.KeyData, shared.Clone())
	}
	if root, ok := tree.Root.Map().Get(config.KeyTemplateRoot); ok && root.IsScalar() {
		params.Set(config.KeyTemplateRoot, root.Clone())
	}

	chain, err := inherit(targets, name, nil)
	if err != nil {
		return nil, err
	}
	params = cfgtree.MergeMaps(params, chain.Map())
	params.Set(config.KeyCfgFilePath, cfgtree.Scalar(tree.Path))

	if len(vars) > 0 {
		overrides := cfgtree.NewMap()
		for _, v := range vars {
			overrides.Set(v.Key, cfgtree.Scalar(v.Value))
		}
		params = cfgtree.MergeMaps(params, overrides)
	}

	if !params.Has(config.KeyCommand) {
		params.Set(config.KeyCommand, cfgtree.Scalar(DefaultCommand(params)))
	}

	spec, err := config.DecodeTarget(name, params)
	if err != nil {
		return nil, err
	}
	return &Resolved{Name: name, Params: params, Spec: spec}, nil
}

// inherit returns name's spec merged over its fully resolved parents.
func inherit(targets *cfgtree.Map, name string, stack []string) (cfgtree.Value, error) {
	for _, seen := range stack {
		if seen == name {
			cycle := append(append([]string{}, stack...), name)
			return cfgtree.Value{}, ferrors.WrapError(ErrInheritanceCycle, ferrors.CategoryConfig,
				"inheritance cycle: "+strings.Join(cycle, " -> ")).
				WithContext("target", name).
				Build()
		}
	}

	own, ok := targets.Get(name)
	if !ok {
		referrer := ""
		if len(stack) > 0 {
			referrer = stack[len(stack)-1]
		}
		return cfgtree.Value{}, notFound(name, referrer, targets)
	}
	if own.IsNull() {
		own = cfgtree.Mapping(nil)
	}

	parents, err := inheritList(name, own)
	if err != nil {
		return cfgtree.Value{}, err
	}
	acc := cfgtree.Mapping(nil)
	for _, parent := range parents {
		pv, err := inherit(targets, parent, append(stack, name))
		if err != nil {
			return cfgtree.Value{}, err
		}
		pm := pv.Map().Clone()
		pm.Delete(config.KeyAbstract)
		acc = cfgtree.Merge(acc, cfgtree.Mapping(pm))
	}
	return cfgtree.Merge(acc, own), nil
}

func inheritList(name string, spec cfgtree.Value) ([]string, error) {
	v, ok := spec.Map().Get(config.KeyInheritFrom)
	if !ok || v.IsNull() {
		return nil, nil
	}
	if v.IsScalar() {
		return []string{v.Text()}, nil
	}
	if !v.IsSequence() {
		return nil, ferrors.WrapError(config.ErrInvalidTarget, ferrors.CategoryValidation,
			fmt.Sprintf("target %q: inherit_from must be a name or list of names", name)).
			Build()
	}
	out := make([]string, 0, len(v.Items()))
	for _, it := range v.Items() {
		out = append(out, it.Text())
	}
	return out, nil
}

// DefaultCommand synthesizes the renderer invocation from latex_template and output_file.
func DefaultCommand(params *cfgtree.Map) string {
	var opts []string
	if isSet(params, "latex_template") {
		opts = append(opts, `--template "{latex_template}"`)
	}
	if isSet(params, config.KeyOutputFile) {
		opts = append(opts, `--output "{output_file}"`)
	}
	return strings.TrimSpace(DefaultRenderer + " " + strings.Join(opts, " "))
}

func isSet(params *cfgtree.Map, key string) bool {
	v, ok := params.Get(key)
	return ok && !v.IsNull() && v.Text() != ""
}

func notFound(name, referrer string, targets *cfgtree.Map) error {
	msg := fmt.Sprintf("target %q not found", name)
	if referrer != "" {
		msg = fmt.Sprintf("target %q (inherited by %q) not found", name, referrer)
	}
	return ferrors.WrapError(ErrTargetNotFound, ferrors.CategoryNotFound, msg).
		WithContext("target", name).
		WithContext("available", strings.Join(targets.Keys(), ", ")).
		Build()
}
