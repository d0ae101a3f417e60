package target

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

func tree(t *testing.T, src string) *config.Tree {
	t.Helper()
	v, err := cfgtree.Parse([]byte(src))
	require.NoError(t, err)
	return config.NewTree("/proj/_docmeld.yaml", v.Map())
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
}

func resolve(t *testing.T, tr *config.Tree, name string, vars ...Var) *Resolved {
	t.Helper()
	r, err := NewResolver(WithClock(fixedClock)).Resolve(tr, name, vars)
	require.NoError(t, err)
	return r
}

func TestResolve_InheritanceOrder(t *testing.T) {
	tr := tree(t, `
targets:
  A: {k1: a, k4: a}
  B: {k2: b, k4: b}
  C:
    inherit_from: [A, B]
    k3: c
`)
	p := resolve(t, tr, "C").Params

	require.Equal(t, "a", p.GetString("k1"))
	require.Equal(t, "b", p.GetString("k2"))
	require.Equal(t, "c", p.GetString("k3"))
	require.Equal(t, "b", p.GetString("k4"))
}

func TestResolve_MultiLevelInheritance(t *testing.T) {
	tr := tree(t, `
targets:
  base:
    abstract: true
    x: base
    nested: {a: 1, b: 1}
  mid:
    inherit_from: base
    x: mid
    nested: {b: 2}
  leaf:
    inherit_from: mid
    nested: {c: 3}
`)
	r := resolve(t, tr, "leaf")

	require.Equal(t, "mid", r.Params.GetString("x"))
	nested, _ := r.Params.Get("nested")
	require.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, nested.Interface())
	require.False(t, r.Spec.Abstract)
	require.False(t, r.Params.Has("abstract"))
}

func TestResolve_OwnFieldsBeatParentsAndVarsBeatAll(t *testing.T) {
	tr := tree(t, `
targets:
  p: {output_file: parent.pdf, author: parent}
  c: {inherit_from: p, output_file: child.pdf}
`)
	r := resolve(t, tr, "c", Var{Key: "author", Value: "cli"}, Var{Key: "extra", Value: "a=b"})

	require.Equal(t, "child.pdf", r.Spec.OutputFile)
	require.Equal(t, "cli", r.Params.GetString("author"))
	require.Equal(t, "a=b", r.Params.GetString("extra"))
}

func TestResolve_SeedsAndStamp(t *testing.T) {
	r := resolve(t, tree(t, "targets:\n  t: {}\n"), "t")

	require.Equal(t, "2024-03-09", r.Params.GetString(ParamToday))
	require.Equal(t, "1709978400", r.Params.GetString(ParamNow))
	require.Equal(t, "/proj/_docmeld.yaml", r.Params.GetString(config.KeyCfgFilePath))
	require.Equal(t, "/proj/_docmeld.yaml", r.Spec.CfgFilePath)
}

func TestResolve_DefaultCommand(t *testing.T) {
	tr := tree(t, `
targets:
  bare: {}
  out: {output_file: x.pdf}
  both: {output_file: x.pdf, latex_template: t.tex}
  explicit: {command: "cat", output_file: x.pdf}
`)
	require.Equal(t, "pandoc", resolve(t, tr, "bare").Spec.Command)
	require.Equal(t, `pandoc --output "{output_file}"`, resolve(t, tr, "out").Spec.Command)
	require.Equal(t, `pandoc --template "{latex_template}" --output "{output_file}"`, resolve(t, tr, "both").Spec.Command)
	require.Equal(t, "cat", resolve(t, tr, "explicit").Spec.Command)
}

func TestResolve_SharedDataIsBase(t *testing.T) {
	tr := tree(t, `
data:
  variables: {org: ACME, year: 2023}
targets:
  t:
    data:
      variables: {year: 2024}
`)
	r := resolve(t, tr, "t")
	require.Equal(t, "ACME", r.Spec.Data.Variables.GetString("org"))
	year, _ := r.Spec.Data.Variables.Get("year")
	require.Equal(t, 2024, year.ScalarValue())
}

func TestResolve_RootTemplateRootIsBase(t *testing.T) {
	tr := tree(t, `
mm_templates: ~/templates
unrelated: ignored
targets:
  plain: {}
  own:
    mm_templates: /srv/templates
`)
	plain := resolve(t, tr, "plain")
	require.Equal(t, "~/templates", plain.Spec.TemplateRoot)
	require.False(t, plain.Params.Has("unrelated"))
	require.Equal(t, "/srv/templates", resolve(t, tr, "own").Spec.TemplateRoot)
}

func TestResolve_Errors(t *testing.T) {
	res := NewResolver()

	_, err := res.Resolve(tree(t, "x: 1\n"), "t", nil)
	require.ErrorIs(t, err, ErrNoTargetsDefined)

	_, err = res.Resolve(tree(t, "targets:\n  a: {}\n"), "missing", nil)
	require.ErrorIs(t, err, ErrTargetNotFound)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	_, err = res.Resolve(tree(t, "targets:\n  a: {inherit_from: ghost}\n"), "a", nil)
	require.ErrorIs(t, err, ErrTargetNotFound)
	require.Contains(t, err.Error(), "inherited by")

	_, err = res.Resolve(tree(t, "targets:\n  a: {inherit_from: b}\n  b: {inherit_from: a}\n"), "a", nil)
	require.ErrorIs(t, err, ErrInheritanceCycle)

	_, err = res.Resolve(tree(t, "targets:\n  a: {type: nonsense}\n"), "a", nil)
	require.ErrorIs(t, err, config.ErrInvalidTarget)
}

func TestResolve_DoesNotMutateTree(t *testing.T) {
	tr := tree(t, "targets:\n  p: {nested: {a: 1}}\n  c: {inherit_from: p, nested: {b: 2}}\n")
	_ = resolve(t, tr, "c", Var{Key: "nested", Value: "flat"})

	spec, _ := tr.Target("p")
	nested, _ := spec.Get("nested")
	require.Equal(t, map[string]any{"a": 1}, nested.Interface())
}

func TestWithParam(t *testing.T) {
	r := resolve(t, tree(t, "targets:\n  t: {}\n"), "t")
	bound, err := r.WithParam("person", cfgtree.Scalar("Jane"))
	require.NoError(t, err)

	require.Equal(t, "Jane", bound.Params.GetString("person"))
	require.False(t, r.Params.Has("person"))
}

func TestParseVars(t *testing.T) {
	vars, err := ParseVars([]string{"a=1", "b=x=y", "c="})
	require.NoError(t, err)
	require.Equal(t, []Var{{"a", "1"}, {"b", "x=y"}, {"c", ""}}, vars)

	_, err = ParseVars([]string{"novalue"})
	require.ErrorIs(t, err, ErrInvalidVar)
	_, err = ParseVars([]string{"=v"})
	require.ErrorIs(t, err, ErrInvalidVar)
}
