package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
)

func parse(t *testing.T, src string) cfgtree.Value {
	t.Helper()
	v, err := cfgtree.Parse([]byte(src))
	require.NoError(t, err)
	return v
}

func TestDeepMerge_DetectsRedefinition(t *testing.T) {
	a := parse(t, "targets:\n  x:\n    _defpath: /a.yaml\n")
	b := parse(t, "targets:\n  x:\n    _defpath: /b.yaml\n")

	_, err := DeepMerge(a, b, true)
	require.ErrorIs(t, err, ErrTargetRedefinition)
	require.Contains(t, err.Error(), "/a.yaml")
	require.Contains(t, err.Error(), "/b.yaml")
}

func TestDeepMerge_OptOut(t *testing.T) {
	a := parse(t, "targets:\n  x:\n    k: 1\n")
	b := parse(t, "targets:\n  x:\n    k: 2\n")

	got, err := DeepMerge(a, b, false)
	require.NoError(t, err)
	v, ok := cfgtree.Lookup(got, "targets.x.k")
	require.True(t, ok)
	require.Equal(t, 2, v.ScalarValue())
}

func TestDeepMerge_DisjointTargets(t *testing.T) {
	a := parse(t, "targets:\n  x: {}\n")
	b := parse(t, "targets:\n  y: {}\n")

	got, err := DeepMerge(a, b, true)
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, NewTree("", got.Map()).Buildable())
}
