package meld

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/config"
	"git.home.luguber.info/inful/docmeld/internal/fetch"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

const defPath = "/project/_docmeld.yaml"

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return fsys
}

func vars(t *testing.T, src string) *cfgtree.Map {
	t.Helper()
	v, err := cfgtree.Parse([]byte(src))
	require.NoError(t, err)
	return v.Map()
}

func meld(t *testing.T, fsys afero.Fs, data config.DataSpec, params *cfgtree.Map) *Result {
	t.Helper()
	res, err := New(WithFS(fsys)).Meld(context.Background(), Input{Data: data, DefPath: defPath, Params: params})
	require.NoError(t, err)
	return res
}

func TestMeld_FrontmatterPrecedence(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"/project/doc.md":       "---\nx: 1\nauthor: Ann\n---\n# Body\n",
		"/project/fm_extra.yaml": "x: 2\nsubtitle: Draft\n",
	})
	data := config.DataSpec{
		MdFiles:   []config.Source{{Key: "content", Ref: "doc.md"}},
		YamlFiles: []config.Source{{Key: "frontmatter_extra", Ref: "fm_extra.yaml"}},
		Variables: vars(t, "frontmatter_x: 3\nplain: true\n"),
	}

	res := meld(t, fsys, data, cfgtree.NewMap())
	require.NoError(t, res.Warnings)

	global := res.Context[KeyGlobalFrontmatter].(map[string]any)
	require.Empty(t, cmp.Diff(map[string]any{"x": 3, "author": "Ann", "subtitle": "Draft"}, global["dict"]))
	require.Equal(t, "---\nx: 3\nauthor: Ann\nsubtitle: Draft\n---\n", global["fenced"])
	require.Equal(t, "x: 3\nauthor: Ann\nsubtitle: Draft\n", global["yaml"])

	local := res.Context[KeyLocalFrontmatter].(map[string]any)["content"].(map[string]any)
	require.Empty(t, cmp.Diff(map[string]any{"x": 1, "author": "Ann"}, local["dict"]))

	require.Equal(t, "# Body\n", res.Context["content"])
	require.Equal(t, "# Body\n", res.Context[KeyMarkdown].(map[string]any)["content"])
	require.Equal(t, "---\nx: 1\nauthor: Ann\n---\n# Body\n", res.Context[KeyRaw].(map[string]any)["content"])
	require.Equal(t, true, res.Context["plain"])

	gv := res.Context[KeyGlobalVars].(map[string]any)
	require.Equal(t, 3, gv["frontmatter_x"])
	require.Equal(t, 3, gv["x"])
}

func TestMeld_YamlOrdering(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"/project/data/base.yaml":   "title: unkeyed\nshared:\n  a: 1\n",
		"/project/data/more.yaml":   "shared:\n  b: 2\n",
		"/project/people/team.yaml": "- John\n- Jane\n",
		"/project/override.yaml":    "name: explicit\n",
	})
	data := config.DataSpec{
		YamlGlobsUnkeyed: []string{"data/*.yaml"},
		YamlGlobs:        []string{"people/*.yaml"},
		YamlFiles:        []config.Source{{Key: "team", Ref: "override.yaml"}},
		Variables:        cfgtree.NewMap(),
	}

	res := meld(t, fsys, data, vars(t, "title: from params\n"))
	require.NoError(t, res.Warnings)

	require.Equal(t, "unkeyed", res.Context["title"])
	require.Empty(t, cmp.Diff(map[string]any{"a": 1, "b": 2}, res.Context["shared"]))
	require.Empty(t, cmp.Diff(map[string]any{"name": "explicit"}, res.Context["team"]))

	yml := res.Context[KeyYAML].(map[string]any)
	require.Contains(t, yml, "shared")
	require.Contains(t, yml, "team")

	raw := res.Context[KeyRaw].(map[string]any)
	require.Equal(t, "title: unkeyed\nshared:\n  a: 1\n", raw["base"])
	require.Equal(t, "name: explicit\n", raw["team"])
}

func TestMeld_MissingSourcesDegrade(t *testing.T) {
	fsys := memFS(t, map[string]string{"/project/ok.md": "hello"})
	data := config.DataSpec{
		MdFiles: []config.Source{
			{Key: "ok", Ref: "ok.md"},
			{Key: "gone", Ref: "gone.md"},
			{Key: "blank"},
		},
		YamlFiles: []config.Source{{Key: "cfg", Ref: "nope.yaml"}},
		Variables: cfgtree.NewMap(),
	}

	res := meld(t, fsys, data, cfgtree.NewMap())
	require.Error(t, res.Warnings)
	require.ErrorIs(t, res.Warnings, ErrDataFileMissing)
	require.True(t, ferrors.HasCategory(res.Warnings, ferrors.CategoryData))

	require.Equal(t, "hello", res.Context["ok"])
	require.Equal(t, "", res.Context["gone"])
	require.Equal(t, "", res.Context["blank"])
	require.Empty(t, res.Context["cfg"])
	require.Equal(t, "", res.Context[KeyRaw].(map[string]any)["cfg"])
}

func TestMeld_MalformedSourcesDegrade(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"/project/broken.md":   "---\ntitle: x\nno closing fence\n",
		"/project/broken.yaml": "a: [1,\n",
	})
	data := config.DataSpec{
		MdFiles:   []config.Source{{Key: "doc", Ref: "broken.md"}},
		YamlFiles: []config.Source{{Key: "cfg", Ref: "broken.yaml"}},
		Variables: cfgtree.NewMap(),
	}

	res := meld(t, fsys, data, cfgtree.NewMap())
	require.ErrorIs(t, res.Warnings, ErrDataFileMissing)
	require.Equal(t, "---\ntitle: x\nno closing fence\n", res.Context["doc"])
	require.Empty(t, res.Context["cfg"])
}

func TestMeld_MarkdownGlobsKeyedByStem(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"/project/chapters/01-intro.md": "---\nweight: 1\n---\nIntro",
		"/project/chapters/02-body.md":  "---\nweight: 2\n---\nBody",
	})
	data := config.DataSpec{MdGlobs: []string{"chapters/*.md"}, Variables: cfgtree.NewMap()}

	res := meld(t, fsys, data, cfgtree.NewMap())
	require.Equal(t, "Intro", res.Context["01-intro"])
	require.Equal(t, "Body", res.Context["02-body"])

	global := res.Context[KeyGlobalFrontmatter].(map[string]any)
	require.Equal(t, map[string]any{"weight": 2}, global["dict"])
}

func TestMeld_InvalidGlobIsFatal(t *testing.T) {
	_, err := New(WithFS(afero.NewMemMapFs())).Meld(context.Background(), Input{
		Data:    config.DataSpec{YamlGlobs: []string{"data/[.yaml"}},
		DefPath: defPath,
		Params:  cfgtree.NewMap(),
	})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestMeld_MarkdownFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("---\nsource: remote\n---\nRemote body"))
	}))
	t.Cleanup(srv.Close)

	m := New(WithFS(afero.NewMemMapFs()), WithFetcher(fetch.New(fetch.Options{RetryMax: 0})))
	res, err := m.Meld(context.Background(), Input{
		Data:    config.DataSpec{MdFiles: []config.Source{{Key: "content", Ref: srv.URL + "/doc.md"}}},
		DefPath: defPath,
		Params:  cfgtree.NewMap(),
	})
	require.NoError(t, err)
	require.NoError(t, res.Warnings)
	require.Equal(t, "Remote body", res.Context["content"])
	require.Equal(t, map[string]any{"source": "remote"},
		res.Context[KeyGlobalFrontmatter].(map[string]any)["dict"])
}

func TestMeld_DoesNotMutateParams(t *testing.T) {
	params := vars(t, "title: original\n")
	data := config.DataSpec{Variables: vars(t, "title: changed\n")}

	res := meld(t, afero.NewMemMapFs(), data, params)
	require.Equal(t, "changed", res.Context["title"])
	require.Equal(t, "original", params.GetString("title"))
}

func TestContext_CloneAndLookup(t *testing.T) {
	c := Context{"people": []any{"John", map[string]any{"name": "Jane"}}, "meta": map[string]any{"a": 1}}

	v, ok := c.Lookup("people.1.name")
	require.True(t, ok)
	require.Equal(t, "Jane", v)
	_, ok = c.Lookup("people.5")
	require.False(t, ok)
	_, ok = c.Lookup("meta.missing")
	require.False(t, ok)

	cp, err := c.Clone()
	require.NoError(t, err)
	cp["meta"].(map[string]any)["a"] = 2
	cp["people"].([]any)[0] = "Changed"
	require.Equal(t, 1, c["meta"].(map[string]any)["a"])
	require.Equal(t, "John", c["people"].([]any)[0])
}

func TestResult_WarningCount(t *testing.T) {
	data := config.DataSpec{
		MdFiles:   []config.Source{{Key: "a", Ref: "a.md"}, {Key: "b", Ref: "b.md"}},
		Variables: cfgtree.NewMap(),
	}
	res := meld(t, afero.NewMemMapFs(), data, cfgtree.NewMap())
	require.Equal(t, 2, res.WarningCount())
	require.Equal(t, 0, (&Result{}).WarningCount())
}
