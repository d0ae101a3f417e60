package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docmeld/internal/config"
	"git.home.luguber.info/inful/docmeld/internal/fetch"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}
	return fsys
}

func TestRender_BuiltinTemplate(t *testing.T) {
	r := New(WithFS(afero.NewMemMapFs()))
	data := map[string]any{
		"_global_frontmatter": map[string]any{"fenced": "---\ntitle: T\n---\n"},
		"content":             "Body text\n",
	}

	out, err := r.Render(context.Background(), &config.TargetSpec{}, data, true)
	require.NoError(t, err)
	require.Equal(t, "---\ntitle: T\n---\nBody text\n", out)
}

func TestRender_TemplateRelativeToDefiningFile(t *testing.T) {
	fsys := memFS(t, map[string]string{"/proj/tpl/page.tpl": "Hello {{ .name }}"})
	r := New(WithFS(fsys))
	spec := &config.TargetSpec{JinjaTemplate: "tpl/page.tpl", DefPath: "/proj/_docmeld.yaml"}

	out, err := r.Render(context.Background(), spec, map[string]any{"name": "World"}, false)
	require.NoError(t, err)
	require.Equal(t, "Hello World", out)
}

func TestRender_TemplateRootFallback(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"/shared/templates/letter.tpl": "from settings root",
		"/proj/mine/letter.tpl":        "from mm_templates",
	})

	r := New(WithFS(fsys), WithTemplateRoot("/shared/templates"))
	spec := &config.TargetSpec{JinjaTemplate: "letter.tpl", DefPath: "/proj/_docmeld.yaml"}
	out, err := r.Render(context.Background(), spec, map[string]any{}, false)
	require.NoError(t, err)
	require.Equal(t, "from settings root", out)

	spec.TemplateRoot = "mine"
	out, err = r.Render(context.Background(), spec, map[string]any{}, false)
	require.NoError(t, err)
	require.Equal(t, "from mm_templates", out)
}

func TestRender_MissingTemplateIsFatal(t *testing.T) {
	r := New(WithFS(afero.NewMemMapFs()))
	spec := &config.TargetSpec{JinjaTemplate: "nope.tpl", DefPath: "/proj/_docmeld.yaml"}

	_, err := r.Render(context.Background(), spec, map[string]any{}, true)
	require.ErrorIs(t, err, ErrTemplateNotFound)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))
}

func TestRender_TemplateFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/t.tpl" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote {{ .x }}"))
	}))
	t.Cleanup(srv.Close)

	r := New(WithFS(afero.NewMemMapFs()), WithFetcher(fetch.New(fetch.Options{})))
	out, err := r.Render(context.Background(), &config.TargetSpec{JinjaTemplate: srv.URL + "/t.tpl"}, map[string]any{"x": 1}, false)
	require.NoError(t, err)
	require.Equal(t, "remote 1", out)

	_, err = r.Render(context.Background(), &config.TargetSpec{JinjaTemplate: srv.URL + "/gone.tpl"}, map[string]any{}, false)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestExecute_DoubleRender(t *testing.T) {
	r := New(WithFS(afero.NewMemMapFs()))
	tpl := Template{Name: "t", Body: "{{ .content }}"}
	data := map[string]any{"content": "Dear {{ .name }}", "name": "Ann"}

	single, err := r.Execute(tpl, data, false)
	require.NoError(t, err)
	require.Equal(t, "Dear {{ .name }}", single)

	double, err := r.Execute(tpl, data, true)
	require.NoError(t, err)
	require.Equal(t, "Dear Ann", double)
}

func TestExecute_ParseErrorIsClassified(t *testing.T) {
	r := New(WithFS(afero.NewMemMapFs()))
	_, err := r.Execute(Template{Name: "bad", Body: "{{ .x "}, map[string]any{}, false)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))
}

func TestExecute_UsesOwnFilterSet(t *testing.T) {
	shout := DefaultFilters().With("shout", func(s string) string { return s + "!" })
	r := New(WithFS(afero.NewMemMapFs()), WithFilters(shout))

	out, err := r.Execute(Template{Name: "t", Body: `{{ "hi" | shout }}`}, nil, false)
	require.NoError(t, err)
	require.Equal(t, "hi!", out)

	require.False(t, DefaultFilters().Has("shout"))
}
