package commands

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/target"
)

const testConfig = `
targets:
  doc:
    description: Builds the report from the markdown source and pipes it into the configured command for typesetting.
    name: report
    output_file: "{name}.out"
    data:
      md_files:
        content: doc.md
    command: cat > {output_file}
  base:
    abstract: true
    command: "exit 3"
  broken:
    inherit_from: base
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_docmeld.yaml"), []byte(testConfig), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"), []byte("---\ntitle: Hello\n---\nBody text\n"), 0o600))
	return filepath.Join(dir, "_docmeld.yaml")
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func stubOpen(t *testing.T) *[]string {
	t.Helper()
	var opened []string
	prev := openFile
	openFile = func(p string) error {
		opened = append(opened, p)
		return nil
	}
	t.Cleanup(func() { openFile = prev })
	return &opened
}

func TestBuildCmd_PrintOnly(t *testing.T) {
	cfg := writeProject(t)
	opened := stubOpen(t)
	var out bytes.Buffer

	cmd := &BuildCmd{Target: "doc", Print: true}
	require.NoError(t, cmd.Run(&Global{Out: &out}, &CLI{Config: cfg}))

	got := out.String()
	require.Contains(t, got, "title: Hello")
	require.Contains(t, got, "Body text")
	require.Contains(t, got, "# command: cat > report.out")
	require.Empty(t, *opened)
	require.NoFileExists(t, filepath.Join(filepath.Dir(cfg), "report.out"))
}

func TestBuildCmd_RunsCommandAndOpensOutput(t *testing.T) {
	requireShell(t)
	cfg := writeProject(t)
	opened := stubOpen(t)

	cmd := &BuildCmd{Target: "doc"}
	require.NoError(t, cmd.Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfg}))

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfg), "report.out"))
	require.NoError(t, err)
	require.Contains(t, string(data), "Body text")
	require.Equal(t, []string{filepath.Join(filepath.Dir(cfg), "report.out")}, *opened)
}

func TestBuildCmd_NoOpen(t *testing.T) {
	requireShell(t)
	cfg := writeProject(t)
	opened := stubOpen(t)

	cmd := &BuildCmd{Target: "doc", NoOpen: true}
	require.NoError(t, cmd.Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfg}))
	require.Empty(t, *opened)
}

func TestBuildCmd_CommandFailureIsCommandError(t *testing.T) {
	requireShell(t)
	cfg := writeProject(t)
	stubOpen(t)

	err := (&BuildCmd{Target: "broken"}).Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfg})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryCommand))
	require.Contains(t, err.Error(), "code 3")
	require.Equal(t, 11, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestBuildCmd_UnknownTarget(t *testing.T) {
	cfg := writeProject(t)
	err := (&BuildCmd{Target: "nope"}).Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfg})
	require.ErrorIs(t, err, target.ErrTargetNotFound)
}

func TestBuildCmd_InvalidVar(t *testing.T) {
	cfg := writeProject(t)
	err := (&BuildCmd{Target: "doc", Print: true, Var: []string{"novalue"}}).
		Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfg})
	require.ErrorIs(t, err, target.ErrInvalidVar)
}

func TestBuildCmd_WritesMetricsFile(t *testing.T) {
	cfg := writeProject(t)
	metricsFile := filepath.Join(t.TempDir(), "docmeld.prom")

	cmd := &BuildCmd{Target: "doc", Print: true}
	require.NoError(t, cmd.Run(&Global{Out: &bytes.Buffer{}}, &CLI{Config: cfg, MetricsFile: metricsFile}))

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "docmeld_build_outcomes_total")
}

func TestListCmd_GroupsByFile(t *testing.T) {
	cfg := writeProject(t)
	var out bytes.Buffer
	require.NoError(t, (&ListCmd{}).Run(&Global{Out: &out}, &CLI{Config: cfg}))

	got := out.String()
	require.Contains(t, got, "_docmeld.yaml")
	require.Contains(t, got, "doc")
	require.Contains(t, got, "broken")
	require.NotContains(t, got, "base")
	require.Contains(t, got, "typesetting.")
	require.NotContains(t, got, "into the configured", "description should wrap")
}

func TestCompleteCmd(t *testing.T) {
	cfg := writeProject(t)
	var out bytes.Buffer
	require.NoError(t, (&CompleteCmd{}).Run(&Global{Out: &out}, &CLI{Config: cfg}))
	require.Equal(t, "doc broken\n", out.String())
}

func TestExplain(t *testing.T) {
	cfg := writeProject(t)
	a, err := newApp(&CLI{Config: cfg}, &bytes.Buffer{})
	require.NoError(t, err)

	fixed := func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
	doc, err := a.explain(t.Context(), "doc", []string{"name=final"}, fixed)
	require.NoError(t, err)
	require.Contains(t, doc, "name: final")
	require.Contains(t, doc, "2024-03-09")
	require.Contains(t, doc, "_defpath:")
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&VersionCmd{}).Run(&Global{Out: &out}, &CLI{}))
	require.True(t, strings.HasPrefix(out.String(), "docmeld "))
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv("DOCMELD_LOG_LEVEL", "warn")
	require.Equal(t, "WARN", parseLogLevel(false).String())
	require.Equal(t, "DEBUG", parseLogLevel(true).String())
}
