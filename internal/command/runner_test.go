package command

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath(DefaultShell); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_ShellWithStdin(t *testing.T) {
	requireShell(t)
	var out bytes.Buffer
	r := &ExecRunner{Shell: DefaultShell, Stdout: &out, Stderr: &out}

	code, err := r.Run(context.Background(), Invocation{Command: "cat; echo done", Stdin: []byte("input\n"), Shell: true})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "input\ndone\n", out.String())
}

func TestExecRunner_ExitCodeIsData(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{Shell: DefaultShell, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	code, err := r.Run(context.Background(), Invocation{Command: "exit 3", Shell: true})
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

func TestExecRunner_WorkingDirectory(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	r := &ExecRunner{Shell: DefaultShell, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	code, err := r.Run(context.Background(), Invocation{Command: "touch here.txt", Dir: dir, Shell: true})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.FileExists(t, filepath.Join(dir, "here.txt"))
}

func TestExecRunner_DirectExec(t *testing.T) {
	requireShell(t)
	var out bytes.Buffer
	r := &ExecRunner{Shell: DefaultShell, Stdout: &out, Stderr: &out}

	code, err := r.Run(context.Background(), Invocation{Command: "sh -c 'echo $0' \\\n  \"two words\""})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "two words\n", out.String())

	code, err = r.Run(context.Background(), Invocation{Command: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	require.Equal(t, NotStartedExitCode, code)
}

func TestSplitWords(t *testing.T) {
	args, err := SplitWords("pandoc --output \"my file.pdf\" \\\n  --toc")
	require.NoError(t, err)
	require.Equal(t, []string{"pandoc", "--output", "my file.pdf", "--toc"}, args)
}

func TestRecordingRunner(t *testing.T) {
	r := &RecordingRunner{Codes: map[string]int{"fail": 2}}

	code, err := r.Run(context.Background(), Invocation{Command: "ok", Stdin: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	code, _ = r.Run(context.Background(), Invocation{Command: "fail"})
	require.Equal(t, 2, code)

	require.Equal(t, []string{"ok", "fail"}, r.Commands())
	require.Equal(t, []byte("x"), r.Calls()[0].Stdin)
}
