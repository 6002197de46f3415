// ABOUTME: Tests for the workspace file, grep and shell executors
// ABOUTME: Runs against a temp directory and the real exec manager

package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-link/internal/exec"
	"github.com/2389/coven-link/internal/stream"
	"github.com/2389/coven-link/internal/wire"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := NewWorkspace(t.TempDir(), 5*time.Second)
	require.NoError(t, err)
	return w
}

func writeFile(t *testing.T, w *Workspace, name, content string) {
	t.Helper()
	path := filepath.Join(w.Root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolve(t *testing.T) {
	w := newWorkspace(t)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "relative", path: "a/b.txt", want: filepath.Join(w.Root, "a", "b.txt")},
		{name: "absolute inside", path: filepath.Join(w.Root, "c.txt"), want: filepath.Join(w.Root, "c.txt")},
		{name: "root itself", path: ".", want: w.Root},
		{name: "escape", path: "../outside", wantErr: true},
		{name: "absolute outside", path: "/etc/passwd", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadWithWindow(t *testing.T) {
	w := newWorkspace(t)
	writeFile(t, w, "notes.txt", "one\ntwo\nthree\nfour\n")
	ctx := context.Background()

	full, err := w.Read(ctx, ReadArgs{Path: "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\nfour\n", full.Content)
	assert.Equal(t, 4, full.TotalLines)
	assert.False(t, full.Truncated)

	window, err := w.Read(ctx, ReadArgs{Path: "notes.txt", Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "two\nthree\n", window.Content)
	assert.True(t, window.Truncated)

	_, err = w.Read(ctx, ReadArgs{Path: "missing.txt"})
	assert.Error(t, err)
}

func TestWriteCreatesParents(t *testing.T) {
	w := newWorkspace(t)

	res, err := w.Write(context.Background(), WriteArgs{Path: "deep/dir/file.go", FileText: "package x\n\nfunc f() {}"})
	require.NoError(t, err)
	assert.Equal(t, "deep/dir/file.go", res.Path)
	assert.Equal(t, 3, res.LinesCreated)
	assert.Equal(t, len("package x\n\nfunc f() {}"), res.FileSize)

	data, err := os.ReadFile(filepath.Join(w.Root, "deep", "dir", "file.go"))
	require.NoError(t, err)
	assert.Equal(t, "package x\n\nfunc f() {}", string(data))
}

func TestDelete(t *testing.T) {
	w := newWorkspace(t)
	writeFile(t, w, "gone.txt", "bye")
	require.NoError(t, os.Mkdir(filepath.Join(w.Root, "dir"), 0o755))
	ctx := context.Background()

	_, err := w.Delete(ctx, DeleteArgs{Path: "gone.txt"})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(w.Root, "gone.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = w.Delete(ctx, DeleteArgs{Path: "dir"})
	assert.ErrorContains(t, err, "is a directory")
	_, err = w.Delete(ctx, DeleteArgs{Path: "gone.txt"})
	assert.Error(t, err)
}

func TestLsDirectoriesFirst(t *testing.T) {
	w := newWorkspace(t)
	writeFile(t, w, "b.txt", "bb")
	writeFile(t, w, "a.txt", "a")
	writeFile(t, w, "sub/c.txt", "c")

	res, err := w.Ls(context.Background(), LsArgs{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, LsEntry{Name: "sub", IsDir: true}, res.Entries[0])
	assert.Equal(t, LsEntry{Name: "a.txt", Size: 1}, res.Entries[1])
	assert.Equal(t, LsEntry{Name: "b.txt", Size: 2}, res.Entries[2])
}

func TestGrep(t *testing.T) {
	w := newWorkspace(t)
	writeFile(t, w, "main.go", "package main\n\nfunc main() {\n\tprintln(\"Hello\")\n}\n")
	writeFile(t, w, "lib/util.go", "package lib\n\n// hello helper\nfunc Hello() {}\n")
	writeFile(t, w, ".git/config", "hello from git\n")
	writeFile(t, w, "blob.bin", "hello\x00world")
	ctx := context.Background()

	res, err := w.Grep(ctx, GrepArgs{Pattern: "hello", CaseInsensitive: true})
	require.NoError(t, err)
	paths := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		paths = append(paths, m.Path)
	}
	assert.ElementsMatch(t, []string{"main.go", "lib/util.go", "lib/util.go"}, paths)
	assert.False(t, res.Truncated)

	limited, err := w.Grep(ctx, GrepArgs{Pattern: "package", MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, limited.Matches, 1)
	assert.True(t, limited.Truncated)

	_, err = w.Grep(ctx, GrepArgs{Pattern: "("})
	assert.ErrorContains(t, err, "invalid pattern")
	_, err = w.Grep(ctx, GrepArgs{})
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	w := newWorkspace(t)
	ctx := context.Background()

	res, err := w.Shell(ctx, ShellArgs{Command: "echo out; echo err >&2; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)

	pwd, err := w.Shell(ctx, ShellArgs{Command: "pwd"})
	require.NoError(t, err)
	assert.Equal(t, w.Root, strings.TrimSpace(pwd.Stdout))

	slow, err := w.Shell(ctx, ShellArgs{Command: "sleep 5", TimeoutMs: 50})
	require.NoError(t, err)
	assert.True(t, slow.TimedOut)

	_, err = w.Shell(ctx, ShellArgs{})
	assert.Error(t, err)
}

func TestShellStream(t *testing.T) {
	w := newWorkspace(t)

	var events []ShellEvent
	err := w.ShellStream(context.Background(), ShellArgs{Command: "echo a; echo b >&2; exit 2"}, func(e ShellEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	var stdout, stderr strings.Builder
	for _, e := range events[:len(events)-1] {
		switch e.Kind {
		case EventStdout:
			stdout.WriteString(e.Data)
		case EventStderr:
			stderr.WriteString(e.Data)
		}
	}
	assert.Equal(t, "a\n", stdout.String())
	assert.Equal(t, "b\n", stderr.String())

	last := events[len(events)-1]
	assert.Equal(t, EventExit, last.Kind)
	require.NotNil(t, last.ExitCode)
	assert.Equal(t, 2, *last.ExitCode)
}

func TestShellStreamCancelled(t *testing.T) {
	w := newWorkspace(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.ShellStream(ctx, ShellArgs{Command: "sleep 5"}, func(ShellEvent) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisteredThroughManager(t *testing.T) {
	w := newWorkspace(t)
	writeFile(t, w, "hello.txt", "hi there\n")
	reg := NewRegistry(w)

	var registered []string
	for _, r := range reg.Resources() {
		registered = append(registered, r.ArgsCase)
	}
	assert.ElementsMatch(t, []string{
		"readArgs", "writeArgs", "deleteArgs", "lsArgs", "grepArgs", "shellArgs", "shellStreamArgs",
	}, registered)

	raw, err := json.Marshal(ReadArgs{Path: "hello.txt"})
	require.NoError(t, err)
	m := exec.NewManager(reg, exec.ManagerOptions{})
	out := stream.NewQueue[wire.ExecOutput]()
	require.NoError(t, m.Handle(context.Background(), &wire.ExecServerMessage{ID: 4, ExecID: "e4", Case: "readArgs", Value: raw}, out))
	out.Close()

	frames, err := stream.Collect[wire.ExecOutput](context.Background(), out)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	res, ok := frames[0].(*wire.ExecClientMessage)
	require.True(t, ok)
	assert.Equal(t, "readResult", res.Case)
	assert.Equal(t, uint32(4), res.ID)

	var got ReadResult
	require.NoError(t, json.Unmarshal(res.Value, &got))
	assert.Equal(t, "hi there\n", got.Content)
}
