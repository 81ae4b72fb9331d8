package enum

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/capmatch/pkg/frida"
)

const traceLine = `{"type":"api","process_id":7,"thread_id":1,"call_id":0,"api_name":"open"}` + "\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// collect enumerates and returns the yielded paths relative to root, sorted.
func collect(t *testing.T, config Config) ([]string, error) {
	t.Helper()
	var mu sync.Mutex
	var found []string
	err := NewFilesystemEnumerator(config).Enumerate(context.Background(), func(path string, report *frida.Report) error {
		require.NotNil(t, report)
		rel, err := filepath.Rel(config.Root, path)
		if err != nil {
			return err
		}
		mu.Lock()
		found = append(found, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	slices.Sort(found)
	return found, err
}

func TestFilesystemEnumerator(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, "notes.txt"), "not a trace")
	writeFile(t, filepath.Join(tmpDir, "run2", "b.JSONL"), traceLine)

	found, err := collect(t, Config{Root: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "run2/b.JSONL"}, found)
}

func TestFilesystemEnumerator_ParsesReport(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.jsonl"), traceLine)

	var report *frida.Report
	err := NewFilesystemEnumerator(Config{Root: tmpDir}).Enumerate(context.Background(), func(_ string, r *frida.Report) error {
		report = r
		return nil
	})
	require.NoError(t, err)
	require.Len(t, report.Processes, 1)
	require.Len(t, report.Processes[0].Calls, 1)
	assert.Equal(t, "open", report.Processes[0].Calls[0].APIName)
}

func TestFilesystemEnumerator_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "trace.log")
	writeFile(t, path, traceLine)

	paths, err := NewFilesystemEnumerator(Config{Root: path}).Paths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestFilesystemEnumerator_HiddenFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "visible.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, ".hidden.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, ".cache", "inner.jsonl"), traceLine)

	found, err := collect(t, Config{Root: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, []string{"visible.jsonl"}, found)

	found, err = collect(t, Config{Root: tmpDir, IncludeHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{".cache/inner.jsonl", ".hidden.jsonl", "visible.jsonl"}, found)
}

func TestFilesystemEnumerator_Gitignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ".gitignore"), "scratch\n*.old.jsonl\n")
	writeFile(t, filepath.Join(tmpDir, "keep.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, "drop.old.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, "scratch", "tmp.jsonl"), traceLine)

	found, err := collect(t, Config{Root: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.jsonl"}, found)
}

func TestFilesystemEnumerator_MaxFileSize(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "small.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, "large.jsonl"), traceLine+traceLine+traceLine)

	found, err := collect(t, Config{Root: tmpDir, MaxFileSize: int64(len(traceLine) + 1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.jsonl"}, found)
}

func TestFilesystemEnumerator_InvalidTrace(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "good.jsonl"), traceLine)
	writeFile(t, filepath.Join(tmpDir, "bad.jsonl"), "{not json\n")

	_, err := collect(t, Config{Root: tmpDir})
	assert.ErrorContains(t, err, "bad.jsonl")

	found, err := collect(t, Config{Root: tmpDir, SkipInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"good.jsonl"}, found)
}

func TestFilesystemEnumerator_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.jsonl"), traceLine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFilesystemEnumerator(Config{Root: tmpDir}).Enumerate(ctx, func(string, *frida.Report) error {
		t.Error("callback should not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden(".git"))
	assert.False(t, isHidden("."))
	assert.False(t, isHidden(".."))
	assert.False(t, isHidden("trace.jsonl"))
}
