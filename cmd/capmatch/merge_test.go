package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/capmatch/pkg/frida"
	"github.com/praetorian-inc/capmatch/pkg/store"
)

// newMergeCmd creates a fresh merge command for testing
func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "merge <source1.db> <source2.db> [source3.db...]",
		Args: cobra.MinimumNArgs(2),
		RunE: runMerge,
	}
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output store path")
	cmd.Flags().StringVar(&mergeFormat, "format", "text", "Output format: text, json")
	cmd.SetErr(io.Discard)
	return cmd
}

func TestMergeCmd_RequiresMinimumArgs(t *testing.T) {
	cmd := newMergeCmd()
	cmd.SetArgs([]string{"source1.db"})
	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

func TestMergeCmd_MergesTwoStores(t *testing.T) {
	tmpDir := t.TempDir()
	ext, err := frida.FromJSONLFile(testTrace)
	require.NoError(t, err)

	// Create two sources with one snapshot each
	sources := []string{filepath.Join(tmpDir, "a.db"), filepath.Join(tmpDir, "b.db")}
	for _, path := range sources {
		st, err := store.NewSQLite(path)
		require.NoError(t, err)
		_, err = store.Freeze(context.Background(), st, ext, "frida")
		require.NoError(t, err)
		require.NoError(t, st.Close())
	}

	output := filepath.Join(tmpDir, "merged.db")
	cmd := newMergeCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(append([]string{"-o", output}, sources...))
	require.NoError(t, cmd.Execute())

	assert.Contains(t, buf.String(), "merged 2 stores into "+output+": 2 snapshots")

	st, err := store.NewSQLite(output)
	require.NoError(t, err)
	defer st.Close()
	snapshots, err := st.Snapshots()
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
}

func TestMergeCmd_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	ext, err := frida.FromJSONLFile(testTrace)
	require.NoError(t, err)

	// the same snapshot in both sources is merged once
	a := filepath.Join(tmpDir, "a.db")
	st, err := store.NewSQLite(a)
	require.NoError(t, err)
	_, err = store.Freeze(context.Background(), st, ext, "frida")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	cmd := newMergeCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	output := filepath.Join(tmpDir, "merged.db")
	cmd.SetArgs([]string{"--format", "json", "-o", output, a, a})
	require.NoError(t, cmd.Execute())

	var report mergeReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, output, report.Output)
	assert.Equal(t, 2, report.Sources)
	assert.Equal(t, 1, report.Snapshots)
	assert.Positive(t, report.Features)
}

func TestMergeCmd_MissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	cmd := newMergeCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"-o", filepath.Join(tmpDir, "merged.db"), filepath.Join(tmpDir, "a.db"), filepath.Join(tmpDir, "b.db")})
	assert.ErrorContains(t, cmd.Execute(), "source store")
}
