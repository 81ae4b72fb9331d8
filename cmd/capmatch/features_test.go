package main

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFeatures_Human(t *testing.T) {
	resetFlags(t)
	cmd, out, _ := newTestCmd()

	err := runFeatures(cmd, []string{testTrace})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "global\n  os(android)\n  arch(aarch64)\n  format(apk)\n")
	assert.Contains(t, output, "file\n  string(com.example.app)\n")
	assert.Contains(t, output, "process{pid:7,ppid:0} com.example.app\n")
	assert.Contains(t, output, "  thread{pid:7,tid:1}\n")
	assert.Contains(t, output, "    call{pid:7,tid:1,id:0} open(path=/tmp/x, flags=0)\n      api(open)\n      string(/tmp/x)\n      number(0x0)\n")
}

func TestRunFeatures_JSON(t *testing.T) {
	resetFlags(t)
	featuresFormat = "json"
	cmd, out, _ := newTestCmd()

	require.NoError(t, runFeatures(cmd, []string{testTrace}))

	var rows []featureRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.NotEmpty(t, rows)
	assert.Equal(t, "os(android)", rows[0].Feature)
	assert.Equal(t, "global", rows[0].Scope.String())

	var calls int
	for _, r := range rows {
		if r.Kind == "api" {
			calls++
			assert.Equal(t, r.Address, r.Location)
		}
	}
	assert.Equal(t, 5, calls)
}

func TestRunFeatures_FreezeAndReadBack(t *testing.T) {
	resetFlags(t)
	db := filepath.Join(t.TempDir(), "features.db")
	featuresFormat, featuresDB = "json", db

	// Act - freeze the trace
	cmd, fromTrace, errOut := newTestCmd()
	require.NoError(t, runFeatures(cmd, []string{testTrace}))
	id := regexp.MustCompile(`Snapshot: (\S+)`).FindStringSubmatch(errOut.String())
	require.Len(t, id, 2)

	// Act - read the snapshot back
	featuresSnapshot = id[1]
	cmd, fromStore, _ := newTestCmd()
	require.NoError(t, runFeatures(cmd, nil))

	// Assert
	assert.JSONEq(t, fromTrace.String(), fromStore.String())

	// the snapshot is listed
	snapshotsDB, snapshotsFormat = db, "json"
	cmd, listed, _ := newTestCmd()
	require.NoError(t, runSnapshots(cmd, nil))
	assert.Contains(t, listed.String(), id[1])
	assert.Contains(t, listed.String(), `"format": "frida"`)
}

func TestRunFeatures_Errors(t *testing.T) {
	resetFlags(t)
	cmd, _, _ := newTestCmd()
	assert.ErrorContains(t, runFeatures(cmd, nil), "trace file is required")

	featuresSnapshot = "abc"
	assert.ErrorContains(t, runFeatures(cmd, nil), "--snapshot requires --db")

	featuresDB = filepath.Join(t.TempDir(), "x.db")
	assert.ErrorContains(t, runFeatures(cmd, []string{testTrace}), "not both")
	assert.ErrorContains(t, runFeatures(cmd, nil), "unknown snapshot")

	resetFlags(t)
	featuresFormat = "xml"
	assert.ErrorContains(t, runFeatures(cmd, []string{testTrace}), "unknown output format")

	resetFlags(t)
	featuresColor = "sometimes"
	assert.ErrorContains(t, runFeatures(cmd, []string{testTrace}), "unknown color mode")

	resetFlags(t)
	assert.ErrorContains(t, runFeatures(cmd, []string{"testdata/missing.jsonl"}), "loading trace")
}
