package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const testTrace = "testdata/trace.jsonl"

// resetFlags restores every command flag variable to its default.
func resetFlags(t *testing.T) {
	t.Helper()
	featuresFormat, featuresColor, featuresDB, featuresSnapshot = "human", "never", "", ""
	matchProbesPath, matchFeatures = "", nil
	matchProbeInclude, matchProbeExclude = "", ""
	matchExhaustive, matchWorkers = false, 1
	matchFormat, matchColor, matchStats = "human", "never", false
	matchDB, matchSnapshot = "", ""
	probesPath, probesFormat = "", "table"
	serveProbesPath, serveFeatures, serveExhaustive, serveStats = "", nil, false, false
	exploreProbesPath, exploreFeatures, exploreProbeInclude, exploreProbeExclude = "", nil, "", ""
	exploreExhaustive, exploreDB, exploreSnapshot = false, "", ""
	freezeDB, freezeFormat, freezeWorkers = filepath.Join(t.TempDir(), "capmatch.db"), "table", 0
	freezeSkipInvalid, freezeIncludeHidden = false, false
	snapshotsDB, snapshotsFormat = filepath.Join(t.TempDir(), "capmatch.db"), "table"
}

// newTestCmd returns a command writing to fresh stdout and stderr buffers.
func newTestCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out, &errOut
}
