package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/capmatch/pkg/feature"
	"github.com/praetorian-inc/capmatch/pkg/probe"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

const trace = `{"type":"metadata","process_id":7,"package_name":"com.example.app"}
{"type":"api","process_id":7,"thread_id":1,"call_id":0,"api_name":"open","arguments":[{"name":"path","value":"/tmp/x"}]}
`

func newCore(t *testing.T) *scanner.Core {
	t.Helper()
	core, err := scanner.New([]*probe.Probe{probe.New(feature.API("open"))})
	require.NoError(t, err)
	return core
}

// runLines runs a server over input and returns the decoded responses.
func runLines(t *testing.T, srv *Server, out *bytes.Buffer) []Response {
	t.Helper()
	require.NoError(t, srv.Run(context.Background()))

	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func matchRequest(t *testing.T, reqType string, payload any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	line, err := json.Marshal(Request{Type: reqType, Payload: data})
	require.NoError(t, err)
	return string(line) + "\n"
}

func TestServer_SendsReadyOnStart(t *testing.T) {
	in := strings.NewReader("")
	out := &bytes.Buffer{}

	srv := NewServer(newCore(t), in, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately to exit after ready

	_ = srv.Run(ctx)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ready", resp.Type)

	var ready ReadyData
	require.NoError(t, json.Unmarshal(resp.Data, &ready))
	assert.Equal(t, Version, ready.Version)
	assert.Equal(t, 1, ready.Probes)
}

func TestServer_Match(t *testing.T) {
	out := &bytes.Buffer{}
	srv := NewServer(newCore(t), strings.NewReader(matchRequest(t, "match", MatchPayload{Trace: trace})), out)

	responses := runLines(t, srv, out)
	require.Len(t, responses, 2) // ready + match response

	assert.True(t, responses[1].Success)
	assert.Equal(t, "match", responses[1].Type)

	var summary scanner.Summary
	require.NoError(t, json.Unmarshal(responses[1].Data, &summary))
	require.Len(t, summary.Hits, 3)
	assert.Equal(t, "call{pid:7,tid:1,id:0}", summary.Hits[2].Address)
	assert.Nil(t, summary.Counters)
}

func TestServer_MatchFile(t *testing.T) {
	out := &bytes.Buffer{}
	in := matchRequest(t, "match_file", MatchFilePayload{Path: "../frida/testdata/trace.jsonl"}) +
		matchRequest(t, "match_file", MatchFilePayload{Path: "missing.jsonl"})
	srv := NewServer(newCore(t), strings.NewReader(in), out)
	srv.SetStats(true)

	responses := runLines(t, srv, out)
	require.Len(t, responses, 3)

	assert.True(t, responses[1].Success)
	var summary scanner.Summary
	require.NoError(t, json.Unmarshal(responses[1].Data, &summary))
	assert.NotEmpty(t, summary.Hits)
	assert.NotEmpty(t, summary.Counters)

	assert.False(t, responses[2].Success)
	assert.Equal(t, "match_file", responses[2].Type)
}

func TestServer_BadTrace(t *testing.T) {
	out := &bytes.Buffer{}
	srv := NewServer(newCore(t), strings.NewReader(matchRequest(t, "match", MatchPayload{Trace: "{not json"})), out)

	responses := runLines(t, srv, out)
	require.Len(t, responses, 2)
	assert.False(t, responses[1].Success)
	assert.Contains(t, responses[1].Error, "line 1")
}

func TestServer_GracefulShutdownOnContext(t *testing.T) {
	// Slow reader that blocks
	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	srv := NewServer(newCore(t), pr, out)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	cancel()
	pw.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestServer_CloseCommand(t *testing.T) {
	out := &bytes.Buffer{}
	in := `{"type":"close","payload":{}}` + "\n" + matchRequest(t, "match", MatchPayload{Trace: trace})
	srv := NewServer(newCore(t), strings.NewReader(in), out)

	responses := runLines(t, srv, out)
	require.Len(t, responses, 1) // Only ready signal
}

func TestServer_UnknownCommand(t *testing.T) {
	out := &bytes.Buffer{}
	srv := NewServer(newCore(t), strings.NewReader(`{"type":"invalid","payload":{}}`+"\n"), out)

	responses := runLines(t, srv, out)
	require.Len(t, responses, 2)
	assert.False(t, responses[1].Success)
	assert.Contains(t, responses[1].Error, "unknown request type")
}

func TestServer_MalformedJSON(t *testing.T) {
	out := &bytes.Buffer{}
	srv := NewServer(newCore(t), strings.NewReader(`{invalid json}`+"\n"), out)

	responses := runLines(t, srv, out)
	require.GreaterOrEqual(t, len(responses), 2)
	assert.False(t, responses[1].Success)
	assert.Equal(t, "decode", responses[1].Type)
}
