package frida

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

func loadTrace(t *testing.T) *Extractor {
	t.Helper()
	ext, err := FromJSONLFile("testdata/trace.jsonl")
	require.NoError(t, err)
	return ext
}

func onlyProcess(t *testing.T, ext *Extractor) extractor.ProcessHandle {
	t.Helper()
	procs := slices.Collect(ext.Processes())
	require.Len(t, procs, 1)
	return procs[0]
}

func TestParseReport(t *testing.T) {
	ext := loadTrace(t)
	r := ext.Report()

	assert.Equal(t, "com.example.app", r.PackageName)
	require.Len(t, r.Processes, 1)
	p := r.Processes[0]
	assert.Equal(t, uint64(7), p.PID)
	assert.Equal(t, "arm64", p.Arch)
	require.Len(t, p.Calls, 5)
	assert.Equal(t, "open", p.Calls[0].APIName)
	assert.Equal(t, uint64(2), p.Calls[1].ThreadID)
}

func TestParseReport_DefaultsAndErrors(t *testing.T) {
	_, err := LoadReport("testdata/bad.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	// process_id falls back to the latest metadata, call_id to a per-thread counter
	r, err := ParseReport(strings.NewReader(strings.Join([]string{
		`{"type":"metadata","process_id":9,"package_name":"com.a"}`,
		`{"type":"api","thread_id":4,"api_name":"a"}`,
		`{"type":"api","thread_id":5,"api_name":"b"}`,
		`{"type":"api","thread_id":4,"api_name":"c"}`,
		`{"type":"heartbeat"}`,
	}, "\n")))
	require.NoError(t, err)
	require.Len(t, r.Processes, 1)
	calls := r.Processes[0].Calls
	require.Len(t, calls, 3)
	assert.Equal(t, []uint64{0, 0, 1}, []uint64{calls[0].CallID, calls[1].CallID, calls[2].CallID})

	_, err = ParseReport(strings.NewReader(`{"type":"api","thread_id":1}`))
	assert.ErrorContains(t, err, "line 1")

	_, err = LoadReport("testdata/missing.jsonl")
	assert.Error(t, err)
}

func TestParseReport_CallsFollowProcessID(t *testing.T) {
	r, err := ParseReport(strings.NewReader(strings.Join([]string{
		`{"type":"metadata","process_id":1,"package_name":"com.a","arch":"x64"}`,
		`{"type":"metadata","process_id":2,"package_name":"com.a:remote"}`,
		`{"type":"api","process_id":1,"thread_id":1,"api_name":"a"}`,
		`{"type":"api","thread_id":1,"api_name":"b"}`,
	}, "\n")))
	require.NoError(t, err)
	require.Len(t, r.Processes, 2)
	assert.Equal(t, "a", r.Processes[0].Calls[0].APIName)
	assert.Equal(t, "b", r.Processes[1].Calls[0].APIName)
	assert.Equal(t, "com.a", r.PackageName)
}

func TestExtractor_Global(t *testing.T) {
	ext := loadTrace(t)
	var got []string
	for f, addr := range ext.GlobalFeatures() {
		assert.Equal(t, address.None, addr)
		got = append(got, f.String())
	}
	assert.Equal(t, []string{"os(android)", "arch(aarch64)", "format(apk)"}, got)

	assert.True(t, ext.SampleHashes().Empty())
	assert.Equal(t, address.None, ext.BaseAddress())
}

func TestExtractor_ArchMapping(t *testing.T) {
	tests := map[string]string{
		"arm64":  feature.ArchAArch64,
		"arm":    feature.ArchARM,
		"x64":    feature.ArchAMD64,
		"ia32":   feature.ArchI386,
		"mips64": "mips64",
	}
	for tag, want := range tests {
		t.Run(tag, func(t *testing.T) {
			ext := New(&Report{Processes: []*Process{{PID: 1, Arch: tag}}})
			fs := extractor.Collect(ext.GlobalFeatures())
			assert.True(t, fs.Contains(feature.Arch(want)))
		})
	}

	// no arch tag, no arch feature
	fs := extractor.Collect(New(&Report{Processes: []*Process{{PID: 1}}}).GlobalFeatures())
	assert.Equal(t, 0, countKind(fs, feature.KindArch))
	assert.Equal(t, 2, fs.Len())
}

func countKind(fs *feature.FeatureSet, k feature.Kind) int {
	n := 0
	for range fs.OfKind(k) {
		n++
	}
	return n
}

func TestExtractor_File(t *testing.T) {
	fs := extractor.Collect(loadTrace(t).FileFeatures())
	locs, ok := fs.Locations(feature.String("com.example.app"))
	require.True(t, ok)
	assert.True(t, locs.Contains(address.None))
}

func TestExtractor_ProcessesAndThreads(t *testing.T) {
	ext := loadTrace(t)
	ph := onlyProcess(t, ext)

	assert.Equal(t, address.ProcessAddress{PID: 7, PPID: 0}, ph.Address)
	assert.Equal(t, "com.example.app", ext.ProcessName(ph))
	assert.Equal(t, 0, extractor.Collect(ext.ProcessFeatures(ph)).Len())

	threads := slices.Collect(ext.Threads(ph))
	require.Len(t, threads, 2)
	assert.Equal(t, uint64(1), threads[0].Address.TID)
	assert.Equal(t, uint64(2), threads[1].Address.TID)
	assert.Equal(t, ph.Address, threads[0].Address.Process)

	for _, th := range threads {
		assert.Equal(t, 0, extractor.Collect(ext.ThreadFeatures(ph, th)).Len())
	}
}

func TestExtractor_CallsPerThreadInOrder(t *testing.T) {
	ext := loadTrace(t)
	ph := onlyProcess(t, ext)
	threads := slices.Collect(ext.Threads(ph))
	require.Len(t, threads, 2)

	names := func(th extractor.ThreadHandle) []string {
		var out []string
		for ch := range ext.Calls(ph, th) {
			assert.Equal(t, th.Address, ch.Address.Thread)
			out = append(out, ch.Inner.(*Call).APIName)
		}
		return out
	}
	assert.Equal(t, []string{"open", "read", "close"}, names(threads[0]))
	assert.Equal(t, []string{"java.net.Socket.<init>", "setSoTimeout"}, names(threads[1]))

	ids := func(th extractor.ThreadHandle) []uint64 {
		var out []uint64
		for ch := range ext.Calls(ph, th) {
			out = append(out, ch.Address.ID)
		}
		return out
	}
	assert.Equal(t, []uint64{0, 1, 2}, ids(threads[0]))
	assert.Equal(t, []uint64{0, 1}, ids(threads[1]))
}

func firstCall(t *testing.T, ext *Extractor, tid uint64, api string) (extractor.ProcessHandle, extractor.ThreadHandle, extractor.CallHandle) {
	t.Helper()
	ph := onlyProcess(t, ext)
	for th := range ext.Threads(ph) {
		if th.Address.TID != tid {
			continue
		}
		for ch := range ext.Calls(ph, th) {
			if ch.Inner.(*Call).APIName == api {
				return ph, th, ch
			}
		}
	}
	t.Fatalf("call %s not found on thread %d", api, tid)
	return extractor.ProcessHandle{}, extractor.ThreadHandle{}, extractor.CallHandle{}
}

func TestExtractor_CallFeatures(t *testing.T) {
	ext := loadTrace(t)

	ph, th, ch := firstCall(t, ext, 1, "open")
	var got []string
	for f, addr := range ext.CallFeatures(ph, th, ch) {
		assert.Equal(t, address.Address(ch.Address), addr)
		got = append(got, f.String())
	}
	assert.Equal(t, []string{"api(open)", "string(/tmp/x)", "number(0x0)"}, got)

	// float and bool become numbers, objects are skipped
	ph, th, ch = firstCall(t, ext, 2, "setSoTimeout")
	fs := extractor.Collect(ext.CallFeatures(ph, th, ch))
	assert.Equal(t, 3, fs.Len())
	assert.True(t, fs.Contains(feature.NumberFloat(1.5)))
	assert.True(t, fs.Contains(feature.Number(1)))
}

func TestExtractor_CallName(t *testing.T) {
	ext := loadTrace(t)

	ph, th, ch := firstCall(t, ext, 1, "open")
	assert.Equal(t, "open(path=/tmp/x, flags=0)", ext.CallName(ph, th, ch))

	ph, th, ch = firstCall(t, ext, 2, "setSoTimeout")
	assert.Equal(t, `setSoTimeout(timeout=1.5, keepalive=True, opts={"linger":0})`, ext.CallName(ph, th, ch))

	ext = New(&Report{Processes: []*Process{{PID: 1, Calls: []*Call{{ThreadID: 1, APIName: "getpid"}}}}})
	ph, th, ch = firstCall(t, ext, 1, "getpid")
	assert.Equal(t, "getpid()", ext.CallName(ph, th, ch))

	ext = New(&Report{Processes: []*Process{{PID: 1, Calls: []*Call{{ThreadID: 1, APIName: "setenv", Arguments: []Argument{
		{Name: "name", Value: "HOME"},
		{Name: "value", Value: nil},
		{Name: "overwrite", Value: false},
	}}}}}})
	ph, th, ch = firstCall(t, ext, 1, "setenv")
	assert.Equal(t, "setenv(name=HOME, value=None, overwrite=False)", ext.CallName(ph, th, ch))
}

func TestExtractor_Restartable(t *testing.T) {
	ext := loadTrace(t)
	render := func() string {
		var b strings.Builder
		for ph := range ext.Processes() {
			for th := range ext.Threads(ph) {
				for ch := range ext.Calls(ph, th) {
					for f, addr := range ext.CallFeatures(ph, th, ch) {
						b.WriteString(addr.String() + " " + f.String() + "\n")
					}
				}
			}
		}
		return b.String()
	}
	first := render()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, render())
}

func TestExtractor_EmptyReport(t *testing.T) {
	ext := New(nil)
	assert.Empty(t, slices.Collect(ext.Processes()))

	fs := extractor.Collect(ext.GlobalFeatures())
	assert.True(t, fs.Contains(feature.OS(feature.OSAndroid)))
	assert.True(t, fs.Contains(feature.Format(feature.FormatAPK)))
	assert.Equal(t, 2, fs.Len())

	// foreign handles yield nothing
	ph := extractor.ProcessHandle{Address: address.ProcessAddress{PID: 1}}
	assert.Empty(t, slices.Collect(ext.Threads(ph)))
	assert.Empty(t, ext.ProcessName(ph))
}

func TestExtractor_EvaluateCallScope(t *testing.T) {
	ext := loadTrace(t)
	ph, th, ch := firstCall(t, ext, 1, "open")
	fs := extractor.Collect(ext.CallFeatures(ph, th, ch))

	r := feature.Evaluate(feature.Substring("/tmp/"), fs, feature.DefaultEvalOptions())
	require.True(t, r.Success())
	assert.Equal(t, []address.Address{ch.Address}, r.Locations())
}
