package frida

import (
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// archNames maps Frida's Process.arch values to feature arch names.
var archNames = map[string]string{
	"arm64": feature.ArchAArch64,
	"arm":   feature.ArchARM,
	"x64":   feature.ArchAMD64,
	"ia32":  feature.ArchI386,
}

// Extractor implements extractor.DynamicExtractor over a Report.
//
// The trace does not record parent processes, so every process address has
// PPID 0. Frida cannot reach the original APK, so sample hashes are empty.
type Extractor struct {
	report *Report
}

var _ extractor.DynamicExtractor = (*Extractor)(nil)

// New creates an extractor over report. The report must not be modified
// afterwards.
func New(report *Report) *Extractor {
	if report == nil {
		report = &Report{}
	}
	return &Extractor{report: report}
}

// FromJSONLFile loads a JSONL trace and creates an extractor over it.
func FromJSONLFile(path string) (*Extractor, error) {
	report, err := LoadReport(path)
	if err != nil {
		return nil, err
	}
	return New(report), nil
}

// Report returns the underlying report.
func (e *Extractor) Report() *Report { return e.report }

// SampleHashes returns empty hashes.
func (e *Extractor) SampleHashes() extractor.SampleHashes { return extractor.SampleHashes{} }

// BaseAddress returns address.None.
func (e *Extractor) BaseAddress() address.Address { return address.None }

// GlobalFeatures yields OS android, the arch of the first process when
// recorded, and Format apk.
func (e *Extractor) GlobalFeatures() extractor.Features {
	return func(yield func(feature.Feature, address.Address) bool) {
		if !yield(feature.OS(feature.OSAndroid), address.None) {
			return
		}
		if len(e.report.Processes) > 0 {
			if arch := e.report.Processes[0].Arch; arch != "" {
				if mapped, ok := archNames[arch]; ok {
					arch = mapped
				}
				if !yield(feature.Arch(arch), address.None) {
					return
				}
			}
		}
		yield(feature.Format(feature.FormatAPK), address.None)
	}
}

// FileFeatures yields the package name as a string.
func (e *Extractor) FileFeatures() extractor.Features {
	return func(yield func(feature.Feature, address.Address) bool) {
		yield(feature.String(e.report.PackageName), address.None)
	}
}

// Processes yields one handle per process record.
func (e *Extractor) Processes() iter.Seq[extractor.ProcessHandle] {
	return func(yield func(extractor.ProcessHandle) bool) {
		for _, p := range e.report.Processes {
			ph := extractor.ProcessHandle{Address: address.ProcessAddress{PID: p.PID}, Inner: p}
			if !yield(ph) {
				return
			}
		}
	}
}

// ProcessFeatures yields nothing: the trace has no process-level evidence.
func (e *Extractor) ProcessFeatures(extractor.ProcessHandle) extractor.Features {
	return empty
}

// ProcessName returns the process's package name.
func (e *Extractor) ProcessName(ph extractor.ProcessHandle) string {
	if p, ok := ph.Inner.(*Process); ok {
		return p.PackageName
	}
	return ""
}

// Threads yields the distinct thread ids of the process in order of first
// appearance.
func (e *Extractor) Threads(ph extractor.ProcessHandle) iter.Seq[extractor.ThreadHandle] {
	return func(yield func(extractor.ThreadHandle) bool) {
		p, ok := ph.Inner.(*Process)
		if !ok {
			return
		}
		seen := make(map[uint64]struct{})
		for _, c := range p.Calls {
			if _, dup := seen[c.ThreadID]; dup {
				continue
			}
			seen[c.ThreadID] = struct{}{}
			th := extractor.ThreadHandle{
				Address: address.ThreadAddress{Process: ph.Address, TID: c.ThreadID},
				Inner:   c.ThreadID,
			}
			if !yield(th) {
				return
			}
		}
	}
}

// ThreadFeatures yields nothing: the trace has no thread-level evidence.
func (e *Extractor) ThreadFeatures(extractor.ProcessHandle, extractor.ThreadHandle) extractor.Features {
	return empty
}

// Calls yields the calls of the thread in recorded order.
func (e *Extractor) Calls(ph extractor.ProcessHandle, th extractor.ThreadHandle) iter.Seq[extractor.CallHandle] {
	return func(yield func(extractor.CallHandle) bool) {
		p, ok := ph.Inner.(*Process)
		if !ok {
			return
		}
		for _, c := range p.Calls {
			if c.ThreadID != th.Address.TID {
				continue
			}
			ch := extractor.CallHandle{
				Address: address.DynamicCallAddress{Thread: th.Address, ID: c.CallID},
				Inner:   c,
			}
			if !yield(ch) {
				return
			}
		}
	}
}

// CallFeatures yields the API name, then a Number for each numeric or
// boolean argument and a String for each string argument. Other argument
// values are skipped.
func (e *Extractor) CallFeatures(_ extractor.ProcessHandle, _ extractor.ThreadHandle, ch extractor.CallHandle) extractor.Features {
	return func(yield func(feature.Feature, address.Address) bool) {
		c, ok := ch.Inner.(*Call)
		if !ok {
			return
		}
		if !yield(feature.API(c.APIName), ch.Address) {
			return
		}
		for _, arg := range c.Arguments {
			f, ok := argumentFeature(arg.Value)
			if !ok {
				continue
			}
			if !yield(f, ch.Address) {
				return
			}
		}
	}
}

// CallName renders the call as api(name=value, ...).
func (e *Extractor) CallName(_ extractor.ProcessHandle, _ extractor.ThreadHandle, ch extractor.CallHandle) string {
	c, ok := ch.Inner.(*Call)
	if !ok {
		return ""
	}
	args := make([]string, len(c.Arguments))
	for i, arg := range c.Arguments {
		args[i] = arg.Name + "=" + formatValue(arg.Value)
	}
	return c.APIName + "(" + strings.Join(args, ", ") + ")"
}

func empty(func(feature.Feature, address.Address) bool) {}

func argumentFeature(v any) (feature.Feature, bool) {
	switch x := v.(type) {
	case string:
		return feature.String(x), true
	case bool:
		return feature.NumberBool(x), true
	case json.Number:
		return numberFeature(x.String())
	case int:
		return feature.Number(int64(x)), true
	case int64:
		return feature.Number(x), true
	case uint64:
		return feature.Number(int64(x)), true
	case float64:
		return feature.NumberFloat(x), true
	}
	return feature.Feature{}, false
}

func numberFeature(s string) (feature.Feature, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return feature.Number(n), true
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return feature.Number(int64(u)), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return feature.NumberFloat(f), true
	}
	return feature.Feature{}, false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		// Python spelling for booleans and null
		if x {
			return "True"
		}
		return "False"
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
