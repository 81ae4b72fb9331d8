// Package frida is the reference dynamic backend. It reads call traces
// recorded by Frida instrumentation of Android applications.
package frida

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 * 1024 * 1024

// Record types in a JSONL trace.
const (
	RecordMetadata = "metadata"
	RecordAPI      = "api"
)

// Report is a recorded trace: the traced package and its processes.
type Report struct {
	PackageName string
	Processes   []*Process
}

// Process is one traced process and its calls in recorded order.
type Process struct {
	PID         uint64
	PackageName string
	Arch        string
	Calls       []*Call
}

// Call is one intercepted API call.
type Call struct {
	ThreadID  uint64
	CallID    uint64
	APIName   string
	Arguments []Argument
}

// Argument is a named call argument. Value is a json.Number, string, bool,
// nil, or a nested JSON value; only scalars become features.
type Argument struct {
	Name  string
	Value any
}

// record is one line of a JSONL trace.
type record struct {
	Type        string     `json:"type"`
	ProcessID   *uint64    `json:"process_id"`
	PackageName string     `json:"package_name"`
	Arch        string     `json:"arch"`
	ThreadID    uint64     `json:"thread_id"`
	CallID      *uint64    `json:"call_id"`
	APIName     string     `json:"api_name"`
	Arguments   []argument `json:"arguments"`
}

type argument struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// LoadReport reads a JSONL trace from path.
func LoadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	report, err := ParseReport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// ParseReport reads a JSONL trace. Each non-blank line is a record whose
// "type" is "metadata" (package_name, process_id, arch) or "api" (one call).
// Calls attach to the process named by their process_id, or to the most
// recent metadata record when it is absent. A missing call_id defaults to
// the thread's running call count. Records of other types are ignored.
func ParseReport(r io.Reader) (*Report, error) {
	p := &parser{
		report:  &Report{},
		byPID:   make(map[uint64]*Process),
		counter: make(map[threadKey]uint64),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec record
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := p.add(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return p.report, nil
}

type threadKey struct {
	pid uint64
	tid uint64
}

type parser struct {
	report  *Report
	byPID   map[uint64]*Process
	current *Process
	counter map[threadKey]uint64
}

func (p *parser) process(pid uint64) *Process {
	if proc, ok := p.byPID[pid]; ok {
		return proc
	}
	proc := &Process{PID: pid, PackageName: p.report.PackageName}
	p.byPID[pid] = proc
	p.report.Processes = append(p.report.Processes, proc)
	return proc
}

func (p *parser) add(rec record) error {
	switch rec.Type {
	case RecordMetadata:
		var pid uint64
		if rec.ProcessID != nil {
			pid = *rec.ProcessID
		}
		if p.report.PackageName == "" {
			p.report.PackageName = rec.PackageName
		}
		proc := p.process(pid)
		if rec.PackageName != "" {
			proc.PackageName = rec.PackageName
		}
		if rec.Arch != "" {
			proc.Arch = rec.Arch
		}
		p.current = proc

	case RecordAPI:
		if rec.APIName == "" {
			return errors.New("api record without api_name")
		}
		proc := p.current
		if rec.ProcessID != nil {
			proc = p.process(*rec.ProcessID)
		} else if proc == nil {
			proc = p.process(0)
		}

		key := threadKey{pid: proc.PID, tid: rec.ThreadID}
		id := p.counter[key]
		if rec.CallID != nil {
			id = *rec.CallID
		}
		p.counter[key] = id + 1

		call := &Call{ThreadID: rec.ThreadID, CallID: id, APIName: rec.APIName}
		for _, a := range rec.Arguments {
			call.Arguments = append(call.Arguments, Argument{Name: a.Name, Value: a.Value})
		}
		proc.Calls = append(proc.Calls, call)
	}
	return nil
}
