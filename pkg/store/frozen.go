package store

import (
	"fmt"
	"iter"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

type located struct {
	feature  feature.Feature
	location address.Address
}

// Frozen replays a stored snapshot as a dynamic extractor.
//
// Processes, threads and calls are yielded in the order their first record
// was stored. A process or thread without any stored feature, and without
// calls that have one, is not recorded and is not yielded.
type Frozen struct {
	snapshot  Snapshot
	global    []located
	file      []located
	processes []address.ProcessAddress
	threads   map[address.ProcessAddress][]address.ThreadAddress
	calls     map[address.ThreadAddress][]address.DynamicCallAddress
	features  map[address.Address][]located
}

// Load reads a snapshot back from st.
func Load(st Store, snapshotID string) (*Frozen, error) {
	snapshots, err := st.Snapshots()
	if err != nil {
		return nil, err
	}
	fz := &Frozen{
		threads:  make(map[address.ProcessAddress][]address.ThreadAddress),
		calls:    make(map[address.ThreadAddress][]address.DynamicCallAddress),
		features: make(map[address.Address][]located),
	}
	found := false
	for _, s := range snapshots {
		if s.ID == snapshotID {
			fz.snapshot, found = s, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSnapshot, snapshotID)
	}

	for _, scope := range []extractor.Scope{
		extractor.ScopeGlobal,
		extractor.ScopeFile,
		extractor.ScopeProcess,
		extractor.ScopeThread,
		extractor.ScopeCall,
	} {
		records, err := st.Features(snapshotID, scope)
		if err != nil {
			return nil, fmt.Errorf("loading %s features: %w", scope, err)
		}
		for _, r := range records {
			if err := fz.add(r); err != nil {
				return nil, err
			}
		}
	}
	return fz, nil
}

func (fz *Frozen) add(r Record) error {
	l := located{feature: r.Feature, location: r.Location}
	switch r.Scope {
	case extractor.ScopeGlobal:
		fz.global = append(fz.global, l)
		return nil
	case extractor.ScopeFile:
		fz.file = append(fz.file, l)
		return nil
	}

	switch a := r.ScopeAddress.(type) {
	case address.ProcessAddress:
		fz.addProcess(a)
	case address.ThreadAddress:
		fz.addThread(a)
	case address.DynamicCallAddress:
		fz.addCall(a)
	default:
		return fmt.Errorf("%s record at address %v", r.Scope, r.ScopeAddress)
	}
	fz.features[r.ScopeAddress] = append(fz.features[r.ScopeAddress], l)
	return nil
}

func (fz *Frozen) addProcess(p address.ProcessAddress) {
	if _, ok := fz.threads[p]; ok {
		return
	}
	fz.threads[p] = nil
	fz.processes = append(fz.processes, p)
}

func (fz *Frozen) addThread(t address.ThreadAddress) {
	fz.addProcess(t.Process)
	if _, ok := fz.calls[t]; ok {
		return
	}
	fz.calls[t] = nil
	fz.threads[t.Process] = append(fz.threads[t.Process], t)
}

func (fz *Frozen) addCall(c address.DynamicCallAddress) {
	fz.addThread(c.Thread)
	if _, ok := fz.features[c]; ok {
		return
	}
	fz.calls[c.Thread] = append(fz.calls[c.Thread], c)
}

// Snapshot returns the snapshot the extractor was loaded from.
func (fz *Frozen) Snapshot() Snapshot { return fz.snapshot }

func (fz *Frozen) SampleHashes() extractor.SampleHashes { return fz.snapshot.Hashes }

func (fz *Frozen) BaseAddress() address.Address { return address.None }

func (fz *Frozen) GlobalFeatures() extractor.Features { return replay(fz.global) }

func (fz *Frozen) FileFeatures() extractor.Features { return replay(fz.file) }

func (fz *Frozen) Processes() iter.Seq[extractor.ProcessHandle] {
	return func(yield func(extractor.ProcessHandle) bool) {
		for _, p := range fz.processes {
			if !yield(extractor.ProcessHandle{Address: p}) {
				return
			}
		}
	}
}

func (fz *Frozen) ProcessFeatures(ph extractor.ProcessHandle) extractor.Features {
	return replay(fz.features[ph.Address])
}

// ProcessName is the process address; snapshots do not keep names.
func (fz *Frozen) ProcessName(ph extractor.ProcessHandle) string {
	return ph.Address.String()
}

func (fz *Frozen) Threads(ph extractor.ProcessHandle) iter.Seq[extractor.ThreadHandle] {
	return func(yield func(extractor.ThreadHandle) bool) {
		for _, t := range fz.threads[ph.Address] {
			if !yield(extractor.ThreadHandle{Address: t}) {
				return
			}
		}
	}
}

func (fz *Frozen) ThreadFeatures(ph extractor.ProcessHandle, th extractor.ThreadHandle) extractor.Features {
	return replay(fz.features[th.Address])
}

func (fz *Frozen) Calls(ph extractor.ProcessHandle, th extractor.ThreadHandle) iter.Seq[extractor.CallHandle] {
	return func(yield func(extractor.CallHandle) bool) {
		for _, c := range fz.calls[th.Address] {
			if !yield(extractor.CallHandle{Address: c}) {
				return
			}
		}
	}
}

func (fz *Frozen) CallFeatures(ph extractor.ProcessHandle, th extractor.ThreadHandle, ch extractor.CallHandle) extractor.Features {
	return replay(fz.features[ch.Address])
}

// CallName renders api(value, ...) from the stored call features; argument
// names are not kept.
func (fz *Frozen) CallName(ph extractor.ProcessHandle, th extractor.ThreadHandle, ch extractor.CallHandle) string {
	var name string
	var args []string
	for _, l := range fz.features[ch.Address] {
		if l.feature.Kind() == feature.KindAPI && name == "" {
			name = l.feature.Text()
			continue
		}
		args = append(args, l.feature.ValueString())
	}
	return name + "(" + strings.Join(args, ", ") + ")"
}

func replay(ls []located) extractor.Features {
	return func(yield func(feature.Feature, address.Address) bool) {
		for _, l := range ls {
			if !yield(l.feature, l.location) {
				return
			}
		}
	}
}
