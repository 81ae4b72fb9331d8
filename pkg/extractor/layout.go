package extractor

import (
	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// Layout links the matched calls of a dynamic trace to their threads and
// processes, with display names. Only entities containing a matched call
// appear.
type Layout struct {
	Processes []ProcessLayout `json:"processes"`
}

// ProcessLayout is a process with at least one matched call.
type ProcessLayout struct {
	Address address.ProcessAddress `json:"-"`
	Name    string                 `json:"name"`
	Threads []ThreadLayout         `json:"matched_threads"`
}

// ThreadLayout is a thread with at least one matched call.
type ThreadLayout struct {
	Address address.ThreadAddress `json:"-"`
	Calls   []CallLayout          `json:"matched_calls"`
}

// CallLayout is a matched call and its rendered name.
type CallLayout struct {
	Address address.DynamicCallAddress `json:"-"`
	Name    string                     `json:"name"`
}

// Empty reports whether no call matched.
func (l Layout) Empty() bool { return len(l.Processes) == 0 }

// ComputeLayout collects every call address found in the locations of
// results and their descendants, then walks ext to attach names. Processes,
// threads and calls keep the extractor's enumeration order.
func ComputeLayout(ext DynamicExtractor, results ...*feature.Result) Layout {
	matched := make(map[address.DynamicCallAddress]struct{})
	for _, r := range results {
		if r == nil {
			continue
		}
		r.Walk(func(n *feature.Result) {
			for loc := range n.LocationSet() {
				if c, ok := loc.(address.DynamicCallAddress); ok {
					matched[c] = struct{}{}
				}
			}
		})
	}

	var layout Layout
	if len(matched) == 0 {
		return layout
	}
	for ph := range ext.Processes() {
		var threads []ThreadLayout
		for th := range ext.Threads(ph) {
			var calls []CallLayout
			for ch := range ext.Calls(ph, th) {
				if _, ok := matched[ch.Address]; ok {
					calls = append(calls, CallLayout{Address: ch.Address, Name: ext.CallName(ph, th, ch)})
				}
			}
			if len(calls) > 0 {
				threads = append(threads, ThreadLayout{Address: th.Address, Calls: calls})
			}
		}
		if len(threads) > 0 {
			layout.Processes = append(layout.Processes, ProcessLayout{
				Address: ph.Address,
				Name:    ext.ProcessName(ph),
				Threads: threads,
			})
		}
	}
	return layout
}
