// Package extractor defines the contract every evidence backend implements.
package extractor

import (
	"iter"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// Features is a finite, restartable sequence of (feature, location) pairs.
type Features = iter.Seq2[feature.Feature, address.Address]

// SampleHashes identifies the analyzed artifact. Backends that cannot
// recover the artifact leave the fields empty.
type SampleHashes struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// Empty reports whether no hash is known.
func (h SampleHashes) Empty() bool {
	return h.MD5 == "" && h.SHA1 == "" && h.SHA256 == ""
}

// ProcessHandle pairs a process address with backend-owned data.
// Inner is never inspected outside the backend that created it.
type ProcessHandle struct {
	Address address.ProcessAddress
	Inner   any
}

// ThreadHandle pairs a thread address with backend-owned data.
type ThreadHandle struct {
	Address address.ThreadAddress
	Inner   any
}

// CallHandle pairs a call address with backend-owned data.
type CallHandle struct {
	Address address.DynamicCallAddress
	Inner   any
}

// FeatureExtractor is the part of the contract shared by static and dynamic
// backends.
//
// Every sequence is finite and deterministic for a fixed input, and calling
// a method again yields an equivalent sequence. Missing data is an empty
// sequence, never an error.
type FeatureExtractor interface {
	// SampleHashes returns the hashes of the analyzed artifact.
	SampleHashes() SampleHashes

	// BaseAddress returns the artifact's base address, or address.None.
	BaseAddress() address.Address

	// GlobalFeatures yields OS, Arch and Format at address.None.
	GlobalFeatures() Features

	// FileFeatures yields file-scope features.
	FileFeatures() Features
}

// DynamicExtractor is implemented by backends that observed a running
// artifact and can enumerate processes, threads and calls.
type DynamicExtractor interface {
	FeatureExtractor

	// Processes yields one handle per distinct process observed.
	Processes() iter.Seq[ProcessHandle]

	// ProcessFeatures yields process-scope features. May be empty.
	ProcessFeatures(ph ProcessHandle) Features

	// ProcessName returns a display name for the process.
	ProcessName(ph ProcessHandle) string

	// Threads yields the threads belonging to ph.
	Threads(ph ProcessHandle) iter.Seq[ThreadHandle]

	// ThreadFeatures yields thread-scope features. May be empty.
	ThreadFeatures(ph ProcessHandle, th ThreadHandle) Features

	// Calls yields the calls of th in recorded order.
	Calls(ph ProcessHandle, th ThreadHandle) iter.Seq[CallHandle]

	// CallFeatures yields call-scope features: the API name at the call's
	// address, then one feature per scalar argument.
	CallFeatures(ph ProcessHandle, th ThreadHandle, ch CallHandle) Features

	// CallName renders the call as name(arg=value, ...).
	CallName(ph ProcessHandle, th ThreadHandle, ch CallHandle) string
}

// Collect drains a feature sequence into a new FeatureSet.
func Collect(seq Features) *feature.FeatureSet {
	fs := feature.NewFeatureSet()
	CollectInto(fs, seq)
	return fs
}

// CollectInto adds every pair of seq to fs.
func CollectInto(fs *feature.FeatureSet, seq Features) {
	if seq == nil {
		return
	}
	for f, addr := range seq {
		fs.Add(f, addr)
	}
}
