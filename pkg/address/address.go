package address

import (
	"cmp"
	"fmt"
)

// Kind discriminates Address variants. The numeric order is the sort rank.
type Kind uint8

const (
	KindNone Kind = iota
	KindAbsolute
	KindRelative
	KindFileOffset
	KindProcess
	KindThread
	KindCall
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "no address"
	case KindAbsolute:
		return "absolute"
	case KindRelative:
		return "relative"
	case KindFileOffset:
		return "file offset"
	case KindProcess:
		return "process"
	case KindThread:
		return "thread"
	case KindCall:
		return "call"
	default:
		return "unknown"
	}
}

// Address identifies where a feature was observed.
// Implementations are comparable values: == is structural equality and
// an Address can be used directly as a map key.
type Address interface {
	Kind() Kind
	String() string
	isAddress()
}

// NoAddress is used by global and file scope features that have no location.
type NoAddress struct{}

// None is the distinguished no-address value.
var None Address = NoAddress{}

func (NoAddress) Kind() Kind     { return KindNone }
func (NoAddress) String() string { return "global" }
func (NoAddress) isAddress()     {}

// AbsoluteVirtualAddress is a virtual address in a loaded image.
type AbsoluteVirtualAddress uint64

func (AbsoluteVirtualAddress) Kind() Kind       { return KindAbsolute }
func (a AbsoluteVirtualAddress) String() string { return fmt.Sprintf("0x%x", uint64(a)) }
func (AbsoluteVirtualAddress) isAddress()       {}

// RelativeVirtualAddress is an offset from the image base.
type RelativeVirtualAddress uint64

func (RelativeVirtualAddress) Kind() Kind       { return KindRelative }
func (a RelativeVirtualAddress) String() string { return fmt.Sprintf("base+0x%x", uint64(a)) }
func (RelativeVirtualAddress) isAddress()       {}

// FileOffsetAddress is an offset into the raw file.
type FileOffsetAddress uint64

func (FileOffsetAddress) Kind() Kind       { return KindFileOffset }
func (a FileOffsetAddress) String() string { return fmt.Sprintf("file+0x%x", uint64(a)) }
func (FileOffsetAddress) isAddress()       {}

// ProcessAddress identifies a process in a dynamic trace.
// PPID is zero when the trace does not record parentage.
type ProcessAddress struct {
	PPID uint64
	PID  uint64
}

func (ProcessAddress) Kind() Kind { return KindProcess }
func (p ProcessAddress) String() string {
	return fmt.Sprintf("process{pid:%d,ppid:%d}", p.PID, p.PPID)
}
func (ProcessAddress) isAddress() {}

// ThreadAddress identifies a thread within its owning process.
type ThreadAddress struct {
	Process ProcessAddress
	TID     uint64
}

func (ThreadAddress) Kind() Kind { return KindThread }
func (t ThreadAddress) String() string {
	return fmt.Sprintf("thread{pid:%d,tid:%d}", t.Process.PID, t.TID)
}
func (ThreadAddress) isAddress() {}

// DynamicCallAddress identifies a call by its sequence id within a thread.
type DynamicCallAddress struct {
	Thread ThreadAddress
	ID     uint64
}

func (DynamicCallAddress) Kind() Kind { return KindCall }
func (c DynamicCallAddress) String() string {
	return fmt.Sprintf("call{pid:%d,tid:%d,id:%d}", c.Thread.Process.PID, c.Thread.TID, c.ID)
}
func (DynamicCallAddress) isAddress() {}

// Compare orders addresses by kind rank, then by their fields.
// Dynamic addresses sort by process, then thread, then call id, so calls
// group under their thread and threads under their process.
func Compare(a, b Address) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch x := a.(type) {
	case NoAddress:
		return 0
	case AbsoluteVirtualAddress:
		return cmp.Compare(x, b.(AbsoluteVirtualAddress))
	case RelativeVirtualAddress:
		return cmp.Compare(x, b.(RelativeVirtualAddress))
	case FileOffsetAddress:
		return cmp.Compare(x, b.(FileOffsetAddress))
	case ProcessAddress:
		return compareProcess(x, b.(ProcessAddress))
	case ThreadAddress:
		return compareThread(x, b.(ThreadAddress))
	case DynamicCallAddress:
		y := b.(DynamicCallAddress)
		if c := compareThread(x.Thread, y.Thread); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	default:
		panic(fmt.Sprintf("address: unexpected type %T", a))
	}
}

func compareProcess(a, b ProcessAddress) int {
	if c := cmp.Compare(a.PPID, b.PPID); c != 0 {
		return c
	}
	return cmp.Compare(a.PID, b.PID)
}

func compareThread(a, b ThreadAddress) int {
	if c := compareProcess(a.Process, b.Process); c != 0 {
		return c
	}
	return cmp.Compare(a.TID, b.TID)
}

// Less reports whether a sorts before b.
func Less(a, b Address) bool {
	return Compare(a, b) < 0
}
