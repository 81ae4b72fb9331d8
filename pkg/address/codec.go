package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Decode for text that Encode did not produce.
var ErrMalformed = errors.New("malformed address")

// Encode renders a as compact, lossless text, e.g. "call:0:7:1:3" for
// (ppid 0, pid 7, tid 1, id 3). Decode reverses it.
func Encode(a Address) string {
	switch x := a.(type) {
	case nil, NoAddress:
		return "none"
	case AbsoluteVirtualAddress:
		return "absolute:" + strconv.FormatUint(uint64(x), 16)
	case RelativeVirtualAddress:
		return "relative:" + strconv.FormatUint(uint64(x), 16)
	case FileOffsetAddress:
		return "file:" + strconv.FormatUint(uint64(x), 16)
	case ProcessAddress:
		return fmt.Sprintf("process:%d:%d", x.PPID, x.PID)
	case ThreadAddress:
		return fmt.Sprintf("thread:%d:%d:%d", x.Process.PPID, x.Process.PID, x.TID)
	case DynamicCallAddress:
		t := x.Thread
		return fmt.Sprintf("call:%d:%d:%d:%d", t.Process.PPID, t.Process.PID, t.TID, x.ID)
	default:
		panic(fmt.Sprintf("address: unexpected type %T", a))
	}
}

// Decode parses text produced by Encode.
func Decode(s string) (Address, error) {
	tag, rest, _ := strings.Cut(s, ":")
	switch tag {
	case "none":
		if rest != "" {
			break
		}
		return None, nil
	case "absolute", "relative", "file":
		v, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrMalformed, s, err)
		}
		switch tag {
		case "absolute":
			return AbsoluteVirtualAddress(v), nil
		case "relative":
			return RelativeVirtualAddress(v), nil
		}
		return FileOffsetAddress(v), nil
	case "process", "thread", "call":
		want := map[string]int{"process": 2, "thread": 3, "call": 4}[tag]
		fields := strings.Split(rest, ":")
		if len(fields) != want {
			break
		}
		n := make([]uint64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrMalformed, s, err)
			}
			n[i] = v
		}
		p := ProcessAddress{PPID: n[0], PID: n[1]}
		switch tag {
		case "process":
			return p, nil
		case "thread":
			return ThreadAddress{Process: p, TID: n[2]}, nil
		}
		return DynamicCallAddress{Thread: ThreadAddress{Process: p, TID: n[2]}, ID: n[3]}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrMalformed, s)
}
