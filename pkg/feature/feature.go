// Package feature defines the closed set of capability features, the
// evidence mapping they are evaluated against, and the explainable Result
// tree produced by evaluation.
package feature

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

type valueType uint8

const (
	valueString valueType = iota
	valueBytes
	valueInt
	valueFloat
	valueNaN
)

// Key is the identity of a feature: its kind and value.
// Description is not part of the key. Keys are comparable.
type Key struct {
	kind Kind
	vt   valueType
	s    string // string values; bytes values stored as raw string
	i    int64
	f    float64
}

// Kind returns the feature kind of the key.
func (k Key) Kind() Kind { return k.kind }

// Feature is an immutable unit of capability evidence.
type Feature struct {
	key         Key
	description string
	re          *regexp2.Regexp // compiled pattern, Regex only
}

func newString(kind Kind, value string) Feature {
	return Feature{key: Key{kind: kind, vt: valueString, s: value}}
}

// MatchedRule marks that the named rule already matched.
func MatchedRule(name string) Feature { return newString(KindMatchedRule, name) }

// Characteristic is an opaque behavioral tag.
func Characteristic(tag string) Feature { return newString(KindCharacteristic, tag) }

// String is exact-match string evidence.
func String(s string) Feature { return newString(KindString, s) }

// Substring matches any String evidence that contains s.
func Substring(s string) Feature { return newString(KindSubstring, s) }

// Class is a managed-code class name.
func Class(name string) Feature { return newString(KindClass, name) }

// Namespace is a managed-code namespace.
func Namespace(name string) Feature { return newString(KindNamespace, name) }

// API is the name of a called function.
func API(name string) Feature { return newString(KindAPI, name) }

// Arch is the architecture of the artifact. Global scope only.
func Arch(arch string) Feature { return newString(KindArch, arch) }

// OS is the operating system of the artifact. Global scope only.
func OS(os string) Feature { return newString(KindOS, os) }

// Format is the container format of the artifact. Global scope only.
func Format(format string) Feature { return newString(KindFormat, format) }

// Bytes matches any Bytes evidence that starts with b. b is copied.
func Bytes(b []byte) Feature {
	return Feature{key: Key{kind: KindBytes, vt: valueBytes, s: string(b)}}
}

// Number is a numeric constant.
func Number(n int64) Feature {
	return Feature{key: Key{kind: KindNumber, vt: valueInt, i: n}}
}

// NumberFloat is a numeric constant. Integral values are normalized so that
// NumberFloat(1) equals Number(1). Every NaN is the same feature.
func NumberFloat(f float64) Feature {
	if math.IsNaN(f) {
		return Feature{key: Key{kind: KindNumber, vt: valueNaN}}
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Number(int64(f))
	}
	return Feature{key: Key{kind: KindNumber, vt: valueFloat, f: f}}
}

// NumberBool is a boolean treated as a number: 1 or 0.
func NumberBool(b bool) Feature {
	if b {
		return Number(1)
	}
	return Number(0)
}

// WithDescription returns a copy of f carrying a human-readable description.
func (f Feature) WithDescription(description string) Feature {
	f.description = description
	return f
}

// Kind returns the feature kind.
func (f Feature) Kind() Kind { return f.key.kind }

// Name returns the display name of the feature kind.
func (f Feature) Name() string { return f.key.kind.String() }

// Key returns the identity of the feature.
func (f Feature) Key() Key { return f.key }

// Description returns the optional human-readable description.
func (f Feature) Description() string { return f.description }

// Equal reports whether f and other have the same kind and value.
func (f Feature) Equal(other Feature) bool { return f.key == other.key }

// IsGlobal reports whether the feature is extracted identically at every
// scope. Today these are the OS, Arch and Format features.
func (f Feature) IsGlobal() bool {
	switch f.key.kind {
	case KindOS, KindArch, KindFormat:
		return true
	}
	return false
}

// Value returns the raw value: string, []byte, int64 or float64.
func (f Feature) Value() any {
	switch f.key.vt {
	case valueBytes:
		return []byte(f.key.s)
	case valueInt:
		return f.key.i
	case valueFloat:
		return f.key.f
	case valueNaN:
		return math.NaN()
	default:
		return f.key.s
	}
}

// Text returns the string value of string-valued kinds, and the pattern of a Regex.
func (f Feature) Text() string { return f.key.s }

// Raw returns a copy of the value of a Bytes feature.
func (f Feature) Raw() []byte { return []byte(f.key.s) }

// ValueString renders the value for display.
func (f Feature) ValueString() string {
	switch f.key.vt {
	case valueBytes:
		return hexString([]byte(f.key.s))
	case valueInt:
		return hexNumber(f.key.i)
	case valueFloat:
		return strconv.FormatFloat(f.key.f, 'f', -1, 64)
	case valueNaN:
		return "NaN"
	}
	if f.key.kind == KindString || f.key.kind == KindSubstring {
		return escapeString(f.key.s)
	}
	return f.key.s
}

// String renders the feature as name(value) or name(value = description).
func (f Feature) String() string {
	switch f.key.kind {
	case KindSubstring:
		return "substring(" + f.ValueString() + ")"
	case KindRegex:
		return "regex(string =~ " + f.key.s + ")"
	}
	if f.description != "" {
		return fmt.Sprintf("%s(%s = %s)", f.Name(), f.ValueString(), f.description)
	}
	return fmt.Sprintf("%s(%s)", f.Name(), f.ValueString())
}

// Compare is a total order over features: kind, then value type, then value,
// then description. It is consistent with Equal when descriptions match.
func Compare(a, b Feature) int {
	if c := cmp.Compare(a.key.kind, b.key.kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.key.vt, b.key.vt); c != 0 {
		return c
	}
	var c int
	switch a.key.vt {
	case valueInt:
		c = cmp.Compare(a.key.i, b.key.i)
	case valueFloat:
		c = cmp.Compare(a.key.f, b.key.f)
	case valueBytes:
		c = bytes.Compare([]byte(a.key.s), []byte(b.key.s))
	default:
		c = strings.Compare(a.key.s, b.key.s)
	}
	if c != 0 {
		return c
	}
	return strings.Compare(a.description, b.description)
}

// Less reports whether a sorts before b.
func Less(a, b Feature) bool { return Compare(a, b) < 0 }

// escapeString escapes control characters and double quotes.
func escapeString(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}

// hexString renders bytes as upper-case hex pairs, e.g. "4D 5A 90".
func hexString(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, " ")
}

func hexNumber(n int64) string {
	if n < 0 {
		// -MinInt64 overflows, format through uint64
		return fmt.Sprintf("-0x%X", uint64(-(n+1))+1)
	}
	return fmt.Sprintf("0x%X", n)
}
