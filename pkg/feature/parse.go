package feature

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownKind is returned when a feature kind name is not recognized.
var ErrUnknownKind = errors.New("unknown feature kind")

// Parse builds a feature from its kind name and textual value.
//
//	string     foo, or /re/ and /re/i for a regex
//	regex      /re/ or /re/i
//	bytes      hex pairs, spaces optional: "4D 5A 90"
//	number     decimal, 0x hex, or a float
//
// Other kinds take the value verbatim.
func Parse(kind, value string) (Feature, error) {
	k, ok := KindByName(kind)
	if !ok {
		return Feature{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	switch k {
	case KindString:
		return StringOrRegex(value)
	case KindRegex:
		return Regex(value)
	case KindBytes:
		b, err := hex.DecodeString(strings.Join(strings.Fields(value), ""))
		if err != nil {
			return Feature{}, fmt.Errorf("invalid bytes %q: %w", value, err)
		}
		if len(b) == 0 {
			return Feature{}, fmt.Errorf("invalid bytes %q: empty", value)
		}
		return Bytes(b), nil
	case KindNumber:
		return parseNumber(value)
	default:
		return newString(k, value), nil
	}
}

// ParseExpr parses "kind:value", e.g. "api:open" or "substring:/tmp/".
func ParseExpr(expr string) (Feature, error) {
	kind, value, ok := strings.Cut(expr, ":")
	if !ok {
		return Feature{}, fmt.Errorf("invalid feature %q: expected kind:value", expr)
	}
	return Parse(strings.TrimSpace(kind), value)
}

func parseNumber(value string) (Feature, error) {
	s := strings.TrimSpace(value)
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return Number(n), nil
	}
	if u, err := strconv.ParseUint(s, 0, 64); err == nil {
		// constants above MaxInt64 keep their bit pattern
		return Number(int64(u)), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Feature{}, fmt.Errorf("invalid number %q: %w", value, err)
	}
	if math.IsNaN(f) {
		return Feature{}, fmt.Errorf("invalid number %q: NaN", value)
	}
	return NumberFloat(f), nil
}
