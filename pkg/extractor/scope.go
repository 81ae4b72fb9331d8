package extractor

import "fmt"

// Scope is the granularity at which features are collected and evaluated.
type Scope uint8

const (
	ScopeGlobal Scope = iota
	ScopeFile
	ScopeProcess
	ScopeThread
	ScopeCall
)

var scopeNames = [...]string{
	ScopeGlobal:  "global",
	ScopeFile:    "file",
	ScopeProcess: "process",
	ScopeThread:  "thread",
	ScopeCall:    "call",
}

// DynamicScopes are the scopes a probe may target in a dynamic trace, from
// widest to narrowest.
var DynamicScopes = []Scope{ScopeFile, ScopeProcess, ScopeThread, ScopeCall}

func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return fmt.Sprintf("scope(%d)", uint8(s))
}

// ParseScope returns the scope with the given name.
func ParseScope(name string) (Scope, error) {
	for i, n := range scopeNames {
		if n == name {
			return Scope(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scope %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(text []byte) error {
	v, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
