package feature

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// ErrInvalidRegex is returned when a Regex pattern cannot be compiled.
var ErrInvalidRegex = errors.New("invalid regular expression")

// Regex matches String evidence by an unanchored search of pattern.
// pattern is written /re/ or /re/i for case-insensitive matching; "." also
// matches newlines. Compile errors surface here, never during evaluation.
func Regex(pattern string) (Feature, error) {
	body, opts, ok := splitPattern(pattern)
	if !ok {
		return Feature{}, fmt.Errorf("%w: %s must be delimited as /pattern/ or /pattern/i", ErrInvalidRegex, pattern)
	}

	// Try RE2 mode first so (?P<name>...) groups work, then fall back to the
	// default Perl-compatible dialect for lookarounds and backreferences.
	re, err := regexp2.Compile(body, opts|regexp2.RE2)
	if err != nil {
		re, err = regexp2.Compile(body, opts)
		if err != nil {
			shown := strings.TrimSuffix(pattern, "i")
			return Feature{}, fmt.Errorf("%w: %s (use standard regular expression syntax): %w", ErrInvalidRegex, shown, err)
		}
	}

	f := newString(KindRegex, pattern)
	f.re = re
	return f, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
func MustRegex(pattern string) Feature {
	f, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// StringOrRegex returns a Regex when value is delimited like /re/ or /re/i
// and a String otherwise.
func StringOrRegex(value string) (Feature, error) {
	if isDelimitedPattern(value) {
		return Regex(value)
	}
	return String(value), nil
}

func isDelimitedPattern(value string) bool {
	return len(value) >= 2 && strings.HasPrefix(value, "/") &&
		(strings.HasSuffix(value, "/") || (len(value) >= 3 && strings.HasSuffix(value, "/i")))
}

// splitPattern strips the delimiters and returns the compile options.
func splitPattern(pattern string) (string, regexp2.RegexOptions, bool) {
	if !isDelimitedPattern(pattern) {
		return "", 0, false
	}
	opts := regexp2.RegexOptions(regexp2.Singleline)
	if strings.HasSuffix(pattern, "/i") {
		return pattern[1 : len(pattern)-2], opts | regexp2.IgnoreCase, true
	}
	return pattern[1 : len(pattern)-1], opts, true
}

// search reports whether the compiled pattern occurs anywhere in s.
func (f Feature) search(s string) (bool, error) {
	if f.re == nil {
		return false, fmt.Errorf("regex feature %s was not constructed with Regex", f.key.s)
	}
	return f.re.MatchString(s)
}
