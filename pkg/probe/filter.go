package probe

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig specifies include and exclude patterns for probe filtering.
type FilterConfig struct {
	Include []string // Regex patterns - only matching probes included
	Exclude []string // Regex patterns - matching probes excluded
}

// ParsePatterns splits a comma-separated string into trimmed patterns.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include and then exclude patterns to probe ids.
// Empty include means "include all".
func Filter(probes []*Probe, config FilterConfig) ([]*Probe, error) {
	if len(probes) == 0 {
		return probes, nil
	}

	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*Probe, 0, len(probes))
	for _, p := range probes {
		if len(include) > 0 && !matchesAny(p.ID, include) {
			continue
		}
		if matchesAny(p.ID, exclude) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	regexes := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		regexes = append(regexes, re)
	}
	return regexes, nil
}

func matchesAny(id string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}
