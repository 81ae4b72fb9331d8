// Package sarif renders probe hits as a SARIF 2.1.0 log.
package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/probe"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "capmatch"
	ToolVersion = "0.1.0"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule describes one probe.
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	Properties       RuleProperties   `json:"properties"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// RuleProperties carries the probe's feature and scopes.
type RuleProperties struct {
	Feature string   `json:"feature"`
	Scopes  []string `json:"scopes"`
}

// Result represents a single hit
type Result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location names the trace and the scope instance of a hit.
type Location struct {
	PhysicalLocation PhysicalLocation  `json:"physicalLocation"`
	LogicalLocations []LogicalLocation `json:"logicalLocations,omitempty"`
}

// PhysicalLocation specifies the trace file
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// LogicalLocation is a process, thread or call address.
type LogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddProbe adds a probe to the report's rules
func (r *Report) AddProbe(p *probe.Probe) {
	var scopes []string
	for _, s := range p.Scopes {
		scopes = append(scopes, s.String())
	}
	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, Rule{
		ID:   p.ID,
		Name: p.Name,
		ShortDescription: ShortDescription{
			Text: p.Description,
		},
		Properties: RuleProperties{
			Feature: p.Feature.String(),
			Scopes:  scopes,
		},
	})
}

// AddHit adds a hit found in the trace at tracePath
func (r *Report) AddHit(h scanner.Hit, tracePath string) {
	loc := Location{
		PhysicalLocation: PhysicalLocation{
			ArtifactLocation: ArtifactLocation{URI: formatFileURI(tracePath)},
		},
	}
	// file scope hits have no finer location than the trace itself
	if h.Scope != extractor.ScopeFile {
		loc.LogicalLocations = []LogicalLocation{{
			FullyQualifiedName: h.Address.String(),
			Kind:               h.Scope.String(),
		}}
	}

	r.Runs[0].Results = append(r.Runs[0].Results, Result{
		RuleID: h.Probe.ID,
		Level:  "note",
		Message: Message{
			Text: h.Probe.Name + " at " + h.Scope.String() + " " + h.Address.String(),
		},
		Locations: []Location{loc},
	})
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		path = filepath.ToSlash(path)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	return filepath.ToSlash(path)
}
