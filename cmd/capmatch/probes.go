package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/probe"
)

var (
	probesPath   string
	probesFormat string
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "Manage capability probes",
	Long:  "Commands for listing and inspecting capability probes",
}

var probesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available probes",
	Long:  "Display the builtin probes, or those of --probes, with their features and scopes",
	RunE:  runProbesList,
}

func init() {
	probesCmd.AddCommand(probesListCmd)
	probesListCmd.Flags().StringVar(&probesPath, "probes", "", "Path to probe file or directory")
	probesListCmd.Flags().StringVar(&probesFormat, "format", "table", "Output format: table, json")
}

// probeJSON is one probe of the JSON output.
type probeJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Feature     string            `json:"feature"`
	Scopes      []extractor.Scope `json:"scopes"`
}

func runProbesList(cmd *cobra.Command, args []string) error {
	loader := probe.NewLoader()

	var probes []*probe.Probe
	var err error
	if probesPath != "" {
		probes, err = loader.LoadPath(probesPath)
		if err != nil {
			return fmt.Errorf("loading probes from %s: %w", probesPath, err)
		}
	} else {
		probes, err = loader.LoadBuiltin()
		if err != nil {
			return fmt.Errorf("loading builtin probes: %w", err)
		}
	}

	switch probesFormat {
	case "json":
		out := make([]probeJSON, len(probes))
		for i, p := range probes {
			out[i] = probeJSON{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				Feature:     p.Feature.String(),
				Scopes:      effectiveScopes(p),
			}
		}
		return writeJSON(cmd, out)
	case "table":
		return outputProbesTable(cmd, probes)
	default:
		return fmt.Errorf("unknown output format: %s", probesFormat)
	}
}

// effectiveScopes lists the scopes a probe is evaluated at.
func effectiveScopes(p *probe.Probe) []extractor.Scope {
	var scopes []extractor.Scope
	for _, s := range extractor.DynamicScopes {
		if p.AppliesAt(s) {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func outputProbesTable(cmd *cobra.Command, probes []*probe.Probe) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tFeature\tScopes\n")
	fmt.Fprintf(w, "--\t-------\t------\n")

	for _, p := range probes {
		var scopes []string
		for _, s := range effectiveScopes(p) {
			scopes = append(scopes, s.String())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Feature, strings.Join(scopes, ","))
	}

	return nil
}
