package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/feature"
	"github.com/praetorian-inc/capmatch/pkg/probe"
	"github.com/praetorian-inc/capmatch/pkg/sarif"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

var (
	matchProbesPath   string
	matchFeatures     []string
	matchProbeInclude string
	matchProbeExclude string
	matchExhaustive   bool
	matchWorkers      int
	matchFormat       string
	matchColor        string
	matchStats        bool
	matchDB           string
	matchSnapshot     string
)

var matchCmd = &cobra.Command{
	Use:   "match [trace.jsonl]",
	Short: "Match probes against a trace",
	Long: `Evaluate capability probes against every scope of a Frida trace, or of a
snapshot read back with --db and --snapshot.

Probes come from --probes (a YAML file or directory) and from each
--feature kind:value, which becomes a probe of its own. Without either, the
builtin probes are used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchProbesPath, "probes", "", "Path to probe file or directory")
	matchCmd.Flags().StringArrayVar(&matchFeatures, "feature", nil, "Feature to match as kind:value (repeatable)")
	matchCmd.Flags().StringVar(&matchProbeInclude, "probes-include", "", "Include probes matching regex pattern (comma-separated)")
	matchCmd.Flags().StringVar(&matchProbeExclude, "probes-exclude", "", "Exclude probes matching regex pattern (comma-separated)")
	matchCmd.Flags().BoolVar(&matchExhaustive, "exhaustive", false, "Report every matched string instead of the first")
	matchCmd.Flags().IntVar(&matchWorkers, "workers", 1, "Number of processes scanned in parallel")
	matchCmd.Flags().StringVar(&matchFormat, "format", "human", "Output format: human, json, sarif")
	matchCmd.Flags().StringVar(&matchColor, "color", "auto", "Color output: auto, always, never")
	matchCmd.Flags().BoolVar(&matchStats, "stats", false, "Print feature evaluation counters")
	matchCmd.Flags().StringVar(&matchDB, "db", "", "Snapshot store path (with --snapshot)")
	matchCmd.Flags().StringVar(&matchSnapshot, "snapshot", "", "Match this snapshot from --db instead of a trace")
}

func runMatch(cmd *cobra.Command, args []string) error {
	probes, err := loadProbes(matchProbesPath, matchFeatures, matchProbeInclude, matchProbeExclude)
	if err != nil {
		return fmt.Errorf("loading probes: %w", err)
	}

	ext, err := loadExtractor(args, matchDB, matchSnapshot)
	if err != nil {
		return err
	}

	core, err := scanner.New(probes,
		scanner.WithShortCircuit(!matchExhaustive),
		scanner.WithWorkers(matchWorkers),
		scanner.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("creating scanner: %w", err)
	}

	result, err := core.Scan(commandContext(cmd), ext)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	slog.Debug("match complete", "probes", len(probes), "hits", len(result.Hits))

	switch matchFormat {
	case "json":
		return outputMatchJSON(cmd, result)
	case "sarif":
		return outputMatchSARIF(cmd, probes, result, matchArtifact(args))
	case "human":
		s, err := resolveColor(matchColor)
		if err != nil {
			return err
		}
		return outputMatchHuman(cmd, s, result)
	default:
		return fmt.Errorf("unknown output format: %s", matchFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// loadProbes combines the probes of path with one probe per feature
// expression. With neither, the builtin probes are loaded.
func loadProbes(path string, exprs []string, include, exclude string) ([]*probe.Probe, error) {
	loader := probe.NewLoader()

	var probes []*probe.Probe
	if path != "" {
		p, err := loader.LoadPath(path)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p...)
	}
	for _, expr := range exprs {
		f, err := feature.ParseExpr(expr)
		if err != nil {
			return nil, err
		}
		probes = append(probes, probe.New(f))
	}
	if path == "" && len(exprs) == 0 {
		builtin, err := loader.LoadBuiltin()
		if err != nil {
			return nil, err
		}
		probes = builtin
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		config := probe.FilterConfig{
			Include: probe.ParsePatterns(include),
			Exclude: probe.ParsePatterns(exclude),
		}
		var err error
		probes, err = probe.Filter(probes, config)
		if err != nil {
			return nil, fmt.Errorf("filtering probes: %w", err)
		}
	}

	if len(probes) == 0 {
		return nil, fmt.Errorf("no probes left to evaluate")
	}
	return probes, nil
}

func outputMatchJSON(cmd *cobra.Command, result *scanner.ScanResult) error {
	return writeJSON(cmd, result.Summary(matchStats))
}

// matchArtifact names what was matched: the trace path or the snapshot.
func matchArtifact(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "snapshot/" + matchSnapshot
}

// outputMatchSARIF outputs hits in SARIF 2.1.0 format
func outputMatchSARIF(cmd *cobra.Command, probes []*probe.Probe, result *scanner.ScanResult, artifact string) error {
	report := sarif.NewReport()
	for _, p := range probes {
		report.AddProbe(p)
	}
	for _, h := range result.Hits {
		report.AddHit(h, artifact)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

func outputMatchHuman(cmd *cobra.Command, s *styles, result *scanner.ScanResult) error {
	out := cmd.OutOrStdout()

	if len(result.Hits) == 0 {
		fmt.Fprintf(out, "No matches.\n")
	}

	for _, id := range result.ProbeIDs() {
		hits := result.HitsFor(id)
		fmt.Fprintf(out, "%s %s\n", s.probe.Sprint(id), s.name.Sprint(hits[0].Probe.Name))
		for _, h := range hits {
			fmt.Fprintf(out, "  %s %s\n", s.scope.Sprint(h.Scope.String()), s.metadata.Sprint(h.Address.String()))
			fmt.Fprintln(out, indent(h.Result.String(), "    "))
		}
	}

	if !result.Layout.Empty() {
		fmt.Fprintf(out, "\n%s\n", s.heading.Sprint("Layout:"))
		for _, p := range result.Layout.Processes {
			fmt.Fprintf(out, "  %s %s\n", s.scope.Sprint(p.Address.String()), p.Name)
			for _, t := range p.Threads {
				fmt.Fprintf(out, "    %s\n", s.scope.Sprint(t.Address.String()))
				for _, c := range t.Calls {
					fmt.Fprintf(out, "      %s %s\n", s.metadata.Sprint(c.Address.String()), s.feature.Sprint(c.Name))
				}
			}
		}
	}

	if matchStats {
		fmt.Fprintf(out, "\n%s\n", s.heading.Sprint("Evaluations:"))
		keys := make([]string, 0, len(result.Counters))
		for k := range result.Counters {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %d\n", k, result.Counters[k])
		}
	}

	return nil
}
