package main

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/explore"
	"github.com/praetorian-inc/capmatch/pkg/scanner"
)

var (
	exploreProbesPath   string
	exploreFeatures     []string
	exploreProbeInclude string
	exploreProbeExclude string
	exploreExhaustive   bool
	exploreDB           string
	exploreSnapshot     string
)

var exploreCmd = &cobra.Command{
	Use:   "explore [trace.jsonl]",
	Short: "Interactively explore match results",
	Long: `Match probes against a trace (or a stored snapshot) and browse the hits
in an interactive TUI.

Features:
  - Three-pane layout: filters, hits table, evidence details
  - Faceted search by probe, scope and process
  - Evidence view with rendered calls and matched strings
  - Full result tree overlay
  - Vi-style navigation (hjkl, Ctrl-f/b, g/G)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().StringVar(&exploreProbesPath, "probes", "", "Path to probe file or directory")
	exploreCmd.Flags().StringArrayVar(&exploreFeatures, "feature", nil, "Feature to match as kind:value (repeatable)")
	exploreCmd.Flags().StringVar(&exploreProbeInclude, "probes-include", "", "Include probes matching regex pattern (comma-separated)")
	exploreCmd.Flags().StringVar(&exploreProbeExclude, "probes-exclude", "", "Exclude probes matching regex pattern (comma-separated)")
	exploreCmd.Flags().BoolVar(&exploreExhaustive, "exhaustive", false, "Report every matched string instead of the first")
	exploreCmd.Flags().StringVar(&exploreDB, "db", "", "Snapshot store path (with --snapshot)")
	exploreCmd.Flags().StringVar(&exploreSnapshot, "snapshot", "", "Explore this snapshot from --db instead of a trace")
}

func runExplore(cmd *cobra.Command, args []string) error {
	model, err := buildExploreModel(cmd, args)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(commandContext(cmd)),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running explore TUI: %w", err)
	}

	return nil
}

// buildExploreModel runs the scan the TUI browses.
func buildExploreModel(cmd *cobra.Command, args []string) (explore.Model, error) {
	probes, err := loadProbes(exploreProbesPath, exploreFeatures, exploreProbeInclude, exploreProbeExclude)
	if err != nil {
		return explore.Model{}, fmt.Errorf("loading probes: %w", err)
	}

	ext, err := loadExtractor(args, exploreDB, exploreSnapshot)
	if err != nil {
		return explore.Model{}, err
	}

	core, err := scanner.New(probes,
		scanner.WithShortCircuit(!exploreExhaustive),
		scanner.WithLogger(slog.Default()),
	)
	if err != nil {
		return explore.Model{}, fmt.Errorf("creating scanner: %w", err)
	}

	result, err := core.Scan(commandContext(cmd), ext)
	if err != nil {
		return explore.Model{}, fmt.Errorf("scanning: %w", err)
	}
	slog.Debug("explore scan complete", "probes", len(probes), "hits", len(result.Hits))

	tracePath := ""
	if len(args) > 0 {
		tracePath = args[0]
	}
	return explore.New(result, tracePath), nil
}
