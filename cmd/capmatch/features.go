package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/address"
	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/store"
)

var (
	featuresFormat   string
	featuresColor    string
	featuresDB       string
	featuresSnapshot string
)

var featuresCmd = &cobra.Command{
	Use:   "features [trace.jsonl]",
	Short: "Dump the features extracted from a trace",
	Long: `Print every feature of every scope of a Frida trace.

With --db the features are also frozen into a snapshot store. With --db and
--snapshot the features are read back from a stored snapshot instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFeatures,
}

func init() {
	featuresCmd.Flags().StringVar(&featuresFormat, "format", "human", "Output format: human, json")
	featuresCmd.Flags().StringVar(&featuresColor, "color", "auto", "Color output: auto, always, never")
	featuresCmd.Flags().StringVar(&featuresDB, "db", "", "Snapshot store path")
	featuresCmd.Flags().StringVar(&featuresSnapshot, "snapshot", "", "Read this snapshot from --db instead of a trace")
}

// featureRow is one feature of the JSON output.
type featureRow struct {
	Scope    extractor.Scope `json:"scope"`
	Address  string          `json:"address"`
	Feature  string          `json:"feature"`
	Kind     string          `json:"kind"`
	Value    any             `json:"value"`
	Location string          `json:"location"`
}

// featureGroup is the features of one scope instance.
type featureGroup struct {
	scope extractor.Scope
	at    address.Address
	title string
	rows  []featureRow
}

func runFeatures(cmd *cobra.Command, args []string) error {
	ext, err := loadExtractor(args, featuresDB, featuresSnapshot)
	if err != nil {
		return err
	}

	if featuresDB != "" && featuresSnapshot == "" {
		if err := freezeFeatures(cmd, ext); err != nil {
			return err
		}
	}

	groups := collectFeatures(ext)
	switch featuresFormat {
	case "json":
		rows := []featureRow{}
		for _, g := range groups {
			rows = append(rows, g.rows...)
		}
		return writeJSON(cmd, rows)
	case "human":
		s, err := resolveColor(featuresColor)
		if err != nil {
			return err
		}
		return outputFeaturesHuman(cmd, s, groups)
	default:
		return fmt.Errorf("unknown output format: %s", featuresFormat)
	}
}

func freezeFeatures(cmd *cobra.Command, ext extractor.DynamicExtractor) error {
	st, err := store.New(store.Config{Path: featuresDB})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	snap, err := store.Freeze(commandContext(cmd), st, ext, "frida")
	if err != nil {
		return fmt.Errorf("freezing features: %w", err)
	}
	slog.Info("features frozen", "snapshot", snap.ID, "db", featuresDB)
	fmt.Fprintf(cmd.ErrOrStderr(), "Snapshot: %s\n", snap.ID)
	return nil
}

// collectFeatures walks ext in scope order: global, file, then each process
// followed by its threads and their calls.
func collectFeatures(ext extractor.DynamicExtractor) []featureGroup {
	var groups []featureGroup
	add := func(scope extractor.Scope, at address.Address, title string, seq extractor.Features) {
		g := featureGroup{scope: scope, at: at, title: title}
		for f, loc := range seq {
			g.rows = append(g.rows, featureRow{
				Scope:    scope,
				Address:  at.String(),
				Feature:  f.String(),
				Kind:     f.Name(),
				Value:    jsonValue(f.Value()),
				Location: loc.String(),
			})
		}
		groups = append(groups, g)
	}

	add(extractor.ScopeGlobal, address.None, "global", ext.GlobalFeatures())
	add(extractor.ScopeFile, address.None, "file", ext.FileFeatures())
	for ph := range ext.Processes() {
		add(extractor.ScopeProcess, ph.Address, ph.Address.String()+" "+ext.ProcessName(ph), ext.ProcessFeatures(ph))
		for th := range ext.Threads(ph) {
			add(extractor.ScopeThread, th.Address, th.Address.String(), ext.ThreadFeatures(ph, th))
			for ch := range ext.Calls(ph, th) {
				add(extractor.ScopeCall, ch.Address, ch.Address.String()+" "+ext.CallName(ph, th, ch), ext.CallFeatures(ph, th, ch))
			}
		}
	}
	return groups
}

// jsonValue keeps byte values readable in JSON.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("%X", b)
	}
	return v
}

func outputFeaturesHuman(cmd *cobra.Command, s *styles, groups []featureGroup) error {
	out := cmd.OutOrStdout()
	for _, g := range groups {
		depth := 0
		switch g.scope {
		case extractor.ScopeThread:
			depth = 1
		case extractor.ScopeCall:
			depth = 2
		}
		pad := strings.Repeat("  ", depth)

		fmt.Fprintf(out, "%s%s\n", pad, s.scope.Sprint(g.title))
		for _, r := range g.rows {
			line := pad + "  " + s.feature.Sprint(r.Feature)
			if r.Location != g.at.String() && r.Location != address.None.String() {
				line += " " + s.metadata.Sprint("@ "+r.Location)
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
