package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/frida"
	"github.com/praetorian-inc/capmatch/pkg/store"
)

// styles holds the color formatters of human output.
type styles struct {
	heading  *color.Color
	scope    *color.Color
	probe    *color.Color
	name     *color.Color
	feature  *color.Color
	metadata *color.Color
}

// newStyles creates color formatters; enabled=false prints plain text.
func newStyles(enabled bool) *styles {
	s := &styles{
		heading:  color.New(color.Bold),
		scope:    color.New(color.FgHiBlue),
		probe:    color.New(color.Bold, color.FgHiGreen),
		name:     color.New(color.Bold, color.FgHiWhite),
		feature:  color.New(color.FgYellow),
		metadata: color.New(color.FgHiBlack),
	}

	if !enabled {
		for _, c := range []*color.Color{s.heading, s.scope, s.probe, s.name, s.feature, s.metadata} {
			c.DisableColor()
		}
	}

	return s
}

// resolveColor applies a --color mode: auto, always or never.
func resolveColor(mode string) (*styles, error) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	case "auto", "":
		// Check if stdout is a TTY and NO_COLOR is not set
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != ""
	default:
		return nil, fmt.Errorf("unknown color mode: %s", mode)
	}
	return newStyles(!color.NoColor), nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func indent(text, prefix string) string {
	return prefix + strings.ReplaceAll(text, "\n", "\n"+prefix)
}

// loadExtractor opens the trace named in args, or the stored snapshot when
// snapshotID is set.
func loadExtractor(args []string, dbPath, snapshotID string) (extractor.DynamicExtractor, error) {
	if snapshotID != "" {
		if dbPath == "" {
			return nil, fmt.Errorf("--snapshot requires --db")
		}
		if len(args) > 0 {
			return nil, fmt.Errorf("give either a trace file or --snapshot, not both")
		}

		st, err := store.New(store.Config{Path: dbPath})
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		frozen, err := store.Load(st, snapshotID)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
		return frozen, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("a trace file is required")
	}
	ext, err := frida.FromJSONLFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("loading trace: %w", err)
	}
	return ext, nil
}
