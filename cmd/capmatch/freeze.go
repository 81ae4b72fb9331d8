package main

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/enum"
	"github.com/praetorian-inc/capmatch/pkg/frida"
	"github.com/praetorian-inc/capmatch/pkg/store"
)

var (
	freezeDB            string
	freezeFormat        string
	freezeWorkers       int
	freezeSkipInvalid   bool
	freezeIncludeHidden bool
)

var freezeCmd = &cobra.Command{
	Use:   "freeze <trace-or-dir>...",
	Short: "Freeze traces into a snapshot store",
	Long: `Extract the features of every trace found under the given paths and store
each as a snapshot. Directories are walked for *.jsonl files, honoring a
.gitignore at their root.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFreeze,
}

func init() {
	freezeCmd.Flags().StringVar(&freezeDB, "db", "capmatch.db", "Snapshot store path")
	freezeCmd.Flags().StringVar(&freezeFormat, "format", "table", "Output format: table, json")
	freezeCmd.Flags().IntVar(&freezeWorkers, "workers", 0, "Traces parsed in parallel (0 = NumCPU)")
	freezeCmd.Flags().BoolVar(&freezeSkipInvalid, "skip-invalid", false, "Skip traces that fail to parse")
	freezeCmd.Flags().BoolVar(&freezeIncludeHidden, "include-hidden", false, "Include hidden files and directories")
}

// frozenTrace pairs a trace file with the snapshot it was frozen into.
type frozenTrace struct {
	Path     string `json:"path"`
	Snapshot string `json:"snapshot"`
}

func runFreeze(cmd *cobra.Command, args []string) error {
	if freezeFormat != "table" && freezeFormat != "json" {
		return fmt.Errorf("unknown output format: %s", freezeFormat)
	}

	st, err := store.New(store.Config{Path: freezeDB})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := commandContext(cmd)
	var mu sync.Mutex
	var frozen []frozenTrace

	for _, root := range args {
		e := enum.NewFilesystemEnumerator(enum.Config{
			Root:          root,
			IncludeHidden: freezeIncludeHidden,
			SkipInvalid:   freezeSkipInvalid,
			Workers:       freezeWorkers,
		})
		err := e.Enumerate(ctx, func(path string, report *frida.Report) error {
			snap, err := store.Freeze(ctx, st, frida.New(report), "frida")
			if err != nil {
				return fmt.Errorf("freezing %s: %w", path, err)
			}
			slog.Debug("trace frozen", "path", path, "snapshot", snap.ID)

			mu.Lock()
			frozen = append(frozen, frozenTrace{Path: path, Snapshot: snap.ID})
			mu.Unlock()
			return nil
		})
		if err != nil {
			return err
		}
	}

	slices.SortFunc(frozen, func(a, b frozenTrace) int { return cmp.Compare(a.Path, b.Path) })
	slog.Info("freeze complete", "traces", len(frozen), "db", freezeDB)

	switch freezeFormat {
	case "json":
		if frozen == nil {
			frozen = []frozenTrace{}
		}
		return writeJSON(cmd, frozen)
	default:
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "Trace\tSnapshot\n")
		fmt.Fprintf(w, "-----\t--------\n")
		for _, f := range frozen {
			fmt.Fprintf(w, "%s\t%s\n", f.Path, f.Snapshot)
		}
		return nil
	}
}
