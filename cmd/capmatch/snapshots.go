package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/store"
)

var (
	snapshotsDB     string
	snapshotsFormat string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored feature snapshots",
	Long:  "Display the feature snapshots frozen into a store by 'features --db'",
	RunE:  runSnapshots,
}

func init() {
	snapshotsCmd.Flags().StringVar(&snapshotsDB, "db", "capmatch.db", "Snapshot store path")
	snapshotsCmd.Flags().StringVar(&snapshotsFormat, "format", "table", "Output format: table, json")
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	st, err := store.New(store.Config{Path: snapshotsDB})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	snapshots, err := st.Snapshots()
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	switch snapshotsFormat {
	case "json":
		if snapshots == nil {
			snapshots = []store.Snapshot{}
		}
		return writeJSON(cmd, snapshots)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "ID\tFormat\tCreated\n")
		fmt.Fprintf(w, "--\t------\t-------\n")
		for _, s := range snapshots {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Format, s.CreatedAt.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", snapshotsFormat)
	}
}
