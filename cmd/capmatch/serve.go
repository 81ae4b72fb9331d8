package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/scanner"
	"github.com/praetorian-inc/capmatch/pkg/serve"
)

var (
	serveProbesPath string
	serveFeatures   []string
	serveExhaustive bool
	serveStats      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming matcher over stdin/stdout",
	Long: `Run capmatch as a long-lived server that accepts match requests on stdin
and writes one JSON response per request to stdout (NDJSON).

Probes are loaded once at startup. Requests are processed until stdin
closes, a "close" request arrives, or SIGTERM is received.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveProbesPath, "probes", "", "Path to probe file or directory")
	serveCmd.Flags().StringArrayVar(&serveFeatures, "feature", nil, "Feature to match as kind:value (repeatable)")
	serveCmd.Flags().BoolVar(&serveExhaustive, "exhaustive", false, "Report every matched string instead of the first")
	serveCmd.Flags().BoolVar(&serveStats, "stats", false, "Include feature evaluation counters in responses")
}

func runServe(cmd *cobra.Command, args []string) error {
	probes, err := loadProbes(serveProbesPath, serveFeatures, "", "")
	if err != nil {
		return fmt.Errorf("loading probes: %w", err)
	}

	core, err := scanner.New(probes,
		scanner.WithShortCircuit(!serveExhaustive),
		scanner.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("creating scanner: %w", err)
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	srv.SetStats(serveStats)
	slog.Debug("serving", "probes", len(probes))
	return srv.Run(ctx)
}
