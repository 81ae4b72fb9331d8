package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/capmatch/pkg/probe"
	"github.com/praetorian-inc/capmatch/pkg/serve"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the capmatch version and build details",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	builtin := "unavailable"
	if probes, err := probe.NewLoader().LoadBuiltin(); err == nil {
		builtin = fmt.Sprint(len(probes))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "capmatch %s (%s)\n", version, commit)
	fmt.Fprintf(out, "  builtin probes:   %s\n", builtin)
	fmt.Fprintf(out, "  serve protocol:   %s\n", serve.Version)
	fmt.Fprintf(out, "  runtime:          %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
