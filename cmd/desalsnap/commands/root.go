package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var debug *bool

var rootCmd = &cobra.Command{
	Use:           "desalsnap",
	Short:         "desalsnap runs the desalination capacity pipeline once and writes offline snapshots.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Load .env and log at debug level.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
