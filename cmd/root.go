package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "guestlog",
	Short: "guestlog: guest account store with age-based pruning",
	Long: `Stores guest accounts as one JSON object per line in a single file and serves
count, append and prune operations over HTTP behind a shared secret.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// configPath is the --config flag shared by all commands.
var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $GUESTLOG_CONFIG or ./guestlog.toml)")
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
