package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove guest accounts older than 25 days",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	addClientFlags(pruneCmd)
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(_ *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if _, err := c.do(http.MethodPost, "/prune", nil); err != nil {
		return err
	}
	fmt.Println("Pruned")
	return nil
}
