package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored guest accounts",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

func init() {
	addClientFlags(countCmd)
	rootCmd.AddCommand(countCmd)
}

func runCount(_ *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	body, err := c.do(http.MethodGet, "/count", nil)
	if err != nil {
		return err
	}
	fmt.Println(body)
	return nil
}
