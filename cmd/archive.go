package cmd

import (
	"fmt"

	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <file>",
	Short: "Print the records stored in a prune archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(_ *cobra.Command, args []string) error {
	lines, err := guestlog.ReadArchive(args[0])
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
