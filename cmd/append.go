package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var appendCmd = &cobra.Command{
	Use:   "append [file...]",
	Short: "Append guest accounts from files or stdin",
	Long: `Sends the contents of each file (or stdin when none are given) to the server.
The input is any sequence of JSON values, e.g. one object per line.`,
	RunE: runAppend,
}

func init() {
	addClientFlags(appendCmd)
	rootCmd.AddCommand(appendCmd)
}

func runAppend(_ *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if _, err := c.do(http.MethodPost, "/append", os.Stdin); err != nil {
			return err
		}
		fmt.Println("Appended stdin")
		return nil
	}

	for _, path := range args {
		if err := appendFile(c, path); err != nil {
			return err
		}
		fmt.Printf("Appended %s\n", path)
	}
	return nil
}

func appendFile(c *client, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := c.do(http.MethodPost, "/append", f); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}
