package cmd

import (
	"fmt"
	"time"

	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/boozedog/guestlog/internal/snowflake"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <id>...",
	Short: "Show the creation time encoded in snowflake IDs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDecode,
}

// decodeNow is the reference time for ages; replaced in tests.
var decodeNow = time.Now

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(_ *cobra.Command, args []string) error {
	now := decodeNow().Unix()
	for _, arg := range args {
		id, err := snowflake.Parse(arg)
		if err != nil {
			return err
		}
		secs := snowflake.Seconds(id)
		expired := now-secs >= int64(guestlog.MaxAge/time.Second)
		fmt.Printf("%s  %s  %d  expired=%t\n", arg, snowflake.Time(id).Format(time.RFC3339), secs, expired)
	}
	return nil
}
