package cmd

import (
	"fmt"
	"os"

	"github.com/boozedog/guestlog/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE:  runInit,
}

var (
	initPort int
	initFile string
	initAuth string
)

func init() {
	initCmd.Flags().IntVar(&initPort, "port", 8080, "port to listen on")
	initCmd.Flags().StringVar(&initFile, "file", "guest_accounts.jsonl", "guest file path")
	initCmd.Flags().StringVar(&initAuth, "auth", "", "shared secret (required)")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}
	if initAuth == "" {
		return fmt.Errorf("--auth is required")
	}

	cfg := config.Default()
	cfg.Server.Port = initPort
	cfg.Server.Auth = initAuth
	cfg.Store.Path = initFile

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Wrote config to %s\n", path)
	return nil
}
