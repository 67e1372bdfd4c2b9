package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/boozedog/guestlog/internal/config"
	"github.com/boozedog/guestlog/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves GET /count, POST /append and POST /prune for the configured guest file.
Port, file path and secret come from the config file or the PORT, DEST_FILE and
AUTH environment variables; all three are required.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads --config if given, otherwise the default location.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := cfg.Logging.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(cfg)
	return srv.ListenAndServe(ctx)
}
