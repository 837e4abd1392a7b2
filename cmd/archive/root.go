package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/filearchive/internal/app"
	"github.com/Lllllllleong/filearchive/internal/config"
	"github.com/Lllllllleong/filearchive/internal/logging"
)

var (
	configPath string

	settings  config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "archive",
	Short: "Content-addressed file archive",
	Long: `archive stores uploaded documents and images under a directory derived
from their content hash, converts them to PDF, and keeps a compressed usage
copy and a thumbnail next to the master.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		closer, err := logging.Setup(cfg.Logging)
		if err != nil {
			return err
		}
		settings, logCloser = cfg, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file (default $ARCHIVE_CONFIG or ./settings.json)")
}

// newApp builds the component graph for commands that touch the archive.
func newApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise archive: %w", err)
	}
	return a, nil
}
