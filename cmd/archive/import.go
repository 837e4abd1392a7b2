package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	importBucket      string
	importPrefix      string
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Archive every object under a Cloud Storage prefix",
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importBucket, "bucket", "", "source bucket")
	importCmd.Flags().StringVar(&importPrefix, "prefix", "", "object name prefix")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "objects archived at once")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importBucket == "" {
		return errors.New("--bucket is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	intake, err := a.ObjectIntake(ctx, importConcurrency)
	if err != nil {
		return err
	}
	summary, err := intake.Import(ctx, importBucket, importPrefix)
	if summary != nil {
		out, jsonErr := json.MarshalIndent(summary, "", "  ")
		if jsonErr != nil {
			return jsonErr
		}
		cmd.Println(string(out))
	}
	return err
}
