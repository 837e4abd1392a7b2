package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Archive local files",
	Long: `Copies each file into the temporary upload directory and runs it through
the ingest pipeline. The source file is left untouched. Prints one line per
file: the content hash, or the error message.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := 0
	for _, src := range args {
		d, err := stageLocalFile(settings.TemporaryUploadPath, src)
		if err == nil {
			result, procErr := a.Ingest.Process(ctx, d)
			if procErr == nil {
				cmd.Printf("%s\t%s\n", result.ContentHash, src)
				continue
			}
			os.Remove(d.TempPath)
			err = procErr
		}
		failed++
		status, message := archive.StatusOf(err)
		cmd.PrintErrf("%s\t%d %s\n", src, status, message)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// stageLocalFile copies src into tempDir under a fresh name, the way an
// HTTP upload lands there.
func stageLocalFile(tempDir, src string) (*models.UploadDescriptor, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, &archive.ValidationError{Kind: archive.FileUnreadable}
	}
	defer in.Close()

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temporary upload path: %w", err)
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(src))
	tempPath := filepath.Join(tempDir, name)
	out, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file at %s: %w", tempPath, err)
	}
	size, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return &models.UploadDescriptor{
		TempPath:     tempPath,
		FileName:     name,
		OriginalName: filepath.Base(src),
		Size:         size,
	}, nil
}
