package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/gcp"
	"github.com/Lllllllleong/filearchive/internal/models"
)

// ObjectSource fetches intake objects from a bucket.
type ObjectSource interface {
	Download(ctx context.Context, bucket, object, destPath string) (int64, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

type ObjectIntakeConfig struct {
	TemporaryUploadPath string
	// Concurrency bounds the number of objects an Import archives at once.
	Concurrency int
}

// ObjectIntakeFunction feeds bucket objects into the ingest pipeline, either
// one at a time from storage notifications or in bulk from a prefix.
type ObjectIntakeFunction struct {
	source ObjectSource
	ingest *IngestFunction
	config ObjectIntakeConfig
}

func NewObjectIntake(config ObjectIntakeConfig, source ObjectSource, ingest *IngestFunction) (*ObjectIntakeFunction, error) {
	if config.TemporaryUploadPath == "" {
		return nil, fmt.Errorf("temporary upload path must be set")
	}
	if source == nil || ingest == nil {
		return nil, fmt.Errorf("an object source and an ingest function must be provided")
	}
	if config.Concurrency < 1 {
		config.Concurrency = 4
	}
	if err := os.MkdirAll(config.TemporaryUploadPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temporary upload path: %w", err)
	}
	return &ObjectIntakeFunction{source: source, ingest: ingest, config: config}, nil
}

// Process downloads one object and archives it. A nil result with a nil error
// means the object was skipped.
func (f *ObjectIntakeFunction) Process(ctx context.Context, e models.GCSEvent) (*IngestResult, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Name == "" || strings.HasSuffix(e.Name, "/") {
		logCtx.Info("Ignoring directory placeholder.")
		return nil, nil
	}
	logCtx.Info("Processing new GCS object.")

	originalName := path.Base(e.Name)
	tempPath := filepath.Join(f.config.TemporaryUploadPath, uuid.NewString()+path.Ext(originalName))
	size, err := f.source.Download(ctx, e.Bucket, e.Name, tempPath)
	if err != nil {
		if gcp.IsNotFound(err) {
			logCtx.Warn("Object no longer exists. Skipping.", "error", err)
			return nil, nil // Clean exit for a deleted object
		}
		logCtx.Error("Failed to download object.", "error", err)
		return nil, err
	}

	d := &models.UploadDescriptor{
		TempPath:     tempPath,
		FileName:     filepath.Base(tempPath),
		OriginalName: originalName,
		Size:         size,
	}
	res, err := f.ingest.Process(ctx, d)
	if err != nil {
		if rmErr := os.Remove(tempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logCtx.Warn("Failed to remove temporary download.", "error", rmErr)
		}
		return nil, err
	}
	return res, nil
}

// Import archives every object under prefix. Individual failures are
// collected in the summary and do not stop the remaining objects.
func (f *ObjectIntakeFunction) Import(ctx context.Context, bucket, prefix string) (*models.ImportSummary, error) {
	logCtx := slog.With("gcsBucket", bucket, "prefix", prefix)
	names, err := f.source.List(ctx, bucket, prefix)
	if err != nil {
		logCtx.Error("Failed to list objects.", "error", err)
		return nil, err
	}
	logCtx.Info("Starting import.", "objectCount", len(names), "concurrency", f.config.Concurrency)

	summary := &models.ImportSummary{
		Bucket:   bucket,
		Prefix:   prefix,
		Listed:   len(names),
		Archived: make(map[string]string),
	}
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.config.Concurrency)
	for _, name := range names {
		eg.Go(func() error {
			res, err := f.Process(gctx, models.GCSEvent{Bucket: bucket, Name: name})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status, message := archive.StatusOf(err)
				summary.Failed = append(summary.Failed, models.ImportFailure{Object: name, Status: status, Message: message})
				return nil
			}
			if res != nil {
				summary.Archived[name] = res.ContentHash
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Object < summary.Failed[j].Object })
	logCtx.Info("Import finished.", "archived", len(summary.Archived), "failed", len(summary.Failed))
	return summary, nil
}
