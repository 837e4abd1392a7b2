package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/catalog"
	"github.com/Lllllllleong/filearchive/internal/convert"
	"github.com/Lllllllleong/filearchive/internal/metrics"
	"github.com/Lllllllleong/filearchive/internal/models"
)

// OfficeConverter writes the PDF sibling of an office document.
type OfficeConverter interface {
	ConvertToPDF(ctx context.Context, source string) error
}

// ImageConverter turns a raster image into a PDF at target.
type ImageConverter interface {
	ConvertToPDF(ctx context.Context, source, target string) error
}

// PDFCompressor produces the usage copy of a PDF.
type PDFCompressor interface {
	Compress(ctx context.Context, source, target string) error
}

// ThumbnailGenerator rasterizes the first page of a PDF.
type ThumbnailGenerator interface {
	Thumbnail(ctx context.Context, source, target string) error
}

// Notifier is told about every successfully archived entry.
type Notifier interface {
	Notify(ctx context.Context, arg models.WorkflowArgument) error
}

// Converters groups the external tools the pipeline drives.
type Converters struct {
	Office      OfficeConverter
	Image       ImageConverter
	Compressor  PDFCompressor
	Thumbnailer ThumbnailGenerator
}

type IngestConfig struct {
	Layout         archive.Layout
	Policy         models.ExtensionPolicy
	DedupeInFlight bool
}

// IngestResult describes an archived entry.
type IngestResult struct {
	ContentHash string
	MasterName  string
	Dir         string
	PageCount   int
	// Shared is true when this call joined a pipeline run started by a
	// concurrent upload of the same content.
	Shared bool
}

// IngestFunction runs the ingest pipeline: validate, hash, ensure the entry
// directory, place the upload, convert, compress, thumbnail and clean up. It
// stops at the first failing stage and never rolls back what was written.
type IngestFunction struct {
	config      IngestConfig
	hasher      *archive.Hasher
	converters  Converters
	catalog     catalog.Catalog
	observer    metrics.Observer
	notifier    Notifier
	pageCounter func(path string) (int, error)
	inflight    singleflight.Group
}

type IngestOption func(*IngestFunction)

func WithCatalog(c catalog.Catalog) IngestOption {
	return func(f *IngestFunction) { f.catalog = c }
}

func WithObserver(o metrics.Observer) IngestOption {
	return func(f *IngestFunction) { f.observer = o }
}

func WithNotifier(n Notifier) IngestOption {
	return func(f *IngestFunction) { f.notifier = n }
}

// WithPageCounter replaces the pdfcpu page counter.
func WithPageCounter(count func(path string) (int, error)) IngestOption {
	return func(f *IngestFunction) { f.pageCounter = count }
}

func NewIngest(config IngestConfig, hasher *archive.Hasher, converters Converters, opts ...IngestOption) (*IngestFunction, error) {
	if hasher == nil {
		return nil, fmt.Errorf("a hasher must be provided")
	}
	if config.Layout.Root == "" {
		return nil, fmt.Errorf("archive root must be set")
	}
	if config.Layout.NameLength < 1 || config.Layout.Depth < 1 {
		return nil, fmt.Errorf("directory name length and depth must be at least 1")
	}
	if len(config.Policy) == 0 {
		return nil, fmt.Errorf("at least one allowed extension must be configured")
	}
	if converters.Office == nil || converters.Image == nil || converters.Compressor == nil || converters.Thumbnailer == nil {
		return nil, fmt.Errorf("all converters must be provided")
	}

	f := &IngestFunction{
		config:      config,
		hasher:      hasher,
		converters:  converters,
		catalog:     catalog.Nop{},
		observer:    metrics.Nop(),
		pageCounter: convert.PageCount,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Process archives one upload and returns the content hash as the durable
// handle for retrieval. Errors are typed so archive.StatusOf can map them.
// Cancelling ctx does not stop a started pipeline.
func (f *IngestFunction) Process(ctx context.Context, d *models.UploadDescriptor) (*IngestResult, error) {
	// Once started, a pipeline runs to completion or failure. A caller that
	// goes away must not kill the tools mid-run, nor fail the uploads that
	// joined this run; tools.timeout still bounds each tool.
	ctx = context.WithoutCancel(ctx)
	logCtx := slog.Default()
	if d != nil {
		logCtx = slog.With("originalName", d.OriginalName, "tempPath", d.TempPath)
	}

	var ext string
	err := f.stage(archive.StageValidating, func() error {
		var err error
		ext, err = archive.Validate(d, f.config.Policy)
		return err
	})
	if err != nil {
		logCtx.Warn("Upload rejected.", "error", err)
		f.observer.ObserveIngest(metrics.OutcomeRejected)
		return nil, err
	}
	rule, _ := f.config.Policy.Lookup(ext)

	var hash string
	err = f.stage(archive.StageHashing, func() error {
		var err error
		hash, err = f.hasher.HashFile(d.TempPath)
		return err
	})
	if err != nil {
		logCtx.Error("Failed to calculate content hash.", "error", err)
		f.observer.ObserveIngest(metrics.OutcomeFailed)
		return nil, err
	}
	logCtx = logCtx.With("contentHash", hash, "extension", ext)

	if !f.config.DedupeInFlight {
		return f.place(ctx, logCtx, d, hash, ext, rule)
	}

	// Identical bytes uploaded under different extensions take different
	// conversion paths, so the extension is part of the key.
	leader := false
	v, err, _ := f.inflight.Do(hash+"."+ext, func() (interface{}, error) {
		leader = true
		return f.place(ctx, logCtx, d, hash, ext, rule)
	})
	if !leader {
		// Only the leader's temp file was moved; a follower still owns its own.
		if rmErr := os.Remove(d.TempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logCtx.Warn("Failed to remove duplicate upload.", "error", rmErr)
		}
	}
	if err != nil {
		return nil, err
	}
	res := *v.(*IngestResult)
	if !leader {
		res.Shared = true
		f.observer.ObserveIngest(metrics.OutcomeShared)
		logCtx.Info("Joined in-flight ingest of identical content.")
	}
	return &res, nil
}

func (f *IngestFunction) place(ctx context.Context, logCtx *slog.Logger, d *models.UploadDescriptor, hash, ext string, rule models.ConversionRule) (*IngestResult, error) {
	startedAt := time.Now().UTC()
	entry := models.Entry{
		ContentHash:  hash,
		OriginalName: d.OriginalName,
		Extension:    ext,
		Status:       models.StatusProcessing,
		SizeBytes:    d.Size,
		CreatedAt:    startedAt,
		UpdatedAt:    startedAt,
	}

	dir := f.config.Layout.Dir(hash)
	err := f.stage(archive.StageDirectoryEnsuring, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &archive.StorageError{Op: archive.OpMkdir, Path: dir, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, f.handleError(ctx, logCtx, entry, "failed to create entry directory", err)
	}
	f.record(ctx, logCtx, entry)

	originalPath := filepath.Join(dir, archive.MasterName(hash, ext))
	pdfPath := filepath.Join(dir, archive.PDFName(hash))
	usagePath := filepath.Join(dir, archive.UsageName(hash))
	thumbPath := filepath.Join(dir, archive.ThumbName(hash))

	err = f.stage(archive.StagePlacing, func() error {
		if err := moveFile(d.TempPath, originalPath); err != nil {
			return &archive.StorageError{Op: archive.OpMove, Path: originalPath, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, f.handleError(ctx, logCtx, entry, "failed to place upload", err)
	}
	logCtx.Info("Upload placed in archive.", "path", originalPath)

	converted := ext != archive.CanonicalExtension
	if converted {
		err = f.stage(archive.StageConverting, func() error {
			if rule.OfficeConversion {
				return f.converters.Office.ConvertToPDF(ctx, originalPath)
			}
			return f.converters.Image.ConvertToPDF(ctx, originalPath, pdfPath)
		})
		if err != nil {
			return nil, f.handleError(ctx, logCtx, entry, "failed to convert to pdf", err)
		}
	}

	err = f.stage(archive.StageCompressing, func() error {
		return f.converters.Compressor.Compress(ctx, pdfPath, usagePath)
	})
	if err != nil {
		return nil, f.handleError(ctx, logCtx, entry, "failed to compress pdf", err)
	}

	err = f.stage(archive.StageThumbnailing, func() error {
		return f.converters.Thumbnailer.Thumbnail(ctx, usagePath, thumbPath)
	})
	if err != nil {
		return nil, f.handleError(ctx, logCtx, entry, "failed to create thumbnail", err)
	}

	masterName := archive.PDFName(hash)
	if converted {
		obsolete := originalPath
		if rule.UseOriginalAsMaster {
			obsolete = pdfPath
			masterName = archive.MasterName(hash, ext)
		}
		err = f.stage(archive.StageCleaningUp, func() error {
			if err := os.Remove(obsolete); err != nil && !errors.Is(err, os.ErrNotExist) {
				return &archive.StorageError{Op: archive.OpCleanup, Path: obsolete, Err: err}
			}
			return nil
		})
		if err != nil {
			return nil, f.handleError(ctx, logCtx, entry, "failed to remove obsolete file", err)
		}
	}

	pageCount, err := f.pageCounter(usagePath)
	if err != nil {
		logCtx.Warn("Could not count pages of usage copy.", "error", err)
		pageCount = 0
	}

	entry.Status = models.StatusComplete
	entry.MasterName = masterName
	entry.PageCount = pageCount
	entry.UpdatedAt = time.Now().UTC()
	f.record(ctx, logCtx, entry)

	if f.notifier != nil {
		arg := models.WorkflowArgument{ContentHash: hash, MasterName: masterName, OriginalName: d.OriginalName}
		if err := f.notifier.Notify(ctx, arg); err != nil {
			logCtx.Error("Failed to notify workflow of archived entry.", "error", err)
		}
	}

	f.observer.ObserveStage(string(archive.StageDone), time.Since(startedAt), nil)
	f.observer.ObserveIngest(metrics.OutcomeArchived)
	logCtx.Info("Entry archived.", "masterName", masterName, "pageCount", pageCount)
	return &IngestResult{ContentHash: hash, MasterName: masterName, Dir: dir, PageCount: pageCount}, nil
}

// stage runs fn, records its duration and tags a failure with the stage.
func (f *IngestFunction) stage(s archive.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	f.observer.ObserveStage(string(s), time.Since(start), err)
	if err != nil {
		return &archive.StageError{Stage: s, Err: err}
	}
	return nil
}

func (f *IngestFunction) handleError(ctx context.Context, logCtx *slog.Logger, entry models.Entry, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	f.observer.ObserveIngest(metrics.OutcomeFailed)

	entry.Status = models.StatusFailed
	entry.ErrorDetails = fmt.Sprintf("%s: %v", message, originalErr)
	entry.UpdatedAt = time.Now().UTC()
	if err := f.catalog.Put(ctx, entry); err != nil {
		logCtx.Error("CRITICAL: Failed to record FAILED status after a processing error.", "updateError", err)
	}
	return originalErr
}

func (f *IngestFunction) record(ctx context.Context, logCtx *slog.Logger, entry models.Entry) {
	if err := f.catalog.Put(ctx, entry); err != nil {
		logCtx.Warn("Failed to record catalog entry.", "status", entry.Status, "error", err)
	}
}

// moveFile renames src to dst, copying across filesystems when the temp
// directory and the archive live on different devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".partial")
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
