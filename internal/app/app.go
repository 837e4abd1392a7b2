// Package app wires the archive components from a loaded Config. Both the CLI
// and the Cloud Functions entry point build the same graph here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/catalog"
	"github.com/Lllllllleong/filearchive/internal/config"
	"github.com/Lllllllleong/filearchive/internal/convert"
	"github.com/Lllllllleong/filearchive/internal/gcp"
	"github.com/Lllllllleong/filearchive/internal/metrics"
	"github.com/Lllllllleong/filearchive/internal/server"
	"github.com/Lllllllleong/filearchive/internal/services"
)

type App struct {
	Config    config.Config
	Hasher    *archive.Hasher
	Ingest    *services.IngestFunction
	Retrieval *services.RetrievalFunction
	Catalog   catalog.Catalog
	Registry  *prometheus.Registry

	closers []io.Closer
}

// New builds every component named by cfg. Clients for optional GCP
// services are created only when configured.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}

	hasher, err := archive.NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	a.Hasher = hasher

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewPrometheusObserver("filearchive", a.Registry)
	if err != nil {
		return nil, err
	}

	cat, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat
	a.closers = append(a.closers, cat)

	opts := []services.IngestOption{services.WithCatalog(cat), services.WithObserver(observer)}
	if cfg.Notify.WorkflowID != "" {
		notifier, err := gcp.NewWorkflowNotifier(ctx, cfg.Notify.ProjectID, cfg.Notify.Location, cfg.Notify.WorkflowID)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, notifier)
		opts = append(opts, services.WithNotifier(notifier))
	}

	runner := convert.NewExecRunner(cfg.Tools.Timeout, cfg.Tools.MaxConcurrent)
	magick := convert.NewMagick(runner, cfg.Tools.Convert)
	converters := services.Converters{
		Office:      convert.NewOffice(runner, cfg.Tools.Unoconv, convert.OfficeEndpoint(cfg.OfficeSocketIP, cfg.OfficeSocketPort)),
		Image:       magick,
		Compressor:  magick,
		Thumbnailer: magick,
	}

	layout := cfg.Layout()
	a.Ingest, err = services.NewIngest(services.IngestConfig{
		Layout:         layout,
		Policy:         cfg.AllowedExtensions,
		DedupeInFlight: cfg.DedupeInFlight,
	}, hasher, converters, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Retrieval, err = services.NewRetrieval(layout, hasher, cfg.RetrievalCacheSize, observer)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig) (catalog.Catalog, error) {
	switch cfg.Driver {
	case config.CatalogSQLite:
		return catalog.OpenSQLite(cfg.Path)
	case config.CatalogFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.Database)
		if err != nil {
			return nil, err
		}
		return catalog.NewFirestore(client, cfg.Collection), nil
	case config.CatalogNone, "":
		return catalog.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}

// Server builds the HTTP front over this App.
func (a *App) Server() (*server.Server, error) {
	return server.New(server.Config{
		TemporaryUploadPath: a.Config.TemporaryUploadPath,
		MaxUploadBytes:      a.Config.MaxUploadBytes,
		UploadsPerMinute:    a.Config.UploadsPerMinute,
		UploadBurst:         a.Config.UploadBurst,
		MetricsHandler:      a.MetricsHandler(),
	}, a.Ingest, a.Retrieval, a.Catalog)
}

func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// ObjectIntake builds the Cloud Storage intake. It opens a Storage client,
// which is closed with the App.
func (a *App) ObjectIntake(ctx context.Context, concurrency int) (*services.ObjectIntakeFunction, error) {
	source, err := gcp.NewStorageSource(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, source)
	return services.NewObjectIntake(services.ObjectIntakeConfig{
		TemporaryUploadPath: a.Config.TemporaryUploadPath,
		Concurrency:         concurrency,
	}, source, a.Ingest)
}

// LogSettings writes the start-up banner.
func (a *App) LogSettings() {
	cfg := a.Config
	slog.Info("Archive settings loaded.",
		"archiveRoot", cfg.ArchiveRoot,
		"temporaryUploadPath", cfg.TemporaryUploadPath,
		"directoryNameLength", cfg.DirectoryNameLength,
		"directoryDepth", cfg.DirectoryDepth,
		"hashAlgorithm", string(a.Hasher.Algorithm()),
		"allowedExtensions", cfg.AllowedExtensions.Extensions(),
		"catalog", cfg.Catalog.Driver,
	)
	slog.Warn("directoryNameLength, directoryDepth and hashAlgorithm must never change once content is archived; existing entries would no longer resolve.")
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
