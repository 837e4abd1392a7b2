package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/filearchive/internal/app"
	"github.com/Lllllllleong/filearchive/internal/config"
	"github.com/Lllllllleong/filearchive/internal/gcp"
	"github.com/Lllllllleong/filearchive/internal/models"
	"github.com/Lllllllleong/filearchive/internal/services"
)

var (
	archiveApp *app.App
	intake     *services.ObjectIntakeFunction
	router     http.Handler
	once       sync.Once
	initErr    error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	functions.CloudEvent("IngestObject", ingestObject)
	functions.HTTP("Archive", serveArchive)
}

// main is required by the Go Functions Framework.
func main() {}

func setup() error {
	once.Do(func() {
		ctx := context.Background()
		cfg, err := config.Load(gcp.GetEnv("ARCHIVE_CONFIG", ""))
		if err != nil {
			initErr = err
			return
		}
		archiveApp, err = app.New(ctx, cfg)
		if err != nil {
			initErr = err
			return
		}
		archiveApp.LogSettings()

		intake, err = archiveApp.ObjectIntake(ctx, 1)
		if err != nil {
			initErr = err
			return
		}
		srv, err := archiveApp.Server()
		if err != nil {
			initErr = err
			return
		}
		router = srv.Router()
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
	}
	return initErr
}

// ingestObject archives an object finalized in the intake bucket.
func ingestObject(ctx context.Context, e cloudevents.Event) error {
	if err := setup(); err != nil {
		return err
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside Process.
	_, err := intake.Process(ctx, gcsEvent)
	return err
}

// serveArchive exposes the upload and retrieval routes over HTTP.
func serveArchive(w http.ResponseWriter, r *http.Request) {
	if err := setup(); err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}
