// Package server is the HTTP front of the archive: multipart upload intake,
// rendition download and catalog lookups.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/catalog"
	"github.com/Lllllllleong/filearchive/internal/models"
	"github.com/Lllllllleong/filearchive/internal/services"
)

// FormField is the multipart field carrying the uploaded file.
const FormField = "archiveFile"

type Ingester interface {
	Process(ctx context.Context, d *models.UploadDescriptor) (*services.IngestResult, error)
}

type Resolver interface {
	Resolve(ctx context.Context, hash string, rendition archive.Rendition) (string, error)
}

type EntryReader interface {
	Get(ctx context.Context, hash string) (*models.Entry, error)
}

type Config struct {
	TemporaryUploadPath string
	MaxUploadBytes      int64
	UploadsPerMinute    int
	UploadBurst         int
	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
}

type Server struct {
	cfg      Config
	ingest   Ingester
	resolver Resolver
	entries  EntryReader
}

func New(cfg Config, ingest Ingester, resolver Resolver, entries EntryReader) (*Server, error) {
	if cfg.TemporaryUploadPath == "" {
		return nil, fmt.Errorf("temporary upload path must be set")
	}
	if ingest == nil || resolver == nil {
		return nil, fmt.Errorf("an ingester and a resolver must be provided")
	}
	if entries == nil {
		entries = catalog.Nop{}
	}
	if err := os.MkdirAll(cfg.TemporaryUploadPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temporary upload path: %w", err)
	}
	return &Server{cfg: cfg, ingest: ingest, resolver: resolver, entries: entries}, nil
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	uploadLimit := rateLimit(s.cfg.UploadsPerMinute, s.cfg.UploadBurst)
	r.POST("/archive", uploadLimit, s.handleUpload)
	r.GET("/archive/:hash", s.handleRetrieve)
	r.GET("/archive/:hash/:rendition", s.handleRetrieve)
	r.GET("/entries/:hash", s.handleEntry)

	// Legacy routes used by existing upload clients.
	r.POST("/", uploadLimit, s.handleUpload)
	r.GET("/:hash/:rendition", s.handleRetrieve)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(s.cfg.MetricsHandler))
	}
	return r
}

func (s *Server) handleUpload(c *gin.Context) {
	if s.cfg.MaxUploadBytes > 0 {
		if c.Request.ContentLength > s.cfg.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, models.MessageResponse{Message: "File too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	}

	var d *models.UploadDescriptor
	header, err := c.FormFile(FormField)
	switch {
	case err == nil:
		tempName := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
		tempPath := filepath.Join(s.cfg.TemporaryUploadPath, tempName)
		if err := c.SaveUploadedFile(header, tempPath); err != nil {
			slog.Error("Failed to store upload.", "originalName", header.Filename, "error", err)
			os.Remove(tempPath)
			tempPath = ""
		}
		d = &models.UploadDescriptor{
			TempPath:     tempPath,
			FileName:     tempName,
			OriginalName: header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			Size:         header.Size,
		}
	case isTooLarge(err):
		c.JSON(http.StatusRequestEntityTooLarge, models.MessageResponse{Message: "File too large"})
		return
	}

	res, err := s.ingest.Process(c.Request.Context(), d)
	if err != nil {
		if d != nil && d.TempPath != "" {
			if rmErr := os.Remove(d.TempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("Failed to remove rejected upload.", "tempPath", d.TempPath, "error", rmErr)
			}
		}
		status, message := archive.StatusOf(err)
		c.JSON(status, models.MessageResponse{Message: message})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: res.ContentHash})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (s *Server) handleRetrieve(c *gin.Context) {
	rendition, err := archive.ParseRendition(c.Param("rendition"))
	if err != nil {
		status, message := archive.StatusOf(err)
		c.JSON(status, models.MessageResponse{Message: message})
		return
	}
	path, err := s.resolver.Resolve(c.Request.Context(), c.Param("hash"), rendition)
	if err != nil {
		status, message := archive.StatusOf(err)
		c.JSON(status, models.MessageResponse{Message: message})
		return
	}
	c.File(path)
}

func (s *Server) handleEntry(c *gin.Context) {
	hash := strings.ToUpper(c.Param("hash"))
	entry, err := s.entries.Get(c.Request.Context(), hash)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.MessageResponse{Message: "Entry not found"})
		return
	}
	if err != nil {
		slog.Error("Failed to read catalog entry.", "contentHash", hash, "error", err)
		c.JSON(http.StatusInternalServerError, models.MessageResponse{Message: "Catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)
		c.Next()
		slog.Info("HTTP request served.",
			"requestId", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"clientIp", c.ClientIP(),
		)
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening.", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		slog.Info("Shutting down HTTP server.")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
