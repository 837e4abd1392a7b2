// Package config loads the archive settings once at start-up. The resulting
// Config is passed by value into every constructor; nothing reads settings
// from package state afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/models"
)

// EnvPrefix prefixes every environment override, e.g. ARCHIVE_SERVERPORT or
// ARCHIVE_CATALOG_DRIVER.
const EnvPrefix = "ARCHIVE"

// DefaultFile is read when no file is named explicitly.
const DefaultFile = "settings.json"

type Config struct {
	ArchiveRoot         string                 `mapstructure:"archiveRoot" yaml:"archiveRoot"`
	TemporaryUploadPath string                 `mapstructure:"temporaryUploadPath" yaml:"temporaryUploadPath"`
	ServerPort          int                    `mapstructure:"serverPort" yaml:"serverPort"`
	DirectoryNameLength int                    `mapstructure:"directoryNameLength" yaml:"directoryNameLength"`
	DirectoryDepth      int                    `mapstructure:"directoryDepth" yaml:"directoryDepth"`
	HashAlgorithm       string                 `mapstructure:"hashAlgorithm" yaml:"hashAlgorithm"`
	OfficeSocketIP      string                 `mapstructure:"officeSocketIp" yaml:"officeSocketIp"`
	OfficeSocketPort    int                    `mapstructure:"officeSocketPort" yaml:"officeSocketPort"`
	AllowedExtensions   models.ExtensionPolicy `mapstructure:"allowedExtensions" yaml:"allowedExtensions"`
	Tools               ToolsConfig            `mapstructure:"tools" yaml:"tools"`
	DedupeInFlight      bool                   `mapstructure:"dedupeInFlight" yaml:"dedupeInFlight"`
	RetrievalCacheSize  int                    `mapstructure:"retrievalCacheSize" yaml:"retrievalCacheSize"`
	UploadsPerMinute    int                    `mapstructure:"uploadsPerMinute" yaml:"uploadsPerMinute"`
	UploadBurst         int                    `mapstructure:"uploadBurst" yaml:"uploadBurst"`
	MaxUploadBytes      int64                  `mapstructure:"maxUploadBytes" yaml:"maxUploadBytes"`
	Catalog             CatalogConfig          `mapstructure:"catalog" yaml:"catalog"`
	Notify              NotifyConfig           `mapstructure:"notify" yaml:"notify"`
	Logging             LoggingConfig          `mapstructure:"logging" yaml:"logging"`
}

type ToolsConfig struct {
	Unoconv       string        `mapstructure:"unoconv" yaml:"unoconv"`
	Convert       string        `mapstructure:"convert" yaml:"convert"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConcurrent int           `mapstructure:"maxConcurrent" yaml:"maxConcurrent"`
}

// Catalog drivers.
const (
	CatalogNone      = "none"
	CatalogSQLite    = "sqlite"
	CatalogFirestore = "firestore"
)

type CatalogConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	Path       string `mapstructure:"path" yaml:"path,omitempty"`
	ProjectID  string `mapstructure:"projectId" yaml:"projectId,omitempty"`
	Database   string `mapstructure:"database" yaml:"database,omitempty"`
	Collection string `mapstructure:"collection" yaml:"collection,omitempty"`
}

// NotifyConfig names the workflow started after each archived entry. An empty
// WorkflowID disables notification.
type NotifyConfig struct {
	ProjectID  string `mapstructure:"projectId" yaml:"projectId,omitempty"`
	Location   string `mapstructure:"location" yaml:"location,omitempty"`
	WorkflowID string `mapstructure:"workflowId" yaml:"workflowId,omitempty"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" yaml:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultPolicy is used when the settings file names no extensions. Office
// documents keep their original as master; images are archived as PDF.
func DefaultPolicy() models.ExtensionPolicy {
	policy := models.ExtensionPolicy{"pdf": {}}
	for _, ext := range []string{"doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "ods", "odp", "rtf"} {
		policy[ext] = models.ConversionRule{OfficeConversion: true, UseOriginalAsMaster: true}
	}
	for _, ext := range []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff"} {
		policy[ext] = models.ConversionRule{}
	}
	return policy
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archiveRoot", "")
	v.SetDefault("temporaryUploadPath", "")
	v.SetDefault("serverPort", 6000)
	v.SetDefault("directoryNameLength", 2)
	v.SetDefault("directoryDepth", 3)
	v.SetDefault("hashAlgorithm", string(archive.MD5))
	v.SetDefault("officeSocketIp", "127.0.0.1")
	v.SetDefault("officeSocketPort", 2220)
	v.SetDefault("tools.unoconv", "unoconv")
	v.SetDefault("tools.convert", "convert")
	v.SetDefault("tools.timeout", 2*time.Minute)
	v.SetDefault("tools.maxConcurrent", 4)
	v.SetDefault("dedupeInFlight", true)
	v.SetDefault("retrievalCacheSize", 1024)
	v.SetDefault("uploadsPerMinute", 0)
	v.SetDefault("uploadBurst", 0)
	v.SetDefault("maxUploadBytes", int64(256<<20))
	v.SetDefault("catalog.driver", CatalogNone)
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.projectId", "")
	v.SetDefault("catalog.database", "")
	v.SetDefault("catalog.collection", "archiveEntries")
	v.SetDefault("notify.projectId", "")
	v.SetDefault("notify.location", "us-central1")
	v.SetDefault("notify.workflowId", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSizeMB", 1)
	v.SetDefault("logging.maxBackups", 50)
	v.SetDefault("logging.maxAgeDays", 0)
	v.SetDefault("logging.compress", false)
}

// Load reads the settings file at path (JSON, YAML or TOML by extension) and
// applies ARCHIVE_* environment overrides. An empty path falls back to
// $ARCHIVE_CONFIG and then ./settings.json; a missing default file is not an
// error, a missing named file is.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if explicit || !missing {
			return Config{}, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultPolicy()
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize lower-cases extension keys and strips a leading dot. Two keys
// that normalize to the same extension are rejected.
func (c *Config) Normalize() error {
	normalized := make(models.ExtensionPolicy, len(c.AllowedExtensions))
	for ext, rule := range c.AllowedExtensions {
		key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if _, dup := normalized[key]; dup {
			return fmt.Errorf("allowedExtensions: %q is listed more than once", key)
		}
		normalized[key] = rule
	}
	c.AllowedExtensions = normalized
	c.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.HashAlgorithm))
	c.Catalog.Driver = strings.ToLower(strings.TrimSpace(c.Catalog.Driver))
	return nil
}

// Validate rejects settings the archive cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.ArchiveRoot == "" {
		errs = append(errs, errors.New("archiveRoot must be set"))
	}
	if c.TemporaryUploadPath == "" {
		errs = append(errs, errors.New("temporaryUploadPath must be set"))
	}
	if c.DirectoryNameLength < 1 {
		errs = append(errs, errors.New("directoryNameLength must be at least 1"))
	}
	if c.DirectoryDepth < 1 {
		errs = append(errs, errors.New("directoryDepth must be at least 1"))
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("serverPort %d out of range", c.ServerPort))
	}
	if _, err := archive.NewHasher(c.HashAlgorithm); err != nil {
		errs = append(errs, fmt.Errorf("hashAlgorithm: %w", err))
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("allowedExtensions must name at least one extension"))
	}
	for ext := range c.AllowedExtensions {
		if ext == "" || strings.ContainsAny(ext, `./\`) {
			errs = append(errs, fmt.Errorf("allowedExtensions: invalid extension %q", ext))
		}
	}
	if c.Tools.Timeout <= 0 {
		errs = append(errs, errors.New("tools.timeout must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("maxUploadBytes must be positive"))
	}
	if c.UploadsPerMinute < 0 || c.UploadBurst < 0 {
		errs = append(errs, errors.New("uploadsPerMinute and uploadBurst must not be negative"))
	}
	switch c.Catalog.Driver {
	case CatalogNone, "":
	case CatalogSQLite:
		if c.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path must be set for the sqlite catalog"))
		}
	case CatalogFirestore:
		if c.Catalog.ProjectID == "" {
			errs = append(errs, errors.New("catalog.projectId must be set for the firestore catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog driver %q", c.Catalog.Driver))
	}
	if c.Notify.WorkflowID != "" && c.Notify.ProjectID == "" {
		errs = append(errs, errors.New("notify.projectId must be set when notify.workflowId is"))
	}
	return errors.Join(errs...)
}

// Layout is the storage layout shared by ingest and retrieval.
func (c Config) Layout() archive.Layout {
	return archive.Layout{
		Root:       filepath.Clean(c.ArchiveRoot),
		NameLength: c.DirectoryNameLength,
		Depth:      c.DirectoryDepth,
	}
}

// YAML renders the effective settings.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to render settings: %w", err)
	}
	return out, nil
}
