package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/filearchive/internal/archive"
	"github.com/Lllllllleong/filearchive/internal/catalog"
	"github.com/Lllllllleong/filearchive/internal/convert"
	"github.com/Lllllllleong/filearchive/internal/models"
)

var testPolicy = models.ExtensionPolicy{
	"docx": {OfficeConversion: true},
	"tif":  {OfficeConversion: false, UseOriginalAsMaster: true},
	"png":  {OfficeConversion: false},
	"pdf":  {},
}

// fakeTools implements every converter interface by writing small files,
// recording each call in order.
type fakeTools struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	// officeGate, when set, blocks the office converter until it is closed
	// or its context is done.
	officeStarted chan struct{}
	officeGate    chan struct{}
	// afterThumbnail runs once the thumbnail is written.
	afterThumbnail func(source, target string)
}

func (f *fakeTools) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeTools) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTools) ConvertToPDF(ctx context.Context, source string) error {
	if f.officeStarted != nil {
		f.officeStarted <- struct{}{}
	}
	if f.officeGate != nil {
		select {
		case <-f.officeGate:
		case <-ctx.Done():
			f.record("office")
			return &convert.ConversionError{Tool: "unoconv", ExitCode: -1, Err: ctx.Err()}
		}
	}
	if err := f.record("office"); err != nil {
		return err
	}
	return writeArtifact(source, convert.PDFSibling(source))
}

type fakeImage struct{ *fakeTools }

func (f fakeImage) ConvertToPDF(ctx context.Context, source, target string) error {
	if err := f.record("image"); err != nil {
		return err
	}
	return writeArtifact(source, target)
}

func (f *fakeTools) Compress(ctx context.Context, source, target string) error {
	if err := f.record("compress"); err != nil {
		return err
	}
	return writeArtifact(source, target)
}

func (f *fakeTools) Thumbnail(ctx context.Context, source, target string) error {
	if err := f.record("thumbnail"); err != nil {
		return err
	}
	if err := writeArtifact(source, target); err != nil {
		return err
	}
	if f.afterThumbnail != nil {
		f.afterThumbnail(source, target)
	}
	return nil
}

func (f *fakeTools) converters() Converters {
	return Converters{Office: f, Image: fakeImage{f}, Compressor: f, Thumbnailer: f}
}

func writeArtifact(source, target string) error {
	if _, err := os.Stat(source); err != nil {
		return &convert.ConversionError{Tool: "fake", ExitCode: 1, Output: "source missing: " + source, Err: err}
	}
	return os.WriteFile(target, []byte("artifact of "+filepath.Base(source)), 0o644)
}

// memCatalog keeps every Put for inspection.
type memCatalog struct {
	mu      sync.Mutex
	entries map[string]models.Entry
	history []models.EntryStatus
	failPut bool
}

func newMemCatalog() *memCatalog {
	return &memCatalog{entries: make(map[string]models.Entry)}
}

func (c *memCatalog) Put(_ context.Context, e models.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPut {
		return errors.New("catalog unavailable")
	}
	c.entries[e.ContentHash] = e
	c.history = append(c.history, e.Status)
	return nil
}

func (c *memCatalog) Get(_ context.Context, hash string) (*models.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[hash]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &e, nil
}

func (c *memCatalog) Close() error { return nil }

// hashObserver signals every completed hashing stage.
type hashObserver struct {
	hashed chan struct{}
}

func (o *hashObserver) ObserveStage(stage string, _ time.Duration, err error) {
	if stage == string(archive.StageHashing) && err == nil {
		o.hashed <- struct{}{}
	}
}

func (o *hashObserver) ObserveIngest(string) {}

func (o *hashObserver) ObserveRetrieval(string, error) {}

type recordingNotifier struct {
	mu   sync.Mutex
	args []models.WorkflowArgument
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, arg models.WorkflowArgument) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.args = append(n.args, arg)
	return n.err
}

type testEnv struct {
	root    string
	tmp     string
	layout  archive.Layout
	hasher  *archive.Hasher
	tools   *fakeTools
	catalog *memCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	base := t.TempDir()
	hasher, err := archive.NewHasher("md5")
	require.NoError(t, err)
	env := &testEnv{
		root:    filepath.Join(base, "archive"),
		tmp:     filepath.Join(base, "uploads"),
		hasher:  hasher,
		tools:   &fakeTools{fail: map[string]error{}},
		catalog: newMemCatalog(),
	}
	env.layout = archive.Layout{Root: env.root, NameLength: 2, Depth: 3}
	require.NoError(t, os.MkdirAll(env.tmp, 0o755))
	return env
}

func (e *testEnv) ingest(t *testing.T, dedupe bool, opts ...IngestOption) *IngestFunction {
	t.Helper()
	opts = append([]IngestOption{
		WithCatalog(e.catalog),
		WithPageCounter(func(string) (int, error) { return 2, nil }),
	}, opts...)
	f, err := NewIngest(IngestConfig{Layout: e.layout, Policy: testPolicy, DedupeInFlight: dedupe}, e.hasher, e.tools.converters(), opts...)
	require.NoError(t, err)
	return f
}

// upload writes content to a fresh temp file and returns its descriptor.
func (e *testEnv) upload(t *testing.T, originalName, content string) *models.UploadDescriptor {
	t.Helper()
	f, err := os.CreateTemp(e.tmp, "upload-*"+filepath.Ext(originalName))
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return &models.UploadDescriptor{
		TempPath:     f.Name(),
		FileName:     filepath.Base(f.Name()),
		OriginalName: originalName,
		Size:         int64(len(content)),
	}
}

func md5Upper(content string) string {
	sum := md5.Sum([]byte(content))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
