package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const defaultOfficeBinary = "unoconv"

const defaultMagickBinary = "convert"

// OfficeEndpoint is the UNO connection string of the office rendering service.
func OfficeEndpoint(host string, port int) string {
	return fmt.Sprintf("socket,host=%s,port=%d,tcpNoDelay=1;urp;StarOffice.ComponentContext", host, port)
}

// Office converts office documents to PDF through a running office listener.
type Office struct {
	runner   Runner
	binary   string
	endpoint string
}

func NewOffice(runner Runner, binary, endpoint string) *Office {
	if binary == "" {
		binary = defaultOfficeBinary
	}
	return &Office{runner: runner, binary: binary, endpoint: endpoint}
}

// OfficeArgs is the argument vector for converting source to a sibling PDF.
func OfficeArgs(endpoint, source string) []string {
	return []string{"--connection", endpoint, "-f", "pdf", source}
}

// PDFSibling is the path the office converter writes for source.
func PDFSibling(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".pdf"
}

// ConvertToPDF writes the PDF sibling of source.
func (o *Office) ConvertToPDF(ctx context.Context, source string) error {
	if err := requireSource(o.binary, source); err != nil {
		return err
	}
	args := OfficeArgs(o.endpoint, source)
	out, err := o.runner.Run(ctx, o.binary, args)
	if err != nil {
		return err
	}
	return checkOutput(o.binary, args, out, PDFSibling(source))
}

// Magick drives ImageMagick for raster conversion, compression and
// thumbnails.
type Magick struct {
	runner Runner
	binary string
}

func NewMagick(runner Runner, binary string) *Magick {
	if binary == "" {
		binary = defaultMagickBinary
	}
	return &Magick{runner: runner, binary: binary}
}

// ImageArgs converts a raster image into a PDF.
func ImageArgs(source, target string) []string {
	return []string{source, target}
}

// CompressArgs renders a monochrome Group4 PDF at print resolution. These
// parameters are fixed for every usage copy.
func CompressArgs(source, target string) []string {
	return []string{
		source,
		"-alpha", "off",
		"-monochrome",
		"-compress", "Group4",
		"-quality", "100",
		"-units", "PixelsPerInch",
		"-density", "600",
		target,
	}
}

// ThumbnailArgs rasterizes only the first page.
func ThumbnailArgs(source, target string) []string {
	return []string{source + "[0]", target}
}

func (m *Magick) ConvertToPDF(ctx context.Context, source, target string) error {
	return m.run(ctx, source, target, ImageArgs(source, target))
}

func (m *Magick) Compress(ctx context.Context, source, target string) error {
	return m.run(ctx, source, target, CompressArgs(source, target))
}

func (m *Magick) Thumbnail(ctx context.Context, source, target string) error {
	return m.run(ctx, source, target, ThumbnailArgs(source, target))
}

func (m *Magick) run(ctx context.Context, source, target string, args []string) error {
	if err := requireSource(m.binary, source); err != nil {
		return err
	}
	out, err := m.runner.Run(ctx, m.binary, args)
	if err != nil {
		return err
	}
	return checkOutput(m.binary, args, out, target)
}

func requireSource(tool, source string) error {
	if _, err := os.Stat(source); err != nil {
		return &ConversionError{Tool: tool, ExitCode: -1, Err: fmt.Errorf("source %s: %w", source, err)}
	}
	return nil
}

// checkOutput enforces that a tool reporting success left a non-empty file.
func checkOutput(tool string, args []string, out []byte, target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return &ConversionError{Tool: tool, Args: args, Output: string(out), Err: fmt.Errorf("expected output %s: %w", target, err)}
	}
	if info.Size() == 0 {
		return &ConversionError{Tool: tool, Args: args, Output: string(out), Err: fmt.Errorf("expected output %s is empty", target)}
	}
	return nil
}

// PageCount reports the number of pages in a PDF.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	return n, nil
}
