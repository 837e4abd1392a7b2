// Package archive holds the pure building blocks of the content-addressed
// archive: storage path derivation, upload validation, content hashing,
// artifact naming and the error taxonomy shared by ingest and retrieval.
package archive

import (
	"path/filepath"
	"strings"
)

// CanonicalExtension is the master format that needs no conversion.
const CanonicalExtension = "pdf"

// StoragePath maps a content hash to its directory relative to the archive
// root. The upper-cased hash is cut into consecutive nameLength-character
// segments, at most depth of them, and the full upper-cased hash is appended
// as the leaf directory. A hash shorter than nameLength*depth yields fewer
// segments. The result always uses '/' as separator.
func StoragePath(hash string, nameLength, depth int) string {
	upper := strings.ToUpper(hash)
	limit := 0
	if nameLength > 0 && depth > 0 {
		limit = min(nameLength*depth, len(upper))
	}

	parts := make([]string, 0, depth+1)
	for start := 0; start < limit; start += nameLength {
		end := min(start+nameLength, limit)
		parts = append(parts, upper[start:end])
	}
	parts = append(parts, upper)
	return strings.Join(parts, "/")
}

// Layout binds StoragePath to an archive root and the deployment-time
// directory parameters. Ingest and retrieval must share one Layout.
type Layout struct {
	Root       string
	NameLength int
	Depth      int
}

// Dir returns the absolute directory holding the artifacts of hash.
func (l Layout) Dir(hash string) string {
	return filepath.Join(l.Root, filepath.FromSlash(StoragePath(hash, l.NameLength, l.Depth)))
}

// MasterName is the file name of a master artifact with the given extension.
func MasterName(hash, ext string) string {
	return strings.ToUpper(hash) + "." + ext
}

// PDFName is the file name of the PDF rendition of hash.
func PDFName(hash string) string {
	return MasterName(hash, CanonicalExtension)
}

// UsageName is the file name of the compressed viewing copy.
func UsageName(hash string) string {
	return strings.ToUpper(hash) + Usage.Suffix() + ".pdf"
}

// ThumbName is the file name of the first-page thumbnail.
func ThumbName(hash string) string {
	return strings.ToUpper(hash) + Thumb.Suffix() + ".jpg"
}
