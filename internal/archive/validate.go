package archive

import (
	"os"
	"strings"

	"github.com/Lllllllleong/filearchive/internal/models"
)

// Validate checks an upload against the extension policy before anything is
// hashed or written. It returns the lower-cased extension of the original
// file name. It has no side effects.
func Validate(d *models.UploadDescriptor, policy models.ExtensionPolicy) (string, error) {
	if d == nil {
		return "", &ValidationError{Kind: NoFile}
	}
	if d.TempPath == "" {
		return "", &ValidationError{Kind: FileUnreadable}
	}
	if _, err := os.Stat(d.TempPath); err != nil {
		return "", &ValidationError{Kind: FileUnreadable}
	}
	if d.FileName == "" || d.OriginalName == "" {
		return "", &ValidationError{Kind: IncompleteDescriptor}
	}

	dot := strings.LastIndex(d.OriginalName, ".")
	if dot == -1 {
		return "", &ValidationError{Kind: MissingExtension}
	}
	ext := strings.ToLower(d.OriginalName[dot+1:])
	if ext == "" {
		return "", &ValidationError{Kind: UnsupportedType}
	}
	if _, ok := policy.Lookup(ext); !ok {
		return "", &ValidationError{Kind: UnsupportedType}
	}
	return ext, nil
}
