package archive

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationKind classifies a rejected upload.
type ValidationKind string

const (
	NoFile               ValidationKind = "NoFile"
	FileUnreadable       ValidationKind = "FileUnreadable"
	IncompleteDescriptor ValidationKind = "IncompleteDescriptor"
	MissingExtension     ValidationKind = "MissingExtension"
	UnsupportedType      ValidationKind = "UnsupportedType"
)

var validationMessages = map[ValidationKind]string{
	NoFile:               "File not received",
	FileUnreadable:       "Uploaded file can not be accessed",
	IncompleteDescriptor: "Missing file information",
	MissingExtension:     "File must have an extension",
	UnsupportedType:      "File type not allowed",
}

// ValidationError is a client input problem detected before any processing.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	return validationMessages[e.Kind]
}

// ErrHashComputation is wrapped by every failure to read content for hashing.
var ErrHashComputation = errors.New("hash computation failed")

// StorageOp names the filesystem step that failed.
type StorageOp string

const (
	OpMkdir   StorageOp = "mkdir"
	OpMove    StorageOp = "move"
	OpCleanup StorageOp = "cleanup"
)

// StorageError is a failure to create the entry directory or place files in it.
type StorageError struct {
	Op   StorageOp
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RetrievalKind classifies a failed lookup.
type RetrievalKind string

const (
	InvalidHash      RetrievalKind = "InvalidHash"
	InvalidRendition RetrievalKind = "InvalidRendition"
	NotFound         RetrievalKind = "NotFound"
)

// RetrievalError is returned when a rendition cannot be located.
type RetrievalError struct {
	Kind RetrievalKind
	Hash string
	Err  error
}

func (e *RetrievalError) Error() string {
	switch e.Kind {
	case InvalidHash:
		return "Hash not recognized"
	case InvalidRendition:
		return "Rendition not recognized"
	default:
		return "File not found"
	}
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a retrieval miss.
func IsNotFound(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Kind == NotFound
}

// Diagnostic is implemented by errors that carry the output of an external
// tool. The message shown to clients is the diagnostic when one exists.
type Diagnostic interface {
	Diagnostic() string
}

// StatusOf maps a pipeline or retrieval error to the HTTP status and the
// single message reported to the caller.
func StatusOf(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Error()
	}

	var retrievalErr *RetrievalError
	if errors.As(err, &retrievalErr) {
		if retrievalErr.Kind == NotFound {
			return http.StatusNotFound, retrievalErr.Error()
		}
		return http.StatusBadRequest, retrievalErr.Error()
	}

	if errors.Is(err, ErrHashComputation) {
		return http.StatusInternalServerError, err.Error()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		if storageErr.Op == OpMkdir {
			return http.StatusInternalServerError, storageErr.Error()
		}
		return http.StatusBadRequest, storageErr.Error()
	}

	var diag Diagnostic
	if errors.As(err, &diag) {
		return http.StatusBadRequest, diag.Diagnostic()
	}

	return http.StatusInternalServerError, err.Error()
}
