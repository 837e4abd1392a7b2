// Package catalog records the ingest status of every content hash. It is an
// observation of the archive, never a gate: ingest and retrieval work the same
// with or without a catalog.
package catalog

import (
	"context"
	"errors"

	"github.com/Lllllllleong/filearchive/internal/models"
)

// ErrNotFound is returned by Get when no entry exists for a hash.
var ErrNotFound = errors.New("catalog entry not found")

// Catalog stores one Entry per content hash.
type Catalog interface {
	// Put inserts or replaces the entry for e.ContentHash. CreatedAt of an
	// existing entry is preserved.
	Put(ctx context.Context, e models.Entry) error
	Get(ctx context.Context, hash string) (*models.Entry, error)
	Close() error
}

// Nop is a Catalog that stores nothing.
type Nop struct{}

func (Nop) Put(context.Context, models.Entry) error { return nil }

func (Nop) Get(context.Context, string) (*models.Entry, error) { return nil, ErrNotFound }

func (Nop) Close() error { return nil }
