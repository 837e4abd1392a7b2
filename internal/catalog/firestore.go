package catalog

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/filearchive/internal/models"
)

// Firestore is a Catalog storing one document per content hash.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore wraps an existing client. The catalog takes ownership and
// closes the client in Close.
func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = "archiveEntries"
	}
	return &Firestore{client: client, collection: collection}
}

func (f *Firestore) Put(ctx context.Context, e models.Entry) error {
	now := time.Now().UTC()
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	docRef := f.client.Collection(f.collection).Doc(e.ContentHash)

	if existing, err := f.Get(ctx, e.ContentHash); err == nil && !existing.CreatedAt.IsZero() {
		e.CreatedAt = existing.CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	if _, err := docRef.Set(ctx, e); err != nil {
		return fmt.Errorf("failed to set catalog document %s: %w", e.ContentHash, err)
	}
	return nil
}

func (f *Firestore) Get(ctx context.Context, hash string) (*models.Entry, error) {
	snap, err := f.client.Collection(f.collection).Doc(hash).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog document %s: %w", hash, err)
	}
	var e models.Entry
	if err := snap.DataTo(&e); err != nil {
		return nil, fmt.Errorf("failed to decode catalog document %s: %w", hash, err)
	}
	return &e, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
