package models

import "time"

// EntryStatus is the lifecycle state of one archive entry in the catalog.
type EntryStatus string

const (
	StatusProcessing EntryStatus = "PROCESSING"
	StatusComplete   EntryStatus = "COMPLETE"
	StatusFailed     EntryStatus = "FAILED"
)

// Entry is the catalog record for the artifacts stored under one content hash.
// It tracks the outcome of the most recent ingest of that content.
type Entry struct {
	ContentHash  string      `firestore:"contentHash" json:"contentHash"`
	OriginalName string      `firestore:"originalName,omitempty" json:"originalName,omitempty"`
	Extension    string      `firestore:"extension,omitempty" json:"extension,omitempty"`
	MasterName   string      `firestore:"masterName,omitempty" json:"masterName,omitempty"`
	Status       EntryStatus `firestore:"status" json:"status"`
	ErrorDetails string      `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	PageCount    int         `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	SizeBytes    int64       `firestore:"sizeBytes,omitempty" json:"sizeBytes,omitempty"`
	CreatedAt    time.Time   `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time   `firestore:"updatedAt" json:"updatedAt"`
}
