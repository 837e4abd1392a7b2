package models

// These structs define the JSON payloads exchanged with HTTP clients, GCS
// notifications and the downstream workflow.

// MessageResponse is the body of every upload response. On success Message is
// the content hash, otherwise a human-readable error.
type MessageResponse struct {
	Message string `json:"message"`
}

// GCSEvent is the payload of a storage object finalize notification.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
	Size   string `json:"size,omitempty"`
}

// WorkflowArgument is passed to the workflow started after a successful ingest.
type WorkflowArgument struct {
	ContentHash  string `json:"contentHash"`
	MasterName   string `json:"masterName"`
	OriginalName string `json:"originalName,omitempty"`
}

// ImportFailure describes one object that could not be archived during an import.
type ImportFailure struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ImportSummary is the outcome of archiving every object under a bucket prefix.
type ImportSummary struct {
	Bucket   string            `json:"bucket"`
	Prefix   string            `json:"prefix"`
	Listed   int               `json:"listed"`
	Archived map[string]string `json:"archived"`
	Failed   []ImportFailure   `json:"failed,omitempty"`
}
