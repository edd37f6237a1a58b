package models

import "time"

type RowIssue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportStatus string

const (
	ImportDone   ImportStatus = "done"
	ImportFailed ImportStatus = "failed"
)

// ImportRun is the audit record of one roster or fee sheet import.
type ImportRun struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Source    string       `json:"source"`
	Origin    string       `json:"origin,omitempty"`
	Format    string       `json:"format,omitempty"`
	SizeBytes int64        `json:"size_bytes"`
	SHA256    string       `json:"sha256,omitempty"`
	Rows      int          `json:"rows"`
	Inserted  int          `json:"inserted"`
	Updated   int          `json:"updated"`
	Rejected  []RowIssue   `json:"rejected,omitempty"`
	Status    ImportStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedBy string       `json:"created_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
