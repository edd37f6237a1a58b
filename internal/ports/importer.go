package ports

import (
	"context"
	"io"

	"tuition_billing/internal/models"
)

type Meta struct {
	Source      string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

// FileOpener resolves a local path, an http(s) URL or an s3://bucket/key.
type FileOpener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, Meta, error)
}

// Row is one data row of an import sheet. Line is 1-based and counts the
// header.
type Row struct {
	Line   int
	Values map[string]string
}

type BatchOutcome struct {
	Inserted int
	Updated  int
	Rejected []models.RowIssue
}

type Processor interface {
	Type() string
	ProcessBatch(ctx context.Context, rows []Row) (BatchOutcome, error)
}

type ImportLog interface {
	Record(ctx context.Context, run models.ImportRun) error
	List(ctx context.Context, limit, skip int64) ([]models.ImportRun, int64, error)
}
