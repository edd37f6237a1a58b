package opener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"tuition_billing/internal/adapters/reports"
	"tuition_billing/internal/ports"
)

// CompoundOpener dispatches on the shape of the source: http(s) URLs,
// s3://bucket/key, files on disk when AllowLocal is set, and finally bare
// keys in DefaultBucket.
type CompoundOpener struct {
	HTTP *HTTPOpener
	S3   *S3Opener

	DefaultBucket string
	AllowLocal    bool
}

var _ ports.FileOpener = (*CompoundOpener)(nil)

func NewCompoundOpener(httpOp *HTTPOpener, s3Op *S3Opener, defaultBucket string) *CompoundOpener {
	return &CompoundOpener{
		HTTP:          httpOp,
		S3:            s3Op,
		DefaultBucket: defaultBucket,
	}
}

func (c *CompoundOpener) Open(ctx context.Context, source string) (io.ReadCloser, ports.Meta, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return nil, ports.Meta{}, errors.New("empty source")
	}

	switch {
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		if c.HTTP == nil {
			return nil, ports.Meta{}, errors.New("http opener not configured")
		}
		return c.HTTP.Open(ctx, src)

	case strings.HasPrefix(src, "s3://"):
		if c.S3 == nil {
			return nil, ports.Meta{}, errors.New("s3 opener not configured")
		}
		bkt, key, err := reports.ParseS3URL(src)
		if err != nil {
			return nil, ports.Meta{}, err
		}
		return c.S3.Open(ctx, bkt, key)
	}

	if c.AllowLocal {
		if fi, err := os.Stat(src); err == nil && !fi.IsDir() {
			return openLocal(src, fi.Size())
		}
	}

	if c.S3 == nil || c.DefaultBucket == "" {
		return nil, ports.Meta{}, fmt.Errorf("%s: no such object and no default bucket", src)
	}
	return c.S3.Open(ctx, c.DefaultBucket, src)
}

func openLocal(name string, size int64) (io.ReadCloser, ports.Meta, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, ports.Meta{}, err
	}
	return f, ports.Meta{
		Source:      "file",
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Size:        size,
	}, nil
}
