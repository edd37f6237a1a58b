package opener

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingS3 struct {
	statCalls int
	gotBucket string
	gotKey    string
}

func (f *failingS3) StatObject(_ context.Context, bucket, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.statCalls++
	f.gotBucket, f.gotKey = bucket, key
	return minio.ObjectInfo{}, errors.New("no such key")
}

func (f *failingS3) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("unexpected get")
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCompoundOpener_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte("nis,name\n1,A\n"), 0o644))

	c := NewCompoundOpener(nil, nil, "")
	_, _, err := c.Open(context.Background(), path)
	require.Error(t, err, "local files need AllowLocal")

	c.AllowLocal = true
	rc, meta, err := c.Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "nis,name\n1,A\n", string(body))
	assert.Equal(t, "file", meta.Source)
	assert.EqualValues(t, 13, meta.Size)
}

func TestCompoundOpener_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "a,b\n")
	}))
	defer srv.Close()

	c := NewCompoundOpener(NewHTTPOpener(srv.Client(), quiet()), nil, "")

	rc, meta, err := c.Open(context.Background(), srv.URL+"/fees.csv")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "https", meta.Source)
	assert.Equal(t, "text/csv", meta.ContentType)

	_, _, err = c.Open(context.Background(), srv.URL+"/missing.csv")
	assert.EqualError(t, err, "http status 404")
}

func TestCompoundOpener_S3Routing(t *testing.T) {
	s3 := &failingS3{}
	c := NewCompoundOpener(nil, NewS3Opener(s3, quiet()), "imports")

	_, _, err := c.Open(context.Background(), "s3://roster/2025/students.xlsx")
	require.Error(t, err)
	assert.Equal(t, "roster", s3.gotBucket)
	assert.Equal(t, "2025/students.xlsx", s3.gotKey)

	_, _, err = c.Open(context.Background(), "uploads/fees.xlsx")
	require.Error(t, err)
	assert.Equal(t, "imports", s3.gotBucket)
	assert.Equal(t, "uploads/fees.xlsx", s3.gotKey)
	assert.Equal(t, 2, s3.statCalls)
}

func TestCompoundOpener_Unconfigured(t *testing.T) {
	c := NewCompoundOpener(nil, nil, "")
	c.AllowLocal = true
	ctx := context.Background()

	_, _, err := c.Open(ctx, "")
	assert.Error(t, err)
	_, _, err = c.Open(ctx, "https://example.test/a.csv")
	assert.EqualError(t, err, "http opener not configured")
	_, _, err = c.Open(ctx, "s3://bucket/a.csv")
	assert.EqualError(t, err, "s3 opener not configured")
	_, _, err = c.Open(ctx, filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorContains(t, err, "no default bucket")
}
