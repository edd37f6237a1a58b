package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

type S3Client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// S3Store uploads generated reports under reports/<yyyy>/<mm>/<dd>/.
type S3Store struct {
	Client S3Client
	Bucket string

	logger *logrus.Logger
	now    func() time.Time
}

var _ ports.ReportStore = (*S3Store)(nil)

func NewS3Store(cli S3Client, bucket string, logger *logrus.Logger) *S3Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &S3Store{Client: cli, Bucket: bucket, logger: logger, now: time.Now}
}

func (s *S3Store) objectKey(name string) string {
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		name = "report"
	}
	return path.Join("reports", s.now().UTC().Format("2006/01/02"), uuid.NewString()+"-"+name)
}

func (s *S3Store) Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (models.StoredReport, error) {
	key := s.objectKey(name)
	log := s.logger.WithFields(logrus.Fields{"bucket": s.Bucket, "key": key})
	log.Debug("[REPORTS][S3][START]")

	info, err := s.Client.PutObject(ctx, s.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		log.WithError(err).Error("[REPORTS][S3][ERR] put")
		return models.StoredReport{}, fmt.Errorf("s3 put: %w", err)
	}

	log.WithField("size", info.Size).Info("[REPORTS][S3][OK]")
	return models.StoredReport{
		Bucket: s.Bucket,
		Key:    key,
		Path:   "s3://" + s.Bucket + "/" + key,
		Size:   info.Size,
	}, nil
}

// PresignedURL accepts either a key in the store's bucket or an s3://bucket/key path.
func (s *S3Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	bucket := s.Bucket
	if strings.HasPrefix(key, "s3://") {
		var err error
		if bucket, key, err = ParseS3URL(key); err != nil {
			return "", err
		}
	}

	u, err := s.Client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return u.String(), nil
}

func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", errors.New("scheme must be s3")
	}
	bucket = u.Host
	key = path.Clean(strings.TrimPrefix(u.Path, "/"))
	if bucket == "" || key == "" || key == "." || key == "/" {
		return "", "", errors.New("empty bucket or key")
	}
	return bucket, key, nil
}
