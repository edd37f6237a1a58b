package opener

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"

	"tuition_billing/internal/ports"
)

type S3Client interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

type S3Opener struct {
	Client S3Client
	logger *logrus.Logger
}

func NewS3Opener(cli S3Client, logger *logrus.Logger) *S3Opener {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &S3Opener{Client: cli, logger: logger}
}

func (s *S3Opener) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.Meta, error) {
	log := s.logger.WithFields(logrus.Fields{"bucket": bucket, "key": key})

	st, err := s.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		log.WithError(err).Warn("[OPENER][S3] stat failed")
		return nil, ports.Meta{}, fmt.Errorf("s3 stat: %w", err)
	}
	obj, err := s.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		log.WithError(err).Warn("[OPENER][S3] get failed")
		return nil, ports.Meta{}, fmt.Errorf("s3 get: %w", err)
	}
	log.WithFields(logrus.Fields{"content_type": st.ContentType, "size": st.Size}).Debug("[OPENER][S3] ok")
	return obj, ports.Meta{
		Source:      "s3",
		ContentType: st.ContentType,
		Size:        st.Size,
		Bucket:      bucket,
		Key:         key,
	}, nil
}
