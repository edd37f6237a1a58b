package s3

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ReportsPrefix is where exported workbooks are written inside the bucket.
const ReportsPrefix = "reports/"

type ConnectionInfo struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
	// ReportRetentionDays expires exported workbooks. Zero keeps them.
	ReportRetentionDays int
}

type S3 struct {
	Client *minio.Client
	Bucket string
	Region string

	retentionDays int
}

// splitEndpoint accepts either a bare host:port or a URL. An https scheme
// turns TLS on.
func splitEndpoint(raw string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "https://"), "/"), true
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "http://"), "/"), useSSL
	}
	return strings.TrimSuffix(raw, "/"), useSSL
}

func NewConnection(info ConnectionInfo) (*S3, error) {
	endpoint, secure := splitEndpoint(info.Endpoint, info.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(info.AccessKey, info.SecretKey, ""),
		Secure: secure,
		Region: info.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3{Client: client, Bucket: info.Bucket, Region: info.Region, retentionDays: info.ReportRetentionDays}, nil
}

// EnsureBucket creates the reports bucket if needed and applies the report
// retention rule.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{Region: s.Region}); err != nil {
			return err
		}
	}
	if s.retentionDays <= 0 {
		return nil
	}
	return s.Client.SetBucketLifecycle(ctx, s.Bucket, reportLifecycle(s.retentionDays))
}

func reportLifecycle(days int) *lifecycle.Configuration {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{{
		ID:         "expire-exported-reports",
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: ReportsPrefix},
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	return cfg
}
