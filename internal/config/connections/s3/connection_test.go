package s3

import (
	"testing"

	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEndpoint(t *testing.T) {
	host, secure := splitEndpoint("http://localhost:9000", false)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)

	host, secure = splitEndpoint("https://s3.example.test/", false)
	assert.Equal(t, "s3.example.test", host)
	assert.True(t, secure)

	host, secure = splitEndpoint("minio:9000", true)
	assert.Equal(t, "minio:9000", host)
	assert.True(t, secure)
}

func TestReportLifecycle(t *testing.T) {
	cfg := reportLifecycle(30)
	require.Len(t, cfg.Rules, 1)
	rule := cfg.Rules[0]
	assert.Equal(t, "Enabled", rule.Status)
	assert.Equal(t, ReportsPrefix, rule.RuleFilter.Prefix)
	assert.Equal(t, lifecycle.ExpirationDays(30), rule.Expiration.Days)
}

func TestNewConnection_DoesNotDial(t *testing.T) {
	c, err := NewConnection(ConnectionInfo{Endpoint: "http://127.0.0.1:1", Bucket: "reports", ReportRetentionDays: 7})
	require.NoError(t, err)
	assert.Equal(t, "reports", c.Bucket)
	assert.Equal(t, 7, c.retentionDays)
}
