package config

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "NOTIFIER_TIMEOUT", "BILLING_STRICT_TRANSITIONS", "REPORT_LEGACY_EARLY_MONTHS_PAID", "AWS_BUCKET"} {
		t.Setenv(k, "")
	}

	s := Load(quietLogger())
	assert.Equal(t, "8070", s.Port)
	assert.Equal(t, 5*time.Second, s.Notifier.Timeout)
	assert.Equal(t, "62", s.Notifier.CountryPrefix)
	assert.False(t, s.Billing.StrictTransitions)
	assert.Nil(t, s.Billing.LegacyEarlyMonthsPaid)
	assert.Equal(t, "billing-reports", s.S3.Bucket)
	assert.Equal(t, time.UTC, s.Billing.Location())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("NOTIFIER_TIMEOUT", "750ms")
	t.Setenv("BILLING_STRICT_TRANSITIONS", "true")
	t.Setenv("REPORT_LEGACY_EARLY_MONTHS_PAID", "3")
	t.Setenv("PG_MAX_CONNS", "25")

	s := Load(quietLogger())
	assert.Equal(t, "9000", s.Port)
	assert.Equal(t, 750*time.Millisecond, s.Notifier.Timeout)
	assert.True(t, s.Billing.StrictTransitions)
	require.NotNil(t, s.Billing.LegacyEarlyMonthsPaid)
	assert.Equal(t, 3, *s.Billing.LegacyEarlyMonthsPaid)
	assert.Equal(t, int32(25), s.Postgres.MaxConns)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("NOTIFIER_TIMEOUT", "soon")
	t.Setenv("BILLING_STRICT_TRANSITIONS", "maybe")
	t.Setenv("REPORT_LEGACY_EARLY_MONTHS_PAID", "-2")

	s := Load(quietLogger())
	assert.Equal(t, 5*time.Second, s.Notifier.Timeout)
	assert.False(t, s.Billing.StrictTransitions)
	assert.Nil(t, s.Billing.LegacyEarlyMonthsPaid)
}

func TestLoad_ImportAndRetention(t *testing.T) {
	for _, k := range []string{"IMPORT_BATCH_SIZE", "IMPORT_HTTP_TIMEOUT", "IMPORT_ALLOW_LOCAL", "REPORT_RETENTION_DAYS"} {
		t.Setenv(k, "")
	}
	s := Load(quietLogger())
	assert.Equal(t, 500, s.Import.BatchSize)
	assert.Equal(t, time.Minute, s.Import.HTTPTimeout)
	assert.False(t, s.Import.AllowLocal)
	assert.Zero(t, s.S3.ReportRetentionDays)

	t.Setenv("IMPORT_BATCH_SIZE", "50")
	t.Setenv("IMPORT_ALLOW_LOCAL", "true")
	t.Setenv("REPORT_RETENTION_DAYS", "30")
	s = Load(quietLogger())
	assert.Equal(t, 50, s.Import.BatchSize)
	assert.True(t, s.Import.AllowLocal)
	assert.Equal(t, 30, s.S3.ReportRetentionDays)
}
