package ports

import (
	"context"
	"io"
	"time"

	"tuition_billing/internal/models"
)

type StatsCache interface {
	GetMonthly(ctx context.Context, year int) ([]models.MonthlyStat, bool, error)
	SetMonthly(ctx context.Context, year int, stats []models.MonthlyStat) error
	Invalidate(ctx context.Context) error
}

type ReportStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) (models.StoredReport, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
