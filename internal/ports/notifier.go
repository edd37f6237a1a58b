package ports

import (
	"context"

	"tuition_billing/internal/models"
)

type SendResult struct {
	Success bool
	Detail  string
}

type Notifier interface {
	Send(ctx context.Context, phone, message string) (SendResult, error)
}

type NotificationLog interface {
	Record(ctx context.Context, attempt models.NotificationAttempt) error
	ListFailed(ctx context.Context, limit int64) ([]models.NotificationAttempt, error)
}
