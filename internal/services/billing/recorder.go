package billing

import (
	"time"

	"tuition_billing/internal/models"
)

// Recorder receives engine measurements. observability.Metrics implements it.
type Recorder interface {
	ObserveDelinquency(d time.Duration)
	Decision(status models.TransactionStatus, result string)
	Notification(result models.NotificationStatus)
	StatsCache(result string)
}

type NopRecorder struct{}

func (NopRecorder) ObserveDelinquency(time.Duration)          {}
func (NopRecorder) Decision(models.TransactionStatus, string) {}
func (NopRecorder) Notification(models.NotificationStatus)    {}
func (NopRecorder) StatsCache(string)                         {}
