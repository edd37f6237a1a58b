package models

import "time"

type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

type NotificationAttempt struct {
	ID            string             `json:"id"`
	TransactionID int64              `json:"transaction_id"`
	StudentID     int64              `json:"student_id"`
	Phone         string             `json:"phone"`
	Message       string             `json:"message"`
	Decision      TransactionStatus  `json:"decision"`
	Status        NotificationStatus `json:"status"`
	Error         string             `json:"error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

type StoredReport struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Path   string `json:"path"`
	URL    string `json:"url,omitempty"`
	Size   int64  `json:"size"`
}
