package models

import (
	"fmt"
	"strings"
	"time"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}

// Decided reports whether the status carries a decision timestamp.
func (s TransactionStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

type Transaction struct {
	ID              int64             `json:"id"`
	StudentID       int64             `json:"student_id"`
	Status          TransactionStatus `json:"status"`
	AmountDue       int64             `json:"amount_due"`
	AmountPaid      int64             `json:"amount_paid"`
	SubmittedAt     time.Time         `json:"submitted_at"`
	DecidedAt       *time.Time        `json:"decided_at"`
	RejectionReason *string           `json:"rejection_reason"`
	DecidedBy       *string           `json:"decided_by,omitempty"`
	LineItems       []LineItem        `json:"line_items"`
}

type LineItem struct {
	ID            int64             `json:"id"`
	TransactionID int64             `json:"transaction_id"`
	Target        LineItemTarget    `json:"target"`
	Description   string            `json:"description"`
	Amount        int64             `json:"amount"`
	Status        TransactionStatus `json:"status"`
}

// Decision is the full set of status-dependent fields written together.
type Decision struct {
	Status    TransactionStatus
	Reason    *string
	DecidedAt *time.Time
	DecidedBy *string
}
