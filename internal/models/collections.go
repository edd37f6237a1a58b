package models

import "time"

// PaidLine is one Approved line item joined with its fee item, as read by
// the collection reports.
type PaidLine struct {
	StudentID int64
	Fee       FeeItem
	Amount    int64
	DecidedAt time.Time
}

type MonthlyStat struct {
	Month               int    `json:"month"`
	MonthName           string `json:"month_name"`
	TotalStudents       int    `json:"total_students"`
	PaidCount           int    `json:"paid_count"`
	UnpaidCount         int    `json:"unpaid_count"`
	EnrollmentPaidCount int    `json:"enrollment_paid_count"`
	CollectionRate      int    `json:"collection_rate"`
}

type Balance struct {
	StudentID int64 `json:"student_id"`
	TotalOwed int64 `json:"total_owed"`
	TotalPaid int64 `json:"total_paid"`
	Remaining int64 `json:"remaining"`
}
