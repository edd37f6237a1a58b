package ports

import (
	"context"
	"errors"
	"time"

	"tuition_billing/internal/models"
)

// ErrNotFound is wrapped by repositories when a referenced row is missing.
var ErrNotFound = errors.New("not found")

type FeeCatalog interface {
	ListActiveFeeItems(ctx context.Context, category models.FeeCategory) ([]models.FeeItem, error)
}

type StudentReader interface {
	// ListActiveStudents narrows by class level unless it is empty.
	ListActiveStudents(ctx context.Context, classLevel string) ([]models.Student, error)
	FindStudent(ctx context.Context, id int64) (models.Student, error)
	CountActiveStudents(ctx context.Context) (int, error)
}

type LedgerReader interface {
	FindTransaction(ctx context.Context, id int64) (models.Transaction, error)
	// PaidFeeIDs returns, per student, the fee ids of the category referenced
	// by that student's Approved line items.
	PaidFeeIDs(ctx context.Context, category models.FeeCategory, studentIDs []int64) (map[int64]map[int64]struct{}, error)
	ApprovedTotal(ctx context.Context, studentID int64) (int64, error)
}

// LedgerTx is only valid inside Ledger.WithinTx.
type LedgerTx interface {
	// LockTransaction reads the transaction and holds its row until the unit ends.
	LockTransaction(ctx context.Context, id int64) (models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id int64, d models.Decision) error
	UpdateLineItemsStatus(ctx context.Context, transactionID int64, status models.TransactionStatus) error
}

type Ledger interface {
	LedgerReader
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

type CollectionReader interface {
	ApprovedRecurringLines(ctx context.Context) ([]models.PaidLine, error)
	// ApprovedEnrollmentLines returns lines whose transaction was decided in [from, to).
	ApprovedEnrollmentLines(ctx context.Context, from, to time.Time) ([]models.PaidLine, error)
}
