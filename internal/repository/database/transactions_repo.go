package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TransactionRepo struct {
	pg *postgres.Postgres
}

var _ ports.Ledger = (*TransactionRepo)(nil)

func NewTransactionRepo(pg *postgres.Postgres) *TransactionRepo {
	return &TransactionRepo{pg: pg}
}

const transactionColumns = `id, student_id, status, amount_due, amount_paid, submitted_at, decided_at, rejection_reason, decided_by`

const lineItemsQuery = `
	SELECT li.id, li.transaction_id, li.recurring_fee_id, li.enrollment_fee_id, li.amount, li.status,
	       COALESCE(rf.name, ef.name, '')
	FROM payment_line_items li
	LEFT JOIN recurring_fees rf ON rf.id = li.recurring_fee_id
	LEFT JOIN enrollment_fees ef ON ef.id = li.enrollment_fee_id
	WHERE li.transaction_id = $1
	ORDER BY li.id
`

func loadTransaction(ctx context.Context, q querier, id int64, forUpdate bool) (models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var t models.Transaction
	err := q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.StudentID, &t.Status, &t.AmountDue, &t.AmountPaid,
		&t.SubmittedAt, &t.DecidedAt, &t.RejectionReason, &t.DecidedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return models.Transaction{}, err
	}

	rows, err := q.Query(ctx, lineItemsQuery, id)
	if err != nil {
		return models.Transaction{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			li                    models.LineItem
			recurringID, enrollID *int64
		)
		if err := rows.Scan(&li.ID, &li.TransactionID, &recurringID, &enrollID, &li.Amount, &li.Status, &li.Description); err != nil {
			return models.Transaction{}, err
		}
		if li.Target, err = models.TargetFromColumns(recurringID, enrollID); err != nil {
			return models.Transaction{}, err
		}
		t.LineItems = append(t.LineItems, li)
	}
	return t, rows.Err()
}

func (r *TransactionRepo) FindTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	return loadTransaction(ctx, r.pg.Pool, id, false)
}

func (r *TransactionRepo) PaidFeeIDs(ctx context.Context, category models.FeeCategory, studentIDs []int64) (map[int64]map[int64]struct{}, error) {
	out := map[int64]map[int64]struct{}{}
	if len(studentIDs) == 0 {
		return out, nil
	}

	col, err := feeColumn(category)
	if err != nil {
		return nil, err
	}

	rows, err := r.pg.Pool.Query(ctx, `
		SELECT DISTINCT t.student_id, li.`+col+`
		FROM payment_line_items li
		JOIN payment_transactions t ON t.id = li.transaction_id
		WHERE li.status = 'approved'
		  AND li.`+col+` IS NOT NULL
		  AND t.student_id = ANY($1)
	`, studentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var studentID, feeID int64
		if err := rows.Scan(&studentID, &feeID); err != nil {
			return nil, err
		}
		if out[studentID] == nil {
			out[studentID] = map[int64]struct{}{}
		}
		out[studentID][feeID] = struct{}{}
	}
	return out, rows.Err()
}

func (r *TransactionRepo) ApprovedTotal(ctx context.Context, studentID int64) (int64, error) {
	var total int64
	err := r.pg.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(li.amount), 0)
		FROM payment_line_items li
		JOIN payment_transactions t ON t.id = li.transaction_id
		WHERE t.student_id = $1 AND li.status = 'approved'
	`, studentID).Scan(&total)
	return total, err
}

// WithinTx runs fn in one database transaction. Rows read with
// LockTransaction stay locked until commit, so concurrent decisions on the
// same transaction are applied one after another.
func (r *TransactionRepo) WithinTx(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	return pgx.BeginTxFunc(ctx, r.pg.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) LockTransaction(ctx context.Context, id int64) (models.Transaction, error) {
	return loadTransaction(ctx, l.tx, id, true)
}

func (l *ledgerTx) UpdateTransactionStatus(ctx context.Context, id int64, d models.Decision) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $2, rejection_reason = $3, decided_at = $4, decided_by = $5, updated_at = NOW()
		WHERE id = $1
	`, id, d.Status, d.Reason, d.DecidedAt, d.DecidedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (l *ledgerTx) UpdateLineItemsStatus(ctx context.Context, transactionID int64, status models.TransactionStatus) error {
	_, err := l.tx.Exec(ctx, `UPDATE payment_line_items SET status = $2 WHERE transaction_id = $1`, transactionID, status)
	return err
}

const insertLineItemQuery = `
	INSERT INTO payment_line_items (transaction_id, recurring_fee_id, enrollment_fee_id, amount, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
`

// InsertTransaction stores a submitted transaction and its line items. The
// line items take the transaction status.
func (r *TransactionRepo) InsertTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.Status == "" {
		t.Status = models.StatusPending
	}
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now().UTC()
	}

	err := pgx.BeginFunc(ctx, r.pg.Pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO payment_transactions (student_id, status, amount_due, amount_paid, submitted_at, decided_at, rejection_reason, decided_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, submitted_at
		`, t.StudentID, t.Status, t.AmountDue, t.AmountPaid, t.SubmittedAt, t.DecidedAt, t.RejectionReason, t.DecidedBy,
		).Scan(&t.ID, &t.SubmittedAt); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, li := range t.LineItems {
			recurringID, enrollID := li.Target.Columns()
			batch.Queue(insertLineItemQuery, t.ID, recurringID, enrollID, li.Amount, t.Status)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range t.LineItems {
			if err := br.QueryRow().Scan(&t.LineItems[i].ID); err != nil {
				br.Close()
				return fmt.Errorf("line item %d: %w", i, err)
			}
			t.LineItems[i].TransactionID = t.ID
			t.LineItems[i].Status = t.Status
		}
		return br.Close()
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func feeColumn(category models.FeeCategory) (string, error) {
	switch category {
	case models.CategoryRecurring:
		return "recurring_fee_id", nil
	case models.CategoryEnrollment:
		return "enrollment_fee_id", nil
	}
	return "", fmt.Errorf("unknown fee category %q", category)
}
