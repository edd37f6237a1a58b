package database

import (
	"context"
	"time"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
)

// CollectionRepo is the read model behind the monthly collection report.
type CollectionRepo struct {
	pg *postgres.Postgres
}

func NewCollectionRepo(pg *postgres.Postgres) *CollectionRepo {
	return &CollectionRepo{pg: pg}
}

func (r *CollectionRepo) ApprovedRecurringLines(ctx context.Context) ([]models.PaidLine, error) {
	return r.lines(ctx, models.CategoryRecurring, `
		SELECT t.student_id, t.decided_at, li.amount,
		       f.id, f.name, f.academic_year, f.amount, f.active, f.class_level
		FROM payment_line_items li
		JOIN payment_transactions t ON t.id = li.transaction_id
		JOIN recurring_fees f ON f.id = li.recurring_fee_id
		WHERE li.status = 'approved' AND t.decided_at IS NOT NULL
	`)
}

func (r *CollectionRepo) ApprovedEnrollmentLines(ctx context.Context, from, to time.Time) ([]models.PaidLine, error) {
	return r.lines(ctx, models.CategoryEnrollment, `
		SELECT t.student_id, t.decided_at, li.amount,
		       f.id, f.name, f.academic_year, f.amount, f.active, f.class_level
		FROM payment_line_items li
		JOIN payment_transactions t ON t.id = li.transaction_id
		JOIN enrollment_fees f ON f.id = li.enrollment_fee_id
		WHERE li.status = 'approved' AND t.decided_at >= $1 AND t.decided_at < $2
	`, from, to)
}

func (r *CollectionRepo) lines(ctx context.Context, category models.FeeCategory, query string, args ...any) ([]models.PaidLine, error) {
	rows, err := r.pg.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaidLine
	for rows.Next() {
		l := models.PaidLine{Fee: models.FeeItem{Category: category}}
		if err := rows.Scan(
			&l.StudentID, &l.DecidedAt, &l.Amount,
			&l.Fee.ID, &l.Fee.Name, &l.Fee.AcademicYear, &l.Fee.Amount, &l.Fee.Active, &l.Fee.ClassLevel,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
