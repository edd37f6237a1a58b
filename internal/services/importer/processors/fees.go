package processors

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
	"tuition_billing/internal/utils"
)

var feeTables = map[models.FeeCategory]string{
	models.CategoryRecurring:  "recurring_fees",
	models.CategoryEnrollment: "enrollment_fees",
}

// FeesProcessor upserts one fee catalog. A fee is identified by its name,
// academic year and class level.
type FeesProcessor struct {
	*BaseProcessor
	Category models.FeeCategory
}

func NewFeesProcessor(base *BaseProcessor, category models.FeeCategory) FeesProcessor {
	return FeesProcessor{BaseProcessor: base, Category: category}
}

func (p FeesProcessor) Type() string { return string(p.Category) + "_fees" }

func upsertFeeQuery(table string) string {
	return `
	INSERT INTO ` + table + ` (name, academic_year, amount, active, class_level)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (name, academic_year, (COALESCE(class_level, ''))) DO UPDATE
	SET amount = EXCLUDED.amount,
	    active = EXCLUDED.active
	RETURNING (xmax = 0)
`
}

type feeRow struct {
	line int
	fee  models.FeeItem
}

func parseFees(category models.FeeCategory, rows []ports.Row) ([]feeRow, []models.RowIssue) {
	var (
		out    = make([]feeRow, 0, len(rows))
		issues []models.RowIssue
	)
	for _, r := range rows {
		m := r.Values
		fee := models.FeeItem{
			Category:     category,
			Name:         utils.CollapseSpaces(pick(m, "name", "nama", "fee")),
			AcademicYear: pick(m, "academic_year", "tahun_ajaran", "year"),
			ClassLevel:   nullIfEmpty(pick(m, "class_level", "class", "kelas")),
		}
		if fee.Name == "" {
			issues = append(issues, models.RowIssue{Line: r.Line, Reason: "missing name"})
			continue
		}
		amount, err := parseAmount(pick(m, "amount", "nominal", "jumlah"))
		if err != nil {
			issues = append(issues, models.RowIssue{Line: r.Line, Reason: err.Error()})
			continue
		}
		fee.Amount = amount

		active, err := parseFlag(pick(m, "active", "aktif", "status"), true)
		if err != nil {
			issues = append(issues, models.RowIssue{Line: r.Line, Reason: "active: " + err.Error()})
			continue
		}
		fee.Active = active
		out = append(out, feeRow{line: r.Line, fee: fee})
	}
	return out, issues
}

func (p FeesProcessor) ProcessBatch(ctx context.Context, batch []ports.Row) (ports.BatchOutcome, error) {
	if err := p.checkDeps(); err != nil {
		return ports.BatchOutcome{}, err
	}
	table, ok := feeTables[p.Category]
	if !ok {
		return ports.BatchOutcome{}, fmt.Errorf("unknown fee category %q", p.Category)
	}

	rows, issues := parseFees(p.Category, batch)
	outcome := ports.BatchOutcome{Rejected: issues}
	if len(rows) == 0 {
		return outcome, nil
	}

	query := upsertFeeQuery(table)
	err := pgx.BeginFunc(ctx, p.PG.Pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, r := range rows {
			f := r.fee
			b.Queue(query, f.Name, f.AcademicYear, f.Amount, f.Active, f.ClassLevel)
		}
		br := tx.SendBatch(ctx, b)
		for _, r := range rows {
			var inserted bool
			if err := br.QueryRow().Scan(&inserted); err != nil {
				br.Close()
				return fmt.Errorf("line %d: %w", r.line, err)
			}
			if inserted {
				outcome.Inserted++
			} else {
				outcome.Updated++
			}
		}
		return br.Close()
	})
	if err != nil {
		return ports.BatchOutcome{}, err
	}

	p.Logger.WithFields(logrus.Fields{
		"table":    table,
		"inserted": outcome.Inserted,
		"updated":  outcome.Updated,
		"rejected": len(outcome.Rejected),
	}).Debug("[PROC][fees] batch done")
	return outcome, nil
}
