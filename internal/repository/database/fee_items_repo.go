package database

import (
	"context"
	"fmt"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
)

var feeTables = map[models.FeeCategory]string{
	models.CategoryRecurring:  "recurring_fees",
	models.CategoryEnrollment: "enrollment_fees",
}

type FeeItemRepo struct {
	pg *postgres.Postgres
}

func NewFeeItemRepo(pg *postgres.Postgres) *FeeItemRepo {
	return &FeeItemRepo{pg: pg}
}

func (r *FeeItemRepo) ListActiveFeeItems(ctx context.Context, category models.FeeCategory) ([]models.FeeItem, error) {
	table, ok := feeTables[category]
	if !ok {
		return nil, fmt.Errorf("unknown fee category %q", category)
	}

	rows, err := r.pg.Pool.Query(ctx, `
		SELECT id, name, academic_year, amount, active, class_level
		FROM `+table+`
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FeeItem
	for rows.Next() {
		it := models.FeeItem{Category: category}
		if err := rows.Scan(&it.ID, &it.Name, &it.AcademicYear, &it.Amount, &it.Active, &it.ClassLevel); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
