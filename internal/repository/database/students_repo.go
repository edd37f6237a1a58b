package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

type StudentRepo struct {
	pg *postgres.Postgres
}

func NewStudentRepo(pg *postgres.Postgres) *StudentRepo {
	return &StudentRepo{pg: pg}
}

const studentColumns = `id, name, student_number, class_level, active, phone`

func scanStudent(row pgx.Row) (models.Student, error) {
	var s models.Student
	err := row.Scan(&s.ID, &s.Name, &s.StudentNumber, &s.ClassLevel, &s.Active, &s.Phone)
	return s, err
}

func (r *StudentRepo) ListActiveStudents(ctx context.Context, classLevel string) ([]models.Student, error) {
	rows, err := r.pg.Pool.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE active AND ($1::text = '' OR class_level = $1::text)
		ORDER BY id
	`, classLevel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *StudentRepo) FindStudent(ctx context.Context, id int64) (models.Student, error) {
	s, err := scanStudent(r.pg.Pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Student{}, fmt.Errorf("student %d: %w", id, ports.ErrNotFound)
	}
	return s, err
}

func (r *StudentRepo) CountActiveStudents(ctx context.Context) (int, error) {
	var n int
	err := r.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM students WHERE active`).Scan(&n)
	return n, err
}
