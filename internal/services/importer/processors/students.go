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

// StudentsProcessor upserts the roster keyed by student number.
type StudentsProcessor struct {
	*BaseProcessor
}

func (p StudentsProcessor) Type() string { return "students" }

const upsertStudentQuery = `
	INSERT INTO students (student_number, name, class_level, phone, active)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (student_number) DO UPDATE
	SET name = EXCLUDED.name,
	    class_level = EXCLUDED.class_level,
	    phone = EXCLUDED.phone,
	    active = EXCLUDED.active
	RETURNING (xmax = 0)
`

type studentRow struct {
	line    int
	student models.Student
}

// parseStudents validates a batch. Rows that fail are reported, not written.
func parseStudents(rows []ports.Row) ([]studentRow, []models.RowIssue) {
	var (
		out    = make([]studentRow, 0, len(rows))
		issues []models.RowIssue
	)
	for _, r := range rows {
		m := r.Values
		s := models.Student{
			StudentNumber: pick(m, "student_number", "nis", "nisn"),
			Name:          utils.CollapseSpaces(pick(m, "name", "nama", "nama_siswa")),
			ClassLevel:    pick(m, "class_level", "class", "kelas"),
			Phone:         pick(m, "phone", "no_hp", "telepon", "parent_phone"),
		}
		if s.StudentNumber == "" {
			issues = append(issues, models.RowIssue{Line: r.Line, Reason: "missing student_number"})
			continue
		}
		if s.Name == "" {
			issues = append(issues, models.RowIssue{Line: r.Line, Reason: "missing name"})
			continue
		}
		active, err := parseFlag(pick(m, "active", "aktif", "status"), true)
		if err != nil {
			issues = append(issues, models.RowIssue{Line: r.Line, Reason: "active: " + err.Error()})
			continue
		}
		s.Active = active
		out = append(out, studentRow{line: r.Line, student: s})
	}
	return out, issues
}

func (p StudentsProcessor) ProcessBatch(ctx context.Context, batch []ports.Row) (ports.BatchOutcome, error) {
	if err := p.checkDeps(); err != nil {
		return ports.BatchOutcome{}, err
	}

	rows, issues := parseStudents(batch)
	outcome := ports.BatchOutcome{Rejected: issues}
	if len(rows) == 0 {
		return outcome, nil
	}

	err := pgx.BeginFunc(ctx, p.PG.Pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, r := range rows {
			s := r.student
			b.Queue(upsertStudentQuery, s.StudentNumber, s.Name, s.ClassLevel, s.Phone, s.Active)
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
		"inserted": outcome.Inserted,
		"updated":  outcome.Updated,
		"rejected": len(outcome.Rejected),
	}).Debug("[PROC][students] batch done")
	return outcome, nil
}
