package database

import (
	"context"
	"fmt"

	"tuition_billing/internal/config/connections/postgres"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id             BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL,
		student_number TEXT NOT NULL UNIQUE,
		class_level    TEXT NOT NULL DEFAULT '',
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		phone          TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS recurring_fees (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		academic_year TEXT NOT NULL DEFAULT '',
		amount        BIGINT NOT NULL CHECK (amount >= 0),
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		class_level   TEXT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS enrollment_fees (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		academic_year TEXT NOT NULL DEFAULT '',
		amount        BIGINT NOT NULL CHECK (amount >= 0),
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		class_level   TEXT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS payment_transactions (
		id               BIGSERIAL PRIMARY KEY,
		student_id       BIGINT NOT NULL REFERENCES students(id),
		status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		amount_due       BIGINT NOT NULL DEFAULT 0,
		amount_paid      BIGINT NOT NULL DEFAULT 0,
		submitted_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		decided_at       TIMESTAMPTZ NULL,
		rejection_reason TEXT NULL,
		decided_by       TEXT NULL,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT payment_transactions_reason_chk CHECK ((status = 'rejected') = (rejection_reason IS NOT NULL)),
		CONSTRAINT payment_transactions_decided_chk CHECK ((status IN ('approved', 'rejected')) = (decided_at IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS payment_line_items (
		id                BIGSERIAL PRIMARY KEY,
		transaction_id    BIGINT NOT NULL REFERENCES payment_transactions(id) ON DELETE CASCADE,
		recurring_fee_id  BIGINT NULL REFERENCES recurring_fees(id),
		enrollment_fee_id BIGINT NULL REFERENCES enrollment_fees(id),
		amount            BIGINT NOT NULL DEFAULT 0,
		status            TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		CONSTRAINT payment_line_items_target_chk CHECK (num_nonnulls(recurring_fee_id, enrollment_fee_id) <= 1)
	)`,
	`CREATE INDEX IF NOT EXISTS payment_line_items_transaction_idx ON payment_line_items (transaction_id)`,
	`CREATE INDEX IF NOT EXISTS payment_transactions_student_idx ON payment_transactions (student_id, status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS recurring_fees_identity_idx ON recurring_fees (name, academic_year, (COALESCE(class_level, '')))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS enrollment_fees_identity_idx ON enrollment_fees (name, academic_year, (COALESCE(class_level, '')))`,
	`CREATE TABLE IF NOT EXISTS personal_access_tokens (
		id             BIGSERIAL PRIMARY KEY,
		tokenable_type TEXT NOT NULL,
		tokenable_id   BIGINT NOT NULL,
		name           TEXT NOT NULL DEFAULT '',
		token          VARCHAR(64) NOT NULL UNIQUE,
		abilities      TEXT NOT NULL DEFAULT '["*"]',
		expires_at     TIMESTAMPTZ NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the billing tables when they are missing.
func EnsureSchema(ctx context.Context, pg *postgres.Postgres) error {
	for i, stmt := range schemaStatements {
		if _, err := pg.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
