//go:build integration

package database

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
	"tuition_billing/internal/services/billing"
)

func setupPostgres(t *testing.T) *postgres.Postgres {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("docker not available, skipping integration tests")
	}
	_ = provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("tuition_test"),
		tcpostgres.WithUsername("billing"),
		tcpostgres.WithPassword("billing_test_password"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pg, err := postgres.Connect(ctx, dsn, 10)
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	require.NoError(t, EnsureSchema(ctx, pg))
	require.NoError(t, EnsureSchema(ctx, pg), "schema creation is idempotent")
	return pg
}

func seedStudent(t *testing.T, pg *postgres.Postgres, name, number, class, phone string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pg.Pool.QueryRow(context.Background(),
		`INSERT INTO students (name, student_number, class_level, phone) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, number, class, phone).Scan(&id))
	return id
}

func seedFee(t *testing.T, pg *postgres.Postgres, category models.FeeCategory, name string, amount int64) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pg.Pool.QueryRow(context.Background(),
		`INSERT INTO `+feeTables[category]+` (name, academic_year, amount) VALUES ($1, '2025/2026', $2) RETURNING id`,
		name, amount).Scan(&id))
	return id
}

type ledgerFixture struct {
	pg       *postgres.Postgres
	fees     *FeeItemRepo
	students *StudentRepo
	ledger   *TransactionRepo
	calc     *billing.Calculator
	approver *billing.Approver
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	pg := setupPostgres(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := ledgerFixture{
		pg:       pg,
		fees:     NewFeeItemRepo(pg),
		students: NewStudentRepo(pg),
		ledger:   NewTransactionRepo(pg),
	}
	f.calc = billing.NewCalculator(f.fees, f.students, f.ledger, logger, nil)
	f.approver = billing.NewApprover(f.ledger, f.students, f.calc, nil, logger, billing.ApproverOptions{})
	return f
}

func (f ledgerFixture) student(t *testing.T, id int64) []models.Student {
	t.Helper()
	st, err := f.students.FindStudent(context.Background(), id)
	require.NoError(t, err)
	return []models.Student{st}
}

func TestLedger_ApproveMirrorsLineItems(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sid := seedStudent(t, f.pg, "Budi", "S-001", "7A", "081234567890")
	jan := seedFee(t, f.pg, models.CategoryRecurring, "SPP Januari 2025", 100000)
	feb := seedFee(t, f.pg, models.CategoryRecurring, "SPP Februari 2025", 100000)
	gedung := seedFee(t, f.pg, models.CategoryEnrollment, "Uang Gedung", 2500000)

	tx, err := f.ledger.InsertTransaction(ctx, models.Transaction{
		StudentID: sid,
		AmountDue: 2600000,
		LineItems: []models.LineItem{
			{Target: models.RecurringTarget(jan), Amount: 100000},
			{Target: models.EnrollmentTarget(gedung), Amount: 2500000},
			{Target: models.UntypedTarget(), Amount: 5000},
		},
	})
	require.NoError(t, err)
	require.Len(t, tx.LineItems, 3)

	loaded, err := f.ledger.FindTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, loaded.Status)
	assert.Equal(t, "SPP Januari 2025", loaded.LineItems[0].Description)
	assert.True(t, loaded.LineItems[2].Target.IsUntyped())

	unpaid, err := f.calc.ComputeUnpaid(ctx, f.student(t, sid), billing.Filter{})
	require.NoError(t, err)
	assert.Len(t, unpaid[sid].Items, 3, "pending payments do not count")

	out, err := f.approver.Approve(billing.WithOperator(ctx, "admin-1"), tx.ID)
	require.NoError(t, err)
	assert.True(t, out.Changed)

	loaded, err = f.ledger.FindTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, loaded.Status)
	require.NotNil(t, loaded.DecidedAt)
	require.NotNil(t, loaded.DecidedBy)
	assert.Equal(t, "admin-1", *loaded.DecidedBy)
	for _, li := range loaded.LineItems {
		assert.Equal(t, models.StatusApproved, li.Status)
	}

	paid, err := f.ledger.PaidFeeIDs(ctx, models.CategoryRecurring, []int64{sid})
	require.NoError(t, err)
	assert.Equal(t, map[int64]map[int64]struct{}{sid: {jan: {}}}, paid)

	unpaid, err = f.calc.ComputeUnpaid(ctx, f.student(t, sid), billing.Filter{})
	require.NoError(t, err)
	require.Len(t, unpaid[sid].Items, 1)
	assert.Equal(t, feb, unpaid[sid].Items[0].ID)

	total, err := f.ledger.ApprovedTotal(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(2605000), total)
}

func TestLedger_RejectKeepsReasonAndRestoresDebt(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sid := seedStudent(t, f.pg, "Siti", "S-002", "8B", "")
	jan := seedFee(t, f.pg, models.CategoryRecurring, "SPP Januari 2025", 100000)

	tx, err := f.ledger.InsertTransaction(ctx, models.Transaction{
		StudentID: sid,
		LineItems: []models.LineItem{{Target: models.RecurringTarget(jan), Amount: 100000}},
	})
	require.NoError(t, err)

	_, err = f.approver.Approve(ctx, tx.ID)
	require.NoError(t, err)

	out, err := f.approver.Reject(ctx, tx.ID, "bukti transfer tidak valid")
	require.NoError(t, err)
	require.NotNil(t, out.Transaction.RejectionReason)

	loaded, err := f.ledger.FindTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, loaded.Status)
	assert.Equal(t, "bukti transfer tidak valid", *loaded.RejectionReason)
	assert.Equal(t, models.StatusRejected, loaded.LineItems[0].Status)

	unpaid, err := f.calc.ComputeUnpaid(ctx, f.student(t, sid), billing.Filter{})
	require.NoError(t, err)
	assert.Len(t, unpaid[sid].Items, 1)
}

func TestLedger_FailedLineItemUpdateRollsBack(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sid := seedStudent(t, f.pg, "Andi", "S-003", "9C", "")
	jan := seedFee(t, f.pg, models.CategoryRecurring, "SPP Januari 2025", 100000)
	tx, err := f.ledger.InsertTransaction(ctx, models.Transaction{
		StudentID: sid,
		LineItems: []models.LineItem{{Target: models.RecurringTarget(jan), Amount: 100000}},
	})
	require.NoError(t, err)

	err = f.ledger.WithinTx(ctx, func(ltx ports.LedgerTx) error {
		now := time.Now().UTC()
		if err := ltx.UpdateTransactionStatus(ctx, tx.ID, models.Decision{Status: models.StatusApproved, DecidedAt: &now}); err != nil {
			return err
		}
		// violates the status CHECK constraint
		return ltx.UpdateLineItemsStatus(ctx, tx.ID, models.TransactionStatus("paid"))
	})
	require.Error(t, err)

	loaded, err := f.ledger.FindTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, loaded.Status)
	assert.Nil(t, loaded.DecidedAt)
}

func TestLedger_ConcurrentDecisionsSerialize(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	sid := seedStudent(t, f.pg, "Dewi", "S-004", "7A", "")
	jan := seedFee(t, f.pg, models.CategoryRecurring, "SPP Januari 2025", 100000)
	tx, err := f.ledger.InsertTransaction(ctx, models.Transaction{
		StudentID: sid,
		LineItems: []models.LineItem{
			{Target: models.RecurringTarget(jan), Amount: 50000},
			{Target: models.RecurringTarget(jan), Amount: 50000},
		},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.approver.Approve(ctx, tx.ID)
				return
			}
			_, _ = f.approver.Reject(ctx, tx.ID, "duplikat")
		}(i)
	}
	wg.Wait()

	loaded, err := f.ledger.FindTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.True(t, loaded.Status.Decided())
	for _, li := range loaded.LineItems {
		assert.Equal(t, loaded.Status, li.Status)
	}
	assert.Equal(t, loaded.Status == models.StatusRejected, loaded.RejectionReason != nil)
}

func TestLedger_UnknownTransaction(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.approver.Approve(context.Background(), 4242)
	assert.True(t, billing.IsNotFound(err))

	_, err = f.students.FindStudent(context.Background(), 4242)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestCollectionRepo_ApprovedLines(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	collections := NewCollectionRepo(f.pg)

	a := seedStudent(t, f.pg, "A", "S-010", "7A", "")
	b := seedStudent(t, f.pg, "B", "S-011", "7A", "")
	jan := seedFee(t, f.pg, models.CategoryRecurring, "SPP Januari 2025", 100000)
	gedung := seedFee(t, f.pg, models.CategoryEnrollment, "Uang Pangkal", 2500000)

	approved, err := f.ledger.InsertTransaction(ctx, models.Transaction{
		StudentID: a,
		LineItems: []models.LineItem{
			{Target: models.RecurringTarget(jan), Amount: 100000},
			{Target: models.EnrollmentTarget(gedung), Amount: 2500000},
		},
	})
	require.NoError(t, err)
	_, err = f.approver.Approve(ctx, approved.ID)
	require.NoError(t, err)

	_, err = f.ledger.InsertTransaction(ctx, models.Transaction{
		StudentID: b,
		LineItems: []models.LineItem{{Target: models.RecurringTarget(jan), Amount: 100000}},
	})
	require.NoError(t, err)

	recurring, err := collections.ApprovedRecurringLines(ctx)
	require.NoError(t, err)
	require.Len(t, recurring, 1)
	assert.Equal(t, a, recurring[0].StudentID)
	assert.Equal(t, "SPP Januari 2025", recurring[0].Fee.Name)
	assert.Equal(t, models.CategoryRecurring, recurring[0].Fee.Category)

	now := time.Now().UTC()
	enrollment, err := collections.ApprovedEnrollmentLines(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, enrollment, 1)
	assert.Equal(t, gedung, enrollment[0].Fee.ID)

	enrollment, err = collections.ApprovedEnrollmentLines(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, enrollment)

	n, err := f.students.CountActiveStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
