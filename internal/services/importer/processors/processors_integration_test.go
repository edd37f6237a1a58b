//go:build integration

package processors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
	"tuition_billing/internal/repository/database"
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
		tcpostgres.WithDatabase("tuition_import"),
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
		_ = container.Terminate(cleanupCtx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pg, err := postgres.Connect(ctx, dsn, 5)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, database.EnsureSchema(ctx, pg))
	return pg
}

func TestStudentsProcessor_Upserts(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	p := StudentsProcessor{BaseProcessor: NewBaseProcessor(pg, nil)}

	out, err := p.ProcessBatch(ctx, []ports.Row{
		{Line: 2, Values: map[string]string{"nis": "1001", "nama": "Ani", "kelas": "7A"}},
		{Line: 3, Values: map[string]string{"nis": "1002", "nama": "Budi", "kelas": "7B"}},
		{Line: 4, Values: map[string]string{"nama": "Tanpa NIS"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Inserted)
	assert.Len(t, out.Rejected, 1)

	out, err = p.ProcessBatch(ctx, []ports.Row{
		{Line: 2, Values: map[string]string{"nis": "1001", "nama": "Ani Lestari", "kelas": "8A", "aktif": "tidak"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Inserted)
	assert.Equal(t, 1, out.Updated)

	active, err := database.NewStudentRepo(pg).ListActiveStudents(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Budi", active[0].Name)
}

func TestFeesProcessor_UpsertsByIdentity(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	p := NewFeesProcessor(NewBaseProcessor(pg, nil), models.CategoryEnrollment)

	out, err := p.ProcessBatch(ctx, []ports.Row{
		{Line: 2, Values: map[string]string{"name": "Uang Gedung", "academic_year": "2025/2026", "amount": "2.500.000"}},
		{Line: 3, Values: map[string]string{"name": "Uang Gedung", "academic_year": "2025/2026", "amount": "3.000.000", "kelas": "10"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Inserted)

	out, err = p.ProcessBatch(ctx, []ports.Row{
		{Line: 2, Values: map[string]string{"name": "Uang Gedung", "academic_year": "2025/2026", "amount": "2.750.000"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Updated)

	items, err := database.NewFeeItemRepo(pg).ListActiveFeeItems(ctx, models.CategoryEnrollment)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2750000), items[0].Amount)
	assert.Nil(t, items[0].ClassLevel)
	assert.Equal(t, int64(3000000), items[1].Amount)
}
