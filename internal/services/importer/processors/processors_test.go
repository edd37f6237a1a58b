package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]int64{
		"2500000":       2500000,
		"Rp 2.500.000":  2500000,
		"rp2,500,000":   2500000,
		"2500000.00":    2500000,
		"Rp 150.000,00": 150000,
		"0":             0,
	}
	for in, want := range cases {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "Rp", "abc", "-5"} {
		_, err := parseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFlag(t *testing.T) {
	v, err := parseFlag("", true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = parseFlag("Tidak", true)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = parseFlag("YA", false)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = parseFlag("maybe", true)
	assert.Error(t, err)
}

func TestParseStudents(t *testing.T) {
	rows := []ports.Row{
		{Line: 2, Values: map[string]string{"nis": "1001", "nama": "Ani", "kelas": "7A", "no_hp": "0812"}},
		{Line: 3, Values: map[string]string{"nis": "", "nama": "Budi"}},
		{Line: 4, Values: map[string]string{"student_number": "1003"}},
		{Line: 5, Values: map[string]string{"student_number": "1004", "name": "Citra", "active": "nonaktif"}},
		{Line: 6, Values: map[string]string{"student_number": "1005", "name": "Dewi", "active": "?"}},
	}

	got, issues := parseStudents(rows)
	require.Len(t, got, 2)
	assert.Equal(t, models.Student{StudentNumber: "1001", Name: "Ani", ClassLevel: "7A", Phone: "0812", Active: true}, got[0].student)
	assert.Equal(t, 5, got[1].line)
	assert.False(t, got[1].student.Active)

	assert.Equal(t, []models.RowIssue{
		{Line: 3, Reason: "missing student_number"},
		{Line: 4, Reason: "missing name"},
		{Line: 6, Reason: `active: unrecognised flag "?"`},
	}, issues)
}

func TestParseFees(t *testing.T) {
	rows := []ports.Row{
		{Line: 2, Values: map[string]string{"nama": "SPP  Juli   2025", "tahun_ajaran": "2025/2026", "nominal": "Rp 500.000"}},
		{Line: 3, Values: map[string]string{"name": "Seragam", "amount": "350000", "kelas": "7"}},
		{Line: 4, Values: map[string]string{"name": "Buku", "amount": "gratis"}},
		{Line: 5, Values: map[string]string{"amount": "1"}},
	}

	got, issues := parseFees(models.CategoryRecurring, rows)
	require.Len(t, got, 2)

	assert.Equal(t, models.CategoryRecurring, got[0].fee.Category)
	assert.Equal(t, "SPP Juli 2025", got[0].fee.Name)
	assert.Equal(t, int64(500000), got[0].fee.Amount)
	assert.Equal(t, "2025/2026", got[0].fee.AcademicYear)
	assert.Nil(t, got[0].fee.ClassLevel)
	assert.True(t, got[0].fee.Active)

	require.NotNil(t, got[1].fee.ClassLevel)
	assert.Equal(t, "7", *got[1].fee.ClassLevel)

	assert.Equal(t, []models.RowIssue{
		{Line: 4, Reason: "amount is not a number"},
		{Line: 5, Reason: "missing name"},
	}, issues)
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry(NewBaseProcessor(nil, nil))
	assert.Len(t, reg, 3)
	for _, typ := range []string{"students", "recurring_fees", "enrollment_fees"} {
		p, ok := reg[typ]
		require.True(t, ok, typ)
		assert.Equal(t, typ, p.Type())

		_, err := p.ProcessBatch(context.Background(), []ports.Row{{Line: 2}})
		assert.EqualError(t, err, "postgres not available")
	}
}
