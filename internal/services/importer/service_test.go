package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

type memOpener map[string][]byte

func (m memOpener) Open(_ context.Context, source string) (io.ReadCloser, ports.Meta, error) {
	b, ok := m[source]
	if !ok {
		return nil, ports.Meta{}, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), ports.Meta{Source: "mem", Size: int64(len(b))}, nil
}

type recordingProcessor struct {
	batches [][]ports.Row
	failOn  int
}

func (p *recordingProcessor) Type() string { return "students" }

func (p *recordingProcessor) ProcessBatch(_ context.Context, rows []ports.Row) (ports.BatchOutcome, error) {
	if p.failOn > 0 && len(p.batches)+1 == p.failOn {
		return ports.BatchOutcome{}, errors.New("database down")
	}
	cp := append([]ports.Row(nil), rows...)
	p.batches = append(p.batches, cp)

	var out ports.BatchOutcome
	for _, r := range rows {
		if r.Values["nis"] == "" {
			out.Rejected = append(out.Rejected, models.RowIssue{Line: r.Line, Reason: "missing nis"})
			continue
		}
		out.Inserted++
	}
	return out, nil
}

func newService(files memOpener, proc *recordingProcessor) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(files, map[string]ports.Processor{proc.Type(): proc}, 2, logger)
}

func TestImport_CSVBatches(t *testing.T) {
	body := []byte("\ufeffNIS, Nama Siswa ,Kelas\n1001,Ani,7A\n\n1002,Budi,7B\n,Tanpa,7C\n1004,Dewi\n")
	proc := &recordingProcessor{}
	svc := newService(memOpener{"roster.csv": body}, proc)

	res, err := svc.Import(context.Background(), Request{Type: "students", Source: "roster.csv"})
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, res.Format)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, []models.RowIssue{{Line: 5, Reason: "missing nis"}}, res.Rejected)

	require.Len(t, proc.batches, 2)
	first := proc.batches[0][0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, map[string]string{"nis": "1001", "nama_siswa": "Ani", "kelas": "7A"}, first.Values)
	assert.Equal(t, 4, proc.batches[0][1].Line, "blank lines still count")
	assert.Equal(t, "", proc.batches[1][1].Values["kelas"], "short rows are padded")

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.SHA256)
}

func TestImport_XLSXSniffed(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"nis", "nama"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{1001, "Ani"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{1002, "Budi"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{1003, "Citra"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	proc := &recordingProcessor{}
	svc := newService(memOpener{"uploads/latest": buf.Bytes()}, proc)

	res, err := svc.Import(context.Background(), Request{Type: "students", Source: "uploads/latest", BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, res.Format)
	assert.Equal(t, 3, res.Inserted)
	require.Len(t, proc.batches, 1)
	assert.Equal(t, "1002", proc.batches[0][1].Values["nis"])
	assert.Equal(t, 3, proc.batches[0][1].Line)
}

func TestImport_Errors(t *testing.T) {
	proc := &recordingProcessor{failOn: 2}
	svc := newService(memOpener{"r.csv": []byte("nis\n1\n2\n3\n")}, proc)
	ctx := context.Background()

	_, err := svc.Import(ctx, Request{Type: "payments", Source: "r.csv"})
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.EqualError(t, err, `unknown import type "payments"`)

	_, err = svc.Import(ctx, Request{Type: "students", Source: "missing.csv"})
	assert.ErrorIs(t, err, os.ErrNotExist)
	var se *SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "missing.csv", se.Source)

	res, err := svc.Import(ctx, Request{Type: "students", Source: "r.csv"})
	assert.EqualError(t, err, "batch 2: database down")
	assert.Equal(t, 2, res.Rows, "rows of committed batches are reported")
}

func TestImport_EmptyFile(t *testing.T) {
	proc := &recordingProcessor{}
	svc := newService(memOpener{"empty.csv": nil}, proc)

	res, err := svc.Import(context.Background(), Request{Type: "students", Source: "empty.csv"})
	require.NoError(t, err)
	assert.Zero(t, res.Rows)
	assert.Empty(t, proc.batches)
	assert.Equal(t, []string{"students"}, svc.Types())
}

type countingCache struct{ invalidated int }

func (c *countingCache) GetMonthly(context.Context, int) ([]models.MonthlyStat, bool, error) {
	return nil, false, nil
}
func (c *countingCache) SetMonthly(context.Context, int, []models.MonthlyStat) error { return nil }
func (c *countingCache) Invalidate(context.Context) error {
	c.invalidated++
	return nil
}

func TestImport_InvalidatesStatsOnChange(t *testing.T) {
	cache := &countingCache{}
	svc := newService(memOpener{
		"ok.csv":   []byte("nis\n1\n"),
		"none.csv": []byte("nis\n\"\"\n"),
	}, &recordingProcessor{})
	svc.Stats = cache

	_, err := svc.Import(context.Background(), Request{Type: "students", Source: "none.csv"})
	require.NoError(t, err)
	assert.Zero(t, cache.invalidated)

	_, err = svc.Import(context.Background(), Request{Type: "students", Source: "ok.csv"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)
}

type runLog struct {
	runs []models.ImportRun
	err  error
}

func (l *runLog) Record(_ context.Context, run models.ImportRun) error {
	l.runs = append(l.runs, run)
	return l.err
}

func (l *runLog) List(context.Context, int64, int64) ([]models.ImportRun, int64, error) {
	return l.runs, int64(len(l.runs)), nil
}

func TestImport_RecordsRuns(t *testing.T) {
	runs := &runLog{}
	svc := newService(memOpener{"r.csv": []byte("nis\n1\n\n")}, &recordingProcessor{})
	svc.Runs = runs
	ctx := context.Background()

	_, err := svc.Import(ctx, Request{Type: "students", Source: "r.csv", Operator: "42"})
	require.NoError(t, err)
	_, err = svc.Import(ctx, Request{Type: "students", Source: "gone.csv"})
	require.Error(t, err)
	_, err = svc.Import(ctx, Request{Type: "nope", Source: "r.csv"})
	require.Error(t, err)

	require.Len(t, runs.runs, 2, "unknown types are not recorded")
	ok := runs.runs[0]
	assert.Equal(t, models.ImportDone, ok.Status)
	assert.Equal(t, "42", ok.CreatedBy)
	assert.Equal(t, 1, ok.Inserted)
	assert.Equal(t, "mem", ok.Origin)
	assert.NotEmpty(t, ok.SHA256)

	failed := runs.runs[1]
	assert.Equal(t, models.ImportFailed, failed.Status)
	assert.Contains(t, failed.Error, "gone.csv")

	runs.err = errors.New("mongo down")
	_, err = svc.Import(ctx, Request{Type: "students", Source: "r.csv"})
	assert.NoError(t, err, "audit failures do not fail the import")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, detectFormat("s3://b/roster.XLSX", ""))
	assert.Equal(t, FormatCSV, detectFormat("https://x.test/f.csv?sig=1", ""))
	assert.Equal(t, FormatCSV, detectFormat("upload", "text/csv; charset=utf-8"))
	assert.Equal(t, "", detectFormat("upload", "application/octet-stream"))
}
