package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"tuition_billing/internal/models"
	"tuition_billing/internal/services/billing"
)

const (
	DelinquencySheet = "Tunggakan"
	SummarySheet     = "Ringkasan"
	MonthlySheet     = "Rekap Bulanan"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var delinquencyHeader = []any{"No", "NIS", "Nama", "Kelas", "Kategori", "Item", "Tahun Ajaran", "Nominal"}

var summaryHeader = []any{"No", "NIS", "Nama", "Kelas", "Jumlah Item", "Total Tunggakan"}

var monthlyHeader = []any{"Bulan", "Jumlah Siswa", "Lunas SPP", "Belum Lunas", "Uang Pangkal", "Persentase"}

// WriteDelinquencyXLSX writes one row per unpaid item plus a per-student
// summary sheet.
func WriteDelinquencyXLSX(w io.Writer, rep billing.DelinquencyReport) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", DelinquencySheet); err != nil {
		return err
	}
	if err := writeDetail(f, rep, bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, rep, bold); err != nil {
		return err
	}

	return f.Write(w)
}

func writeDetail(f *excelize.File, rep billing.DelinquencyReport, bold int) error {
	sw, err := f.NewStreamWriter(DelinquencySheet)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(3, 3, 28); err != nil {
		return err
	}
	if err := sw.SetColWidth(6, 6, 32); err != nil {
		return err
	}

	row := 1
	if err := setRow(sw, row, delinquencyHeader, bold); err != nil {
		return err
	}

	n := 0
	for _, r := range rep.Rows {
		for _, it := range r.Items {
			n++
			row++
			vals := []any{n, r.StudentNumber, r.Name, r.ClassLevel, it.CategoryLabel, it.Name, it.AcademicYear, it.Amount}
			if err := setRow(sw, row, vals, 0); err != nil {
				return err
			}
		}
	}

	row++
	if err := setRow(sw, row, []any{nil, nil, nil, nil, nil, nil, "Total", rep.GrandTotal}, bold); err != nil {
		return err
	}
	return sw.Flush()
}

func writeSummary(f *excelize.File, rep billing.DelinquencyReport, bold int) error {
	sw, err := f.NewStreamWriter(SummarySheet)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(3, 3, 28); err != nil {
		return err
	}

	if err := setRow(sw, 1, summaryHeader, bold); err != nil {
		return err
	}
	for i, r := range rep.Rows {
		vals := []any{i + 1, r.StudentNumber, r.Name, r.ClassLevel, len(r.Items), r.Total}
		if err := setRow(sw, i+2, vals, 0); err != nil {
			return err
		}
	}
	total := []any{nil, nil, "Total", nil, nil, rep.GrandTotal}
	if err := setRow(sw, len(rep.Rows)+2, total, bold); err != nil {
		return err
	}
	return sw.Flush()
}

// WriteMonthlyStatsXLSX writes the twelve monthly rows of one year.
func WriteMonthlyStatsXLSX(w io.Writer, year int, stats []models.MonthlyStat) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetName("Sheet1", MonthlySheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(MonthlySheet)
	if err != nil {
		return err
	}
	if err := setRow(sw, 1, []any{"Tahun " + strconv.Itoa(year)}, bold); err != nil {
		return err
	}
	if err := setRow(sw, 2, monthlyHeader, bold); err != nil {
		return err
	}
	for i, s := range stats {
		vals := []any{s.MonthName, s.TotalStudents, s.PaidCount, s.UnpaidCount, s.EnrollmentPaidCount, s.CollectionRate}
		if err := setRow(sw, i+3, vals, 0); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func setRow(sw *excelize.StreamWriter, row int, vals []any, style int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if style == 0 {
		err = sw.SetRow(cell, vals)
	} else {
		err = sw.SetRow(cell, vals, excelize.RowOpts{StyleID: style})
	}
	if err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return nil
}
