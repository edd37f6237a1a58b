package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

type ReporterOptions struct {
	Months   MonthTable
	Location *time.Location
	// LegacyEarlyMonthsPaid, when set, replaces the paid count of January and
	// February with a fixed value to match reports produced by older systems.
	LegacyEarlyMonthsPaid *int
}

type Reporter struct {
	collections ports.CollectionReader
	students    ports.StudentReader
	cache       ports.StatsCache
	logger      *logrus.Logger
	recorder    Recorder
	opts        ReporterOptions
}

func NewReporter(collections ports.CollectionReader, students ports.StudentReader, cache ports.StatsCache, logger *logrus.Logger, recorder Recorder, opts ReporterOptions) *Reporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Months[0] == nil {
		opts.Months = DefaultMonthTable()
	}
	return &Reporter{
		collections: collections,
		students:    students,
		cache:       cache,
		logger:      logger,
		recorder:    recorder,
		opts:        opts,
	}
}

// MonthlyCollectionStats returns one row per calendar month of year.
func (r *Reporter) MonthlyCollectionStats(ctx context.Context, year int) ([]models.MonthlyStat, error) {
	if year < 1900 || year > 9999 {
		return nil, &ValidationError{Field: "year", Message: fmt.Sprintf("%d out of range", year)}
	}
	log := r.logger.WithField("year", year)

	if r.cache != nil {
		stats, ok, err := r.cache.GetMonthly(ctx, year)
		switch {
		case err != nil:
			r.recorder.StatsCache("error")
			log.WithError(err).Warn("[REPORT] stats cache read failed")
		case ok:
			r.recorder.StatsCache("hit")
			return stats, nil
		default:
			r.recorder.StatsCache("miss")
		}
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, r.opts.Location)
	to := from.AddDate(1, 0, 0)

	var (
		total      int
		recurring  []models.PaidLine
		enrollment []models.PaidLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = r.students.CountActiveStudents(gctx)
		return err
	})
	g.Go(func() (err error) {
		recurring, err = r.collections.ApprovedRecurringLines(gctx)
		return err
	})
	g.Go(func() (err error) {
		enrollment, err = r.collections.ApprovedEnrollmentLines(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load collection data: %w", err)
	}

	stats := BuildMonthlyStats(year, total, recurring, enrollment, r.opts)

	if r.cache != nil {
		if err := r.cache.SetMonthly(ctx, year, stats); err != nil {
			log.WithError(err).Warn("[REPORT] stats cache write failed")
		}
	}
	log.WithField("active_students", total).Debug("[REPORT] monthly stats computed")
	return stats, nil
}

type studentSet map[int64]struct{}

// BuildMonthlyStats folds approved lines into twelve month rows. Recurring
// lines count for every month their fee name matches; enrollment lines
// count for the month their transaction was decided in.
func BuildMonthlyStats(year, totalStudents int, recurring, enrollment []models.PaidLine, opts ReporterOptions) []models.MonthlyStat {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	months := opts.Months
	if months[0] == nil {
		months = DefaultMonthTable()
	}

	var paid, enrolled [12]studentSet
	for i := range paid {
		paid[i] = studentSet{}
		enrolled[i] = studentSet{}
	}

	for _, l := range recurring {
		if !billsYear(l.Fee, year) {
			continue
		}
		for _, m := range months.Matches(l.Fee.Name) {
			paid[m-1][l.StudentID] = struct{}{}
		}
	}
	for _, l := range enrollment {
		at := l.DecidedAt.In(loc)
		if at.Year() != year {
			continue
		}
		enrolled[at.Month()-1][l.StudentID] = struct{}{}
	}

	out := make([]models.MonthlyStat, 12)
	for i := range out {
		row := models.MonthlyStat{
			Month:               i + 1,
			MonthName:           monthLabel(months, i+1),
			TotalStudents:       totalStudents,
			PaidCount:           len(paid[i]),
			EnrollmentPaidCount: len(enrolled[i]),
		}
		if opts.LegacyEarlyMonthsPaid != nil && i < 2 {
			row.PaidCount = *opts.LegacyEarlyMonthsPaid
		}
		row.UnpaidCount = max(totalStudents-row.PaidCount, 0)
		if totalStudents > 0 {
			row.CollectionRate = (row.PaidCount*100 + totalStudents/2) / totalStudents
		}
		out[i] = row
	}
	return out
}

// monthLabel is the first English name the table gives month m.
func monthLabel(months MonthTable, m int) string {
	if name := months.Name(m, "en"); name != "" {
		return name
	}
	return time.Month(m).String()
}
