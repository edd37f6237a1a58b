package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
	"tuition_billing/internal/services/billing"
)

const DefaultLinkTTL = 24 * time.Hour

// Service renders delinquency and collection reports to xlsx, either to a
// writer or to the report store.
type Service struct {
	calc     *billing.Calculator
	reporter *billing.Reporter
	store    ports.ReportStore
	logger   *logrus.Logger
	linkTTL  time.Duration
	now      func() time.Time
}

func NewService(calc *billing.Calculator, reporter *billing.Reporter, store ports.ReportStore, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		calc:     calc,
		reporter: reporter,
		store:    store,
		logger:   logger,
		linkTTL:  DefaultLinkTTL,
		now:      time.Now,
	}
}

func (s *Service) DelinquencyFilename() string {
	return "tunggakan-" + s.now().Format("20060102-150405") + ".xlsx"
}

func (s *Service) MonthlyFilename(year int) string {
	return fmt.Sprintf("rekap-bulanan-%d.xlsx", year)
}

// WriteDelinquents computes the delinquent list and streams it to w.
func (s *Service) WriteDelinquents(ctx context.Context, w io.Writer, f billing.Filter) (billing.DelinquencyReport, error) {
	rep, err := s.calc.ListDelinquents(ctx, f)
	if err != nil {
		return billing.DelinquencyReport{}, err
	}
	if err := WriteDelinquencyXLSX(w, rep); err != nil {
		return billing.DelinquencyReport{}, fmt.Errorf("render xlsx: %w", err)
	}
	return rep, nil
}

// StoreDelinquents uploads the delinquent list and returns where it went,
// with a presigned link when the store can produce one.
func (s *Service) StoreDelinquents(ctx context.Context, f billing.Filter) (models.StoredReport, error) {
	var buf bytes.Buffer
	rep, err := s.WriteDelinquents(ctx, &buf, f)
	if err != nil {
		return models.StoredReport{}, err
	}
	out, err := s.upload(ctx, s.DelinquencyFilename(), &buf)
	if err != nil {
		return models.StoredReport{}, err
	}
	s.logger.WithFields(logrus.Fields{"rows": len(rep.Rows), "path": out.Path}).Info("[EXPORT] delinquency report stored")
	return out, nil
}

func (s *Service) WriteMonthly(ctx context.Context, w io.Writer, year int) error {
	stats, err := s.reporter.MonthlyCollectionStats(ctx, year)
	if err != nil {
		return err
	}
	if err := WriteMonthlyStatsXLSX(w, year, stats); err != nil {
		return fmt.Errorf("render xlsx: %w", err)
	}
	return nil
}

func (s *Service) StoreMonthly(ctx context.Context, year int) (models.StoredReport, error) {
	var buf bytes.Buffer
	if err := s.WriteMonthly(ctx, &buf, year); err != nil {
		return models.StoredReport{}, err
	}
	return s.upload(ctx, s.MonthlyFilename(year), &buf)
}

func (s *Service) upload(ctx context.Context, name string, buf *bytes.Buffer) (models.StoredReport, error) {
	if s.store == nil {
		return models.StoredReport{}, &billing.PersistenceError{Op: "store report", Err: fmt.Errorf("report store not configured")}
	}
	out, err := s.store.Put(ctx, name, ContentTypeXLSX, buf, int64(buf.Len()))
	if err != nil {
		return models.StoredReport{}, &billing.PersistenceError{Op: "store report", Err: err}
	}

	url, err := s.store.PresignedURL(ctx, out.Key, s.linkTTL)
	if err != nil {
		s.logger.WithError(err).WithField("key", out.Key).Warn("[EXPORT] presign failed")
		return out, nil
	}
	out.URL = url
	return out, nil
}
