package services

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/adapters/notifier"
	"tuition_billing/internal/adapters/opener"
	"tuition_billing/internal/adapters/reports"
	"tuition_billing/internal/config"
	"tuition_billing/internal/ports"
	"tuition_billing/internal/repository"
	"tuition_billing/internal/repository/cache"
	"tuition_billing/internal/repository/database"
	"tuition_billing/internal/repository/imports"
	"tuition_billing/internal/repository/notifications"
	"tuition_billing/internal/services/billing"
	"tuition_billing/internal/services/export"
	"tuition_billing/internal/services/importer"
	"tuition_billing/internal/services/importer/processors"
)

// Services is the assembled billing engine shared by the HTTP server and
// the CLI.
type Services struct {
	Calculator    *billing.Calculator
	Approver      *billing.Approver
	Reporter      *billing.Reporter
	Export        *export.Service
	Importer      *importer.Service
	Notifications ports.NotificationLog
	Imports       ports.ImportLog
	Tokens        *repository.PersonalAccessTokenRepository
	Transactions  *database.TransactionRepo
}

// New wires repositories and adapters from an initialised config.
func New(cfg *config.Config, recorder billing.Recorder) (*Services, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := cfg.Settings

	fees := database.NewFeeItemRepo(cfg.Postgres)
	students := database.NewStudentRepo(cfg.Postgres)
	ledger := database.NewTransactionRepo(cfg.Postgres)
	collections := database.NewCollectionRepo(cfg.Postgres)

	var stats ports.StatsCache
	if cfg.Redis != nil {
		stats = cache.NewStatsCache(cfg.Redis.Client, s.Billing.StatsCacheTTL, "")
	}

	var (
		notes ports.NotificationLog
		runs  ports.ImportLog
	)
	if cfg.Mongo != nil {
		notes = notifications.NewLog(cfg.Mongo)
		runs = imports.NewLog(cfg.Mongo)
	}

	var sender ports.Notifier
	if s.Notifier.URL != "" {
		sender = notifier.NewHTTPNotifier(&http.Client{Timeout: s.Notifier.Timeout}, s.Notifier.URL, s.Notifier.Token, s.Notifier.Timeout, logger)
	} else {
		logger.Warn("[SERVICES] NOTIFIER_URL not set, decision notifications are skipped")
	}

	var (
		store ports.ReportStore
		s3Op  *opener.S3Opener
		bkt   string
	)
	if cfg.S3 != nil {
		store = reports.NewS3Store(cfg.S3.Client, cfg.S3.Bucket, logger)
		s3Op = opener.NewS3Opener(cfg.S3.Client, logger)
		bkt = cfg.S3.Bucket
	}
	sources := opener.NewCompoundOpener(opener.NewHTTPOpener(&http.Client{Timeout: s.Import.HTTPTimeout}, logger), s3Op, bkt)
	sources.AllowLocal = s.Import.AllowLocal
	imp := importer.NewService(sources, processors.DefaultRegistry(processors.NewBaseProcessor(cfg.Postgres, logger)), s.Import.BatchSize, logger)
	imp.Stats = stats
	imp.Runs = runs

	months := billing.DefaultMonthTable()
	if s.Billing.MonthsFile != "" {
		mt, err := billing.LoadMonthTable(s.Billing.MonthsFile)
		if err != nil {
			return nil, err
		}
		months = mt
	}

	calc := billing.NewCalculator(fees, students, ledger, logger, recorder)
	approver := billing.NewApprover(ledger, students, calc, sender, logger,
		billing.ApproverOptions{
			StrictTransitions: s.Billing.StrictTransitions,
			NotifyTimeout:     s.Notifier.Timeout,
			CountryPrefix:     s.Notifier.CountryPrefix,
		},
		billing.WithNotificationLog(notes),
		billing.WithStatsCache(stats),
		billing.WithRecorder(recorder),
	)
	reporter := billing.NewReporter(collections, students, stats, logger, recorder, billing.ReporterOptions{
		Months:                months,
		Location:              s.Billing.Location(),
		LegacyEarlyMonthsPaid: s.Billing.LegacyEarlyMonthsPaid,
	})

	return &Services{
		Calculator:    calc,
		Approver:      approver,
		Reporter:      reporter,
		Export:        export.NewService(calc, reporter, store, logger),
		Importer:      imp,
		Notifications: notes,
		Imports:       runs,
		Tokens:        repository.NewPersonalAccessTokenRepository(cfg.Postgres, logger),
		Transactions:  ledger,
	}, nil
}
