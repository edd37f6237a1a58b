package processors

import (
	"errors"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/config/connections/postgres"
	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

type BaseProcessor struct {
	PG     *postgres.Postgres
	Logger *logrus.Logger
}

func NewBaseProcessor(pg *postgres.Postgres, logger *logrus.Logger) *BaseProcessor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BaseProcessor{PG: pg, Logger: logger}
}

func (b *BaseProcessor) checkDeps() error {
	if b == nil || b.PG == nil || b.PG.Pool == nil {
		return errors.New("postgres not available")
	}
	return nil
}

// DefaultRegistry maps import types to their processors.
func DefaultRegistry(base *BaseProcessor) map[string]ports.Processor {
	procs := []ports.Processor{
		StudentsProcessor{BaseProcessor: base},
		NewFeesProcessor(base, models.CategoryRecurring),
		NewFeesProcessor(base, models.CategoryEnrollment),
	}
	out := make(map[string]ports.Processor, len(procs))
	for _, p := range procs {
		out[p.Type()] = p
	}
	return out
}
