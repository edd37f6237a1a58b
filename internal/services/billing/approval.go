package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
	"tuition_billing/internal/utils"
)

const (
	decisionApplied   = "applied"
	decisionUnchanged = "unchanged"
	decisionFailed    = "failed"
)

type operatorKey struct{}

// WithOperator stores the id of the operator making decisions on ctx.
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operatorID)
}

func operatorFrom(ctx context.Context) *string {
	v, ok := ctx.Value(operatorKey{}).(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

type ApproverOptions struct {
	// StrictTransitions forbids leaving Approved or Rejected.
	StrictTransitions bool
	NotifyTimeout     time.Duration
	CountryPrefix     string
}

// DecisionOutcome is the result of a state change. The operation succeeded
// whenever it is returned with a nil error, whatever NotificationWarning says.
type DecisionOutcome struct {
	Transaction         models.Transaction        `json:"transaction"`
	Changed             bool                      `json:"changed"`
	Notification        models.NotificationStatus `json:"notification,omitempty"`
	NotificationWarning string                    `json:"-"`
}

type ApproverOption func(*Approver)

func WithNotificationLog(l ports.NotificationLog) ApproverOption {
	return func(a *Approver) { a.notifications = l }
}

func WithStatsCache(c ports.StatsCache) ApproverOption {
	return func(a *Approver) { a.cache = c }
}

func WithRecorder(r Recorder) ApproverOption {
	return func(a *Approver) {
		if r != nil {
			a.recorder = r
		}
	}
}

func WithClock(now func() time.Time) ApproverOption {
	return func(a *Approver) { a.now = now }
}

// Approver drives the Pending -> Approved | Rejected state machine. The
// transaction and its line items change in one ledger unit of work.
type Approver struct {
	ledger        ports.Ledger
	students      ports.StudentReader
	calc          *Calculator
	notifier      ports.Notifier
	notifications ports.NotificationLog
	cache         ports.StatsCache
	logger        *logrus.Logger
	recorder      Recorder
	now           func() time.Time
	opts          ApproverOptions
}

func NewApprover(ledger ports.Ledger, students ports.StudentReader, calc *Calculator, notifier ports.Notifier, logger *logrus.Logger, opts ApproverOptions, options ...ApproverOption) *Approver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	if opts.CountryPrefix == "" {
		opts.CountryPrefix = "62"
	}
	a := &Approver{
		ledger:   ledger,
		students: students,
		calc:     calc,
		notifier: notifier,
		logger:   logger,
		recorder: NopRecorder{},
		now:      time.Now,
		opts:     opts,
	}
	for _, o := range options {
		o(a)
	}
	return a
}

func (a *Approver) Approve(ctx context.Context, transactionID int64) (DecisionOutcome, error) {
	return a.SetStatus(ctx, transactionID, models.StatusApproved, "")
}

func (a *Approver) Reject(ctx context.Context, transactionID int64, reason string) (DecisionOutcome, error) {
	if strings.TrimSpace(reason) == "" {
		return DecisionOutcome{}, &ValidationError{Field: "reason", Message: "rejection reason is required"}
	}
	return a.SetStatus(ctx, transactionID, models.StatusRejected, reason)
}

// SetStatus moves a transaction to any of the three statuses. reason is
// required for Rejected and ignored otherwise.
func (a *Approver) SetStatus(ctx context.Context, transactionID int64, status models.TransactionStatus, reason string) (DecisionOutcome, error) {
	d, err := a.decision(ctx, transactionID, status, reason)
	if err != nil {
		return DecisionOutcome{}, err
	}
	status = d.Status

	log := a.logger.WithFields(logrus.Fields{"transaction_id": transactionID, "status": status})

	var (
		before, after models.Transaction
		changed       bool
	)
	err = a.ledger.WithinTx(ctx, func(tx ports.LedgerTx) error {
		cur, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		before = cur

		if sameDecision(cur, d) {
			after = cur
			return nil
		}
		if a.opts.StrictTransitions && cur.Status.Decided() {
			return &ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("transaction %d is already %s", transactionID, cur.Status),
			}
		}

		if err := tx.UpdateTransactionStatus(ctx, transactionID, d); err != nil {
			return &PersistenceError{Op: "update transaction status", Err: err}
		}
		if err := tx.UpdateLineItemsStatus(ctx, transactionID, d.Status); err != nil {
			return &PersistenceError{Op: "update line item status", Err: err}
		}
		after = applyDecision(cur, d)
		changed = true
		return nil
	})
	if err != nil {
		a.recorder.Decision(status, decisionFailed)
		return DecisionOutcome{}, classifyLedgerErr(err, transactionID)
	}

	out := DecisionOutcome{Transaction: after, Changed: changed}
	if !changed {
		a.recorder.Decision(status, decisionUnchanged)
		log.Warn("[APPROVAL] status already applied, nothing written")
		return out, nil
	}

	a.recorder.Decision(status, decisionApplied)
	if before.Status.Decided() {
		log.WithField("previous", before.Status).Warn("[APPROVAL] decided transaction overridden")
	} else {
		log.WithField("operator", strOrEmpty(d.DecidedBy)).Info("[APPROVAL] status changed")
	}

	if a.cache != nil {
		if err := a.cache.Invalidate(ctx); err != nil {
			log.WithError(err).Warn("[APPROVAL] stats cache invalidation failed")
		}
	}

	if d.Status.Decided() {
		res, nerr := a.notify(ctx, after)
		out.Notification = res
		if nerr != nil {
			out.NotificationWarning = nerr.Error()
		}
	}
	return out, nil
}

func (a *Approver) decision(ctx context.Context, id int64, status models.TransactionStatus, reason string) (models.Decision, error) {
	if id <= 0 {
		return models.Decision{}, &ValidationError{Field: "transaction_id", Message: "must be positive"}
	}
	status, err := models.ParseTransactionStatus(string(status))
	if err != nil {
		return models.Decision{}, &ValidationError{Field: "status", Message: err.Error()}
	}

	d := models.Decision{Status: status}
	if status == models.StatusRejected {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return models.Decision{}, &ValidationError{Field: "reason", Message: "rejection reason is required"}
		}
		d.Reason = &reason
	}
	if status.Decided() {
		now := a.now().UTC()
		d.DecidedAt = &now
		d.DecidedBy = operatorFrom(ctx)
	}
	return d, nil
}

func sameDecision(cur models.Transaction, d models.Decision) bool {
	if cur.Status != d.Status {
		return false
	}
	return strOrEmpty(cur.RejectionReason) == strOrEmpty(d.Reason)
}

func applyDecision(t models.Transaction, d models.Decision) models.Transaction {
	t.Status = d.Status
	t.RejectionReason = d.Reason
	t.DecidedAt = d.DecidedAt
	t.DecidedBy = d.DecidedBy

	items := make([]models.LineItem, len(t.LineItems))
	for i, li := range t.LineItems {
		li.Status = d.Status
		items[i] = li
	}
	t.LineItems = items
	return t
}

func classifyLedgerErr(err error, id int64) error {
	var (
		v  *ValidationError
		nf *NotFoundError
		p  *PersistenceError
	)
	switch {
	case errors.As(err, &v), errors.As(err, &nf), errors.As(err, &p):
		return err
	case errors.Is(err, ports.ErrNotFound):
		return &NotFoundError{Entity: "transaction", ID: id}
	default:
		return &PersistenceError{Op: "commit decision", Err: err}
	}
}

// notify never returns an error that should fail the decision. The student
// lookup, balance snapshot and send share one NotifyTimeout budget; the log
// write keeps its own.
func (a *Approver) notify(ctx context.Context, t models.Transaction) (models.NotificationStatus, error) {
	ctx = context.WithoutCancel(ctx)
	workCtx, cancel := context.WithTimeout(ctx, a.opts.NotifyTimeout)
	defer cancel()
	log := a.logger.WithFields(logrus.Fields{"transaction_id": t.ID, "student_id": t.StudentID})

	attempt := models.NotificationAttempt{
		TransactionID: t.ID,
		StudentID:     t.StudentID,
		Decision:      t.Status,
		CreatedAt:     a.now().UTC(),
	}

	st, err := a.students.FindStudent(workCtx, t.StudentID)
	if err != nil {
		nerr := &NotificationError{Err: fmt.Errorf("load student: %w", err)}
		a.finishAttempt(ctx, log, attempt, models.NotificationFailed, nerr)
		return models.NotificationFailed, nerr
	}

	attempt.Phone = utils.NormalizePhone(st.Phone, a.opts.CountryPrefix)
	if attempt.Phone == "" || a.notifier == nil {
		a.finishAttempt(ctx, log, attempt, models.NotificationSkipped, nil)
		return models.NotificationSkipped, nil
	}

	var bal *models.Balance
	if a.calc != nil {
		if b, err := a.calc.Balance(workCtx, st.ID); err != nil {
			log.WithError(err).Warn("[NOTIFY] balance snapshot unavailable")
		} else {
			bal = &b
		}
	}
	attempt.Message = ComposeMessage(st, t, bal)

	res, err := a.notifier.Send(workCtx, attempt.Phone, attempt.Message)
	if err == nil && !res.Success {
		err = fmt.Errorf("gateway refused message: %s", res.Detail)
	}
	if err != nil {
		nerr := &NotificationError{Phone: attempt.Phone, Err: err}
		a.finishAttempt(ctx, log, attempt, models.NotificationFailed, nerr)
		return models.NotificationFailed, nerr
	}

	a.finishAttempt(ctx, log, attempt, models.NotificationSent, nil)
	return models.NotificationSent, nil
}

func (a *Approver) finishAttempt(ctx context.Context, log *logrus.Entry, attempt models.NotificationAttempt, status models.NotificationStatus, err error) {
	attempt.Status = status
	if err != nil {
		attempt.Error = err.Error()
		log.WithError(err).Warn("[NOTIFY] send failed")
	} else {
		log.WithField("result", status).Debug("[NOTIFY] done")
	}
	a.recorder.Notification(status)

	if a.notifications == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if lerr := a.notifications.Record(logCtx, attempt); lerr != nil {
		log.WithError(lerr).Warn("[NOTIFY] notification log write failed")
	}
}

// Transaction returns the current state of a transaction.
func (a *Approver) Transaction(ctx context.Context, id int64) (models.Transaction, error) {
	t, err := a.ledger.FindTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return models.Transaction{}, &NotFoundError{Entity: "transaction", ID: id}
		}
		return models.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
