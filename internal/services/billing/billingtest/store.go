// Package billingtest provides in-memory implementations of the billing
// ports for tests.
package billingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

// Store implements FeeCatalog, StudentReader, Ledger and CollectionReader.
// A WithinTx unit stages its writes and only publishes them when fn succeeds.
type Store struct {
	mu sync.Mutex

	fees         []models.FeeItem
	students     map[int64]models.Student
	transactions map[int64]models.Transaction

	nextStudent int64
	nextFee     map[models.FeeCategory]int64
	nextTx      int64
	nextLine    int64

	// Injected failures for the next ledger writes.
	FailTransactionUpdate error
	FailLineItemsUpdate   error
	FailReads             error
}

var (
	_ ports.FeeCatalog       = (*Store)(nil)
	_ ports.StudentReader    = (*Store)(nil)
	_ ports.Ledger           = (*Store)(nil)
	_ ports.CollectionReader = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		students:     map[int64]models.Student{},
		transactions: map[int64]models.Transaction{},
		nextFee:      map[models.FeeCategory]int64{},
	}
}

func (s *Store) AddStudent(st models.Student) models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		s.nextStudent++
		st.ID = s.nextStudent
	}
	s.students[st.ID] = st
	return st
}

func (s *Store) AddFee(f models.FeeItem) models.FeeItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		s.nextFee[f.Category]++
		f.ID = s.nextFee[f.Category]
	}
	s.fees = append(s.fees, f)
	return f
}

// SetFeeActive toggles a fee item, as catalog management would.
func (s *Store) SetFeeActive(category models.FeeCategory, id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.fees {
		if s.fees[i].Category == category && s.fees[i].ID == id {
			s.fees[i].Active = active
		}
	}
}

// Line describes one line item of a submitted transaction.
type Line struct {
	Target models.LineItemTarget
	Amount int64
}

// Submit records a Pending transaction the way the submission flow does.
func (s *Store) Submit(studentID int64, submittedAt time.Time, lines ...Line) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTx++
	t := models.Transaction{
		ID:          s.nextTx,
		StudentID:   studentID,
		Status:      models.StatusPending,
		SubmittedAt: submittedAt,
	}
	for _, l := range lines {
		s.nextLine++
		t.LineItems = append(t.LineItems, models.LineItem{
			ID:            s.nextLine,
			TransactionID: t.ID,
			Target:        l.Target,
			Description:   s.describe(l.Target),
			Amount:        l.Amount,
			Status:        models.StatusPending,
		})
		t.AmountDue += l.Amount
		t.AmountPaid += l.Amount
	}
	s.transactions[t.ID] = t
	return copyTx(t)
}

func (s *Store) describe(target models.LineItemTarget) string {
	id, ok := target.FeeID()
	if !ok {
		return ""
	}
	for _, f := range s.fees {
		if f.Category == target.Category() && f.ID == id {
			return f.Name
		}
	}
	return ""
}

func (s *Store) fee(category models.FeeCategory, id int64) (models.FeeItem, bool) {
	for _, f := range s.fees {
		if f.Category == category && f.ID == id {
			return f, true
		}
	}
	return models.FeeItem{}, false
}

func (s *Store) ListActiveFeeItems(_ context.Context, category models.FeeCategory) ([]models.FeeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var out []models.FeeItem
	for _, f := range s.fees {
		if f.Category == category && f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) ListActiveStudents(_ context.Context, classLevel string) ([]models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var out []models.Student
	for _, st := range s.students {
		if !st.Active || (classLevel != "" && st.ClassLevel != classLevel) {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindStudent(_ context.Context, id int64) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return models.Student{}, fmt.Errorf("student %d: %w", id, ports.ErrNotFound)
	}
	return st, nil
}

func (s *Store) CountActiveStudents(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.students {
		if st.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindTransaction(_ context.Context, id int64) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", id, ports.ErrNotFound)
	}
	return copyTx(t), nil
}

func (s *Store) PaidFeeIDs(_ context.Context, category models.FeeCategory, studentIDs []int64) (map[int64]map[int64]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	want := make(map[int64]bool, len(studentIDs))
	for _, id := range studentIDs {
		want[id] = true
	}
	out := map[int64]map[int64]struct{}{}
	for _, t := range s.transactions {
		if !want[t.StudentID] {
			continue
		}
		for _, li := range t.LineItems {
			if li.Status != models.StatusApproved || li.Target.Category() != category {
				continue
			}
			id, _ := li.Target.FeeID()
			if out[t.StudentID] == nil {
				out[t.StudentID] = map[int64]struct{}{}
			}
			out[t.StudentID][id] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) ApprovedTotal(_ context.Context, studentID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, t := range s.transactions {
		if t.StudentID != studentID {
			continue
		}
		for _, li := range t.LineItems {
			if li.Status == models.StatusApproved {
				total += li.Amount
			}
		}
	}
	return total, nil
}

func (s *Store) ApprovedRecurringLines(_ context.Context) ([]models.PaidLine, error) {
	return s.approvedLines(models.CategoryRecurring, func(time.Time) bool { return true }), nil
}

func (s *Store) ApprovedEnrollmentLines(_ context.Context, from, to time.Time) ([]models.PaidLine, error) {
	return s.approvedLines(models.CategoryEnrollment, func(at time.Time) bool {
		return !at.Before(from) && at.Before(to)
	}), nil
}

func (s *Store) approvedLines(category models.FeeCategory, keep func(time.Time) bool) []models.PaidLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaidLine
	for _, t := range s.transactions {
		if t.Status != models.StatusApproved || t.DecidedAt == nil || !keep(*t.DecidedAt) {
			continue
		}
		for _, li := range t.LineItems {
			if li.Status != models.StatusApproved || li.Target.Category() != category {
				continue
			}
			id, _ := li.Target.FeeID()
			f, ok := s.fee(category, id)
			if !ok {
				continue
			}
			out = append(out, models.PaidLine{StudentID: t.StudentID, Fee: f, Amount: li.Amount, DecidedAt: *t.DecidedAt})
		}
	}
	return out
}

// WithinTx holds the store lock for the whole unit, which serializes units
// the way a row lock would.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &ledgerTx{s: s, staged: map[int64]models.Transaction{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, t := range tx.staged {
		s.transactions[id] = t
	}
	return nil
}

type ledgerTx struct {
	s      *Store
	staged map[int64]models.Transaction
}

func (tx *ledgerTx) current(id int64) (models.Transaction, bool) {
	if t, ok := tx.staged[id]; ok {
		return t, true
	}
	t, ok := tx.s.transactions[id]
	return copyTx(t), ok
}

func (tx *ledgerTx) LockTransaction(_ context.Context, id int64) (models.Transaction, error) {
	t, ok := tx.current(id)
	if !ok {
		return models.Transaction{}, fmt.Errorf("transaction %d: %w", id, ports.ErrNotFound)
	}
	return copyTx(t), nil
}

func (tx *ledgerTx) UpdateTransactionStatus(_ context.Context, id int64, d models.Decision) error {
	if tx.s.FailTransactionUpdate != nil {
		return tx.s.FailTransactionUpdate
	}
	t, ok := tx.current(id)
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, ports.ErrNotFound)
	}
	t.Status = d.Status
	t.RejectionReason = d.Reason
	t.DecidedAt = d.DecidedAt
	t.DecidedBy = d.DecidedBy
	tx.staged[id] = t
	return nil
}

func (tx *ledgerTx) UpdateLineItemsStatus(_ context.Context, transactionID int64, status models.TransactionStatus) error {
	if tx.s.FailLineItemsUpdate != nil {
		return tx.s.FailLineItemsUpdate
	}
	t, ok := tx.current(transactionID)
	if !ok {
		return fmt.Errorf("transaction %d: %w", transactionID, ports.ErrNotFound)
	}
	for i := range t.LineItems {
		t.LineItems[i].Status = status
	}
	tx.staged[transactionID] = t
	return nil
}

func copyTx(t models.Transaction) models.Transaction {
	t.LineItems = append([]models.LineItem(nil), t.LineItems...)
	return t
}
