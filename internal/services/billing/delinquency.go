package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tuition_billing/internal/models"
	"tuition_billing/internal/ports"
)

// Selector picks the fee items of one category. FeeItemID 0 means any
// unpaid item of the category.
type Selector struct {
	FeeItemID int64 `json:"fee_item_id,omitempty"`
}

// Filter narrows a delinquency computation. With both selectors nil every
// category is evaluated in any-unpaid-item mode.
type Filter struct {
	ClassLevel string    `json:"class_level,omitempty"`
	Recurring  *Selector `json:"recurring,omitempty"`
	Enrollment *Selector `json:"enrollment,omitempty"`
}

func (f Filter) selector(c models.FeeCategory) *Selector {
	if f.Recurring == nil && f.Enrollment == nil {
		return &Selector{}
	}
	switch c {
	case models.CategoryRecurring:
		return f.Recurring
	case models.CategoryEnrollment:
		return f.Enrollment
	}
	return nil
}

func (f Filter) categories() []models.FeeCategory {
	out := make([]models.FeeCategory, 0, len(models.Categories))
	for _, c := range models.Categories {
		if f.selector(c) != nil {
			out = append(out, c)
		}
	}
	return out
}

// ParseFilter builds a Filter from loosely typed query values.
//
//	category         "", "all", "recurring" or "enrollment"
//	recurringFeeID   optional id of one recurring fee item
//	enrollmentFeeID  optional id of one enrollment fee item
//
// An item id given for a category that the category value excludes is a
// malformed combination.
func ParseFilter(classLevel, category, recurringFeeID, enrollmentFeeID string) (Filter, error) {
	f := Filter{ClassLevel: strings.TrimSpace(classLevel)}

	rID, err := parseFeeID("recurring_fee_id", recurringFeeID)
	if err != nil {
		return Filter{}, err
	}
	eID, err := parseFeeID("enrollment_fee_id", enrollmentFeeID)
	if err != nil {
		return Filter{}, err
	}

	switch cat := strings.ToLower(strings.TrimSpace(category)); cat {
	case "":
		if rID > 0 {
			f.Recurring = &Selector{FeeItemID: rID}
		}
		if eID > 0 {
			f.Enrollment = &Selector{FeeItemID: eID}
		}
	case "all":
		f.Recurring = &Selector{FeeItemID: rID}
		f.Enrollment = &Selector{FeeItemID: eID}
	case string(models.CategoryRecurring):
		if eID > 0 {
			return Filter{}, &ValidationError{Field: "enrollment_fee_id", Message: "not allowed with category recurring"}
		}
		f.Recurring = &Selector{FeeItemID: rID}
	case string(models.CategoryEnrollment):
		if rID > 0 {
			return Filter{}, &ValidationError{Field: "recurring_fee_id", Message: "not allowed with category enrollment"}
		}
		f.Enrollment = &Selector{FeeItemID: eID}
	default:
		return Filter{}, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", category)}
	}
	return f, nil
}

func parseFeeID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return id, nil
}

// StudentDues is what one student still owes under a filter.
type StudentDues struct {
	Student models.Student   `json:"student"`
	Items   []models.FeeItem `json:"items"`
	Total   int64            `json:"total"`
}

// Unpaid maps student id to dues. Students owing nothing are absent.
type Unpaid map[int64]StudentDues

type feeSet map[int64]struct{}

// Snapshot is everything ComputeUnpaid reads: active fee items and the
// per-student paid fee ids of each category.
type Snapshot struct {
	Active map[models.FeeCategory][]models.FeeItem
	Paid   map[models.FeeCategory]map[int64]map[int64]struct{}
}

// ComputeUnpaid is the pure core of the calculator. For every category the
// filter considers, unpaid = applicable active items - paid items; a selected
// item narrows the active set to that item alone. Results of several
// categories are unioned per student. Inactive students must be removed by
// the caller.
func ComputeUnpaid(students []models.Student, snap Snapshot, f Filter) Unpaid {
	cats := f.categories()
	active := make(map[models.FeeCategory][]models.FeeItem, len(cats))
	for _, c := range cats {
		active[c] = activeSet(snap.Active[c], f.selector(c))
	}

	out := make(Unpaid)
	for _, st := range students {
		if f.ClassLevel != "" && st.ClassLevel != f.ClassLevel {
			continue
		}
		dues := StudentDues{Student: st}
		for _, c := range cats {
			dues = dues.with(unpaidFor(st, active[c], snap.Paid[c][st.ID]))
		}
		if len(dues.Items) > 0 {
			out[st.ID] = dues
		}
	}
	return out
}

func (d StudentDues) with(items []models.FeeItem) StudentDues {
	if len(items) == 0 {
		return d
	}
	next := StudentDues{Student: d.Student, Total: d.Total}
	next.Items = make([]models.FeeItem, 0, len(d.Items)+len(items))
	next.Items = append(next.Items, d.Items...)
	for _, it := range items {
		next.Items = append(next.Items, it)
		next.Total += it.Amount
	}
	return next
}

func activeSet(items []models.FeeItem, sel *Selector) []models.FeeItem {
	out := make([]models.FeeItem, 0, len(items))
	for _, it := range items {
		if !it.Active {
			continue
		}
		if sel != nil && sel.FeeItemID != 0 && it.ID != sel.FeeItemID {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func unpaidFor(st models.Student, active []models.FeeItem, paid map[int64]struct{}) []models.FeeItem {
	var out []models.FeeItem
	for _, it := range active {
		if !it.AppliesTo(st.ClassLevel) {
			continue
		}
		if _, ok := paid[it.ID]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Calculator loads catalog and ledger state and runs ComputeUnpaid over it.
type Calculator struct {
	catalog  ports.FeeCatalog
	students ports.StudentReader
	ledger   ports.LedgerReader
	logger   *logrus.Logger
	recorder Recorder
	now      func() time.Time
}

func NewCalculator(catalog ports.FeeCatalog, students ports.StudentReader, ledger ports.LedgerReader, logger *logrus.Logger, recorder Recorder) *Calculator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Calculator{
		catalog:  catalog,
		students: students,
		ledger:   ledger,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

func (c *Calculator) ComputeUnpaid(ctx context.Context, students []models.Student, f Filter) (Unpaid, error) {
	t0 := c.now()
	defer func() { c.recorder.ObserveDelinquency(time.Since(t0)) }()

	snap, err := c.snapshot(ctx, studentIDs(students), f.categories())
	if err != nil {
		return nil, err
	}
	return ComputeUnpaid(students, snap, f), nil
}

func (c *Calculator) snapshot(ctx context.Context, ids []int64, cats []models.FeeCategory) (Snapshot, error) {
	snap := Snapshot{
		Active: make(map[models.FeeCategory][]models.FeeItem, len(cats)),
		Paid:   make(map[models.FeeCategory]map[int64]map[int64]struct{}, len(cats)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, cat := range cats {
		g.Go(func() error {
			items, err := c.catalog.ListActiveFeeItems(gctx, cat)
			if err != nil {
				return fmt.Errorf("list active %s fees: %w", cat, err)
			}
			mu.Lock()
			snap.Active[cat] = items
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			paid, err := c.ledger.PaidFeeIDs(gctx, cat, ids)
			if err != nil {
				return fmt.Errorf("paid %s fees: %w", cat, err)
			}
			mu.Lock()
			snap.Paid[cat] = paid
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func studentIDs(students []models.Student) []int64 {
	ids := make([]int64, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	return ids
}

type DueItem struct {
	FeeItemID     int64              `json:"fee_item_id"`
	Name          string             `json:"name"`
	Category      models.FeeCategory `json:"category"`
	CategoryLabel string             `json:"category_label"`
	AcademicYear  string             `json:"academic_year"`
	Amount        int64              `json:"amount"`
}

type DelinquentRow struct {
	StudentID     int64     `json:"student_id"`
	Name          string    `json:"name"`
	StudentNumber string    `json:"student_number"`
	ClassLevel    string    `json:"class_level"`
	Items         []DueItem `json:"items"`
	Total         int64     `json:"total"`
}

type DelinquencyReport struct {
	Filter      Filter          `json:"filter"`
	Rows        []DelinquentRow `json:"rows"`
	GrandTotal  int64           `json:"grand_total"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ListDelinquents runs the calculator over the active population, ordered
// by class level, name, then id.
func (c *Calculator) ListDelinquents(ctx context.Context, f Filter) (DelinquencyReport, error) {
	students, err := c.students.ListActiveStudents(ctx, f.ClassLevel)
	if err != nil {
		return DelinquencyReport{}, fmt.Errorf("list active students: %w", err)
	}

	unpaid, err := c.ComputeUnpaid(ctx, students, f)
	if err != nil {
		return DelinquencyReport{}, err
	}

	rep := DelinquencyReport{Filter: f, Rows: make([]DelinquentRow, 0, len(unpaid)), GeneratedAt: c.now()}
	for _, d := range unpaid {
		row := DelinquentRow{
			StudentID:     d.Student.ID,
			Name:          d.Student.Name,
			StudentNumber: d.Student.StudentNumber,
			ClassLevel:    d.Student.ClassLevel,
			Items:         make([]DueItem, 0, len(d.Items)),
			Total:         d.Total,
		}
		for _, it := range d.Items {
			row.Items = append(row.Items, DueItem{
				FeeItemID:     it.ID,
				Name:          it.Name,
				Category:      it.Category,
				CategoryLabel: it.Category.Label(),
				AcademicYear:  it.AcademicYear,
				Amount:        it.Amount,
			})
		}
		rep.Rows = append(rep.Rows, row)
		rep.GrandTotal += d.Total
	}
	sort.Slice(rep.Rows, func(i, j int) bool {
		a, b := rep.Rows[i], rep.Rows[j]
		if a.ClassLevel != b.ClassLevel {
			return a.ClassLevel < b.ClassLevel
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.StudentID < b.StudentID
	})

	c.logger.WithFields(logrus.Fields{
		"class_level": f.ClassLevel,
		"students":    len(students),
		"delinquent":  len(rep.Rows),
	}).Debug("[DELINQUENCY] computed")
	return rep, nil
}

// Balance is the owed/paid/remaining snapshot of one student.
func (c *Calculator) Balance(ctx context.Context, studentID int64) (models.Balance, error) {
	st, err := c.students.FindStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return models.Balance{}, &NotFoundError{Entity: "student", ID: studentID}
		}
		return models.Balance{}, fmt.Errorf("find student: %w", err)
	}

	snap, err := c.snapshot(ctx, []int64{st.ID}, models.Categories)
	if err != nil {
		return models.Balance{}, err
	}
	paid, err := c.ledger.ApprovedTotal(ctx, st.ID)
	if err != nil {
		return models.Balance{}, fmt.Errorf("approved total: %w", err)
	}

	bal := models.Balance{StudentID: st.ID, TotalPaid: paid}
	for _, cat := range models.Categories {
		for _, it := range activeSet(snap.Active[cat], nil) {
			if it.AppliesTo(st.ClassLevel) {
				bal.TotalOwed += it.Amount
			}
		}
	}
	bal.Remaining = ComputeUnpaid([]models.Student{st}, snap, Filter{})[st.ID].Total
	return bal, nil
}
