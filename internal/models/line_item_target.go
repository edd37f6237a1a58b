package models

import (
	"encoding/json"
	"fmt"
)

// LineItemTarget is the fee a line item pays for: a recurring fee, an
// enrollment fee, or nothing (legacy charge). The zero value is Untyped.
type LineItemTarget struct {
	category FeeCategory
	feeID    int64
}

func RecurringTarget(feeID int64) LineItemTarget {
	return LineItemTarget{category: CategoryRecurring, feeID: feeID}
}

func EnrollmentTarget(feeID int64) LineItemTarget {
	return LineItemTarget{category: CategoryEnrollment, feeID: feeID}
}

func UntypedTarget() LineItemTarget { return LineItemTarget{} }

// TargetFromColumns maps the two nullable fee columns of a stored line item.
func TargetFromColumns(recurringID, enrollmentID *int64) (LineItemTarget, error) {
	switch {
	case recurringID != nil && enrollmentID != nil:
		return LineItemTarget{}, fmt.Errorf("line item references both recurring fee %d and enrollment fee %d", *recurringID, *enrollmentID)
	case recurringID != nil:
		return RecurringTarget(*recurringID), nil
	case enrollmentID != nil:
		return EnrollmentTarget(*enrollmentID), nil
	default:
		return UntypedTarget(), nil
	}
}

// Columns is the inverse of TargetFromColumns.
func (t LineItemTarget) Columns() (recurringID, enrollmentID *int64) {
	id := t.feeID
	switch t.category {
	case CategoryRecurring:
		return &id, nil
	case CategoryEnrollment:
		return nil, &id
	}
	return nil, nil
}

// Category is empty for untyped targets.
func (t LineItemTarget) Category() FeeCategory { return t.category }

func (t LineItemTarget) FeeID() (int64, bool) {
	return t.feeID, t.category != ""
}

func (t LineItemTarget) IsUntyped() bool { return t.category == "" }

type lineItemTargetJSON struct {
	Category string `json:"category"`
	FeeID    *int64 `json:"fee_id"`
}

func (t LineItemTarget) MarshalJSON() ([]byte, error) {
	if t.IsUntyped() {
		return json.Marshal(lineItemTargetJSON{Category: "untyped"})
	}
	id := t.feeID
	return json.Marshal(lineItemTargetJSON{Category: string(t.category), FeeID: &id})
}

func (t *LineItemTarget) UnmarshalJSON(b []byte) error {
	var raw lineItemTargetJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch FeeCategory(raw.Category) {
	case CategoryRecurring, CategoryEnrollment:
		if raw.FeeID == nil {
			return fmt.Errorf("target %q without fee_id", raw.Category)
		}
		*t = LineItemTarget{category: FeeCategory(raw.Category), feeID: *raw.FeeID}
	case "", "untyped":
		*t = UntypedTarget()
	default:
		return fmt.Errorf("unknown target category %q", raw.Category)
	}
	return nil
}
