package models

type FeeCategory string

const (
	CategoryRecurring  FeeCategory = "recurring"
	CategoryEnrollment FeeCategory = "enrollment"
)

// Categories lists every fee category in evaluation order.
var Categories = []FeeCategory{CategoryRecurring, CategoryEnrollment}

func (c FeeCategory) Valid() bool {
	return c == CategoryRecurring || c == CategoryEnrollment
}

// Label is the name parents see in notifications and exports.
func (c FeeCategory) Label() string {
	switch c {
	case CategoryRecurring:
		return "SPP"
	case CategoryEnrollment:
		return "Uang Pangkal"
	default:
		return "Lain-lain"
	}
}

type FeeItem struct {
	ID           int64       `json:"id"`
	Category     FeeCategory `json:"category"`
	Name         string      `json:"name"`
	AcademicYear string      `json:"academic_year"`
	Amount       int64       `json:"amount"`
	Active       bool        `json:"active"`
	ClassLevel   *string     `json:"class_level,omitempty"`
}

// AppliesTo reports whether the item bills students of the given class level.
func (f FeeItem) AppliesTo(classLevel string) bool {
	return f.ClassLevel == nil || *f.ClassLevel == "" || *f.ClassLevel == classLevel
}
