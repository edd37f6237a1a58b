package billing

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tuition_billing/internal/models"
)

// MonthTable maps month index (0 = January) to the substrings, per locale,
// that identify a recurring fee item as billing that month.
type MonthTable [12]map[string][]string

func DefaultMonthTable() MonthTable {
	pairs := [12][2]string{
		{"January", "Januari"},
		{"February", "Februari"},
		{"March", "Maret"},
		{"April", "April"},
		{"May", "Mei"},
		{"June", "Juni"},
		{"July", "Juli"},
		{"August", "Agustus"},
		{"September", "September"},
		{"October", "Oktober"},
		{"November", "November"},
		{"December", "Desember"},
	}
	var t MonthTable
	for i, p := range pairs {
		t[i] = map[string][]string{"en": {p[0]}, "id": {p[1]}}
	}
	return t
}

type monthTableFile struct {
	Months map[int]map[string][]string `yaml:"months"`
}

// LoadMonthTable overlays a YAML file on the default table:
//
//	months:
//	  1: {en: [January, Jan], id: [Januari]}
func LoadMonthTable(path string) (MonthTable, error) {
	t := DefaultMonthTable()
	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read month table: %w", err)
	}
	var f monthTableFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return t, fmt.Errorf("parse month table: %w", err)
	}
	for m, locales := range f.Months {
		if m < 1 || m > 12 {
			return t, fmt.Errorf("month table: month %d out of range", m)
		}
		t[m-1] = locales
	}
	return t, nil
}

// Matches returns the 1-based months whose names occur in name,
// case-insensitively.
func (t MonthTable) Matches(name string) []int {
	lower := strings.ToLower(name)
	var out []int
	for i, locales := range t {
		if monthNamed(lower, locales) {
			out = append(out, i+1)
		}
	}
	return out
}

func monthNamed(lower string, locales map[string][]string) bool {
	for _, subs := range locales {
		for _, s := range subs {
			if s != "" && strings.Contains(lower, strings.ToLower(s)) {
				return true
			}
		}
	}
	return false
}

// Name returns the first name for month m in locale, or "".
func (t MonthTable) Name(m int, locale string) string {
	if m < 1 || m > 12 {
		return ""
	}
	if names := t[m-1][locale]; len(names) > 0 {
		return names[0]
	}
	return ""
}

var yearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// billsYear decides whether a recurring item belongs to the calendar year.
// A year in the item name wins; otherwise the academic-year tag must mention
// the year; items carrying no year at all match every year.
func billsYear(it models.FeeItem, year int) bool {
	want := strconv.Itoa(year)
	if ys := yearPattern.FindAllString(it.Name, -1); len(ys) > 0 {
		return slices.Contains(ys, want)
	}
	if ys := yearPattern.FindAllString(it.AcademicYear, -1); len(ys) > 0 {
		return slices.Contains(ys, want)
	}
	return true
}
