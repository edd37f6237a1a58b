package processors

import (
	"errors"
	"strconv"
	"strings"
)

// pick returns the first non-empty value among the given column aliases.
func pick(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseAmount reads whole rupiah: "Rp 2.500.000", "2,500,000" and
// "2500000.00" are all 2500000.
func parseAmount(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "rp")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, errors.New("empty amount")
	}
	for _, suffix := range []string{",00", ".00"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.NewReplacer(".", "", ",", "").Replace(s)

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("amount is not a number")
	}
	if n < 0 {
		return 0, errors.New("amount is negative")
	}
	return n, nil
}

func parseFlag(s string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "1", "true", "yes", "y", "ya", "aktif", "active":
		return true, nil
	case "0", "false", "no", "n", "tidak", "nonaktif", "inactive":
		return false, nil
	}
	return def, errors.New("unrecognised flag " + strconv.Quote(s))
}
