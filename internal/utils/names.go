package utils

import "strings"

// CollapseSpaces trims s and folds runs of whitespace into one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
