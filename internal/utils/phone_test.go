package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"081234567890", "6281234567890"},
		{"0812-3456-7890", "6281234567890"},
		{" (0812) 3456 7890 ", "6281234567890"},
		{"+62 812 3456 7890", "6281234567890"},
		{"6281234567890", "6281234567890"},
		{"812345", "812345"},
		{"", ""},
		{"n/a", ""},
		{"0", ""},
		{"62", ""},
		{"0-12", ""},
		{"0812", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhone(tc.in, "62"), "input %q", tc.in)
	}
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "Budi Santoso", CollapseSpaces("  Budi   Santoso "))
	assert.Equal(t, "Siti Nur Aisyah", CollapseSpaces("  Siti \t Nur\n Aisyah "))
	assert.Equal(t, "", CollapseSpaces("   "))
}
