package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "trims and drops blanks", input: []string{"  poi ", "", "  "}, expected: []string{"poi"}},
		{name: "keeps first occurrence order", input: []string{"sanction", "poi", "sanction"}, expected: []string{"sanction", "poi"}},
		{name: "case sensitive", input: []string{"PEP", "pep"}, expected: []string{"PEP", "pep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Equal(t, []string{"role.pep", "mil"}, DedupeAndTrimLower([]string{" Role.PEP", "mil", "role.pep "}))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Role Pep", Humanize("role.pep"))
	assert.Equal(t, "Us Ofac Sdn", Humanize("us_ofac_sdn"))
	assert.Equal(t, "", Humanize("..."))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "JD", Initials("jane doe"))
	assert.Equal(t, "A", Initials("  ada "))
	assert.Equal(t, "", Initials(""))
}
