package dateutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatementDate(t *testing.T) {
	want := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	for _, input := range []string{
		"2025-03-12",
		"12/03/2025",
		"12-03-2025",
		"12.03.2025",
		"12-Mar-2025",
		"12 Mar 2025",
		"Mar 12, 2025",
		`"2025-03-12"`,
		"  2025-03-12  ",
	} {
		got, err := ParseStatementDate(input)
		require.NoError(t, err, "input %q", input)
		assert.True(t, want.Equal(got), "input %q parsed as %v", input, got)
	}
}

func TestParseStatementDateInvalid(t *testing.T) {
	for _, input := range []string{"", "not a date", "32/13/2025"} {
		_, err := ParseStatementDate(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2025-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), end)

	_, _, err = MonthRange("2025-13")
	assert.Error(t, err)

	_, _, err = MonthRange("February")
	assert.Error(t, err)
}
