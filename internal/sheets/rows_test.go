package sheets_test

import (
	"testing"

	"github.com/apresai/sheetvoice/internal/sheets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestParseRowRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		start *int
		end   *int
	}{
		{in: "5", start: intPtr(5), end: intPtr(5)},
		{in: "3-7", start: intPtr(3), end: intPtr(7)},
		{in: "-7", start: nil, end: intPtr(7)},
		{in: "3-", start: intPtr(3), end: nil},
		{in: " 2 - 10 ", start: intPtr(2), end: intPtr(10)},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := sheets.ParseRowRange(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.start, got.Start)
			assert.Equal(t, tc.end, got.End)
		})
	}
}

func TestParseRowRange_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"abc", "1-x", "x-2", "", "1.5"} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			_, err := sheets.ParseRowRange(in)
			assert.ErrorIs(t, err, sheets.ErrInvalidRowRange)
		})
	}
}

func TestParseRowRange_SingleRowBoundsAreIndependent(t *testing.T) {
	t.Parallel()

	got, err := sheets.ParseRowRange("4")
	require.NoError(t, err)
	*got.Start = 1
	assert.Equal(t, 4, *got.End)
}
