package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRowRange = errors.New("invalid row range")

// RowRange is a 1-based row window. A nil bound is open on that side.
type RowRange struct {
	Start *int
	End   *int
}

// ParseRowRange parses "N", "A-B", "-B" or "A-". A bare "N" selects the
// single row N.
func ParseRowRange(s string) (RowRange, error) {
	left, right, isRange := strings.Cut(s, "-")
	if !isRange {
		n, err := parseRow(left)
		if err != nil {
			return RowRange{}, fmt.Errorf("%w %q: %v", ErrInvalidRowRange, s, err)
		}
		if n == nil {
			return RowRange{}, fmt.Errorf("%w %q: empty", ErrInvalidRowRange, s)
		}
		end := *n
		return RowRange{Start: n, End: &end}, nil
	}

	start, err := parseRow(left)
	if err != nil {
		return RowRange{}, fmt.Errorf("%w %q: start: %v", ErrInvalidRowRange, s, err)
	}
	end, err := parseRow(right)
	if err != nil {
		return RowRange{}, fmt.Errorf("%w %q: end: %v", ErrInvalidRowRange, s, err)
	}
	return RowRange{Start: start, End: end}, nil
}

func parseRow(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
