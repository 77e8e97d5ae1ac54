package sheets

import (
	"fmt"
	"strings"
)

// ColumnIndex converts a spreadsheet column letter (A, B, ..., Z, AA, ...) to
// a 0-based index. Letters are case-insensitive.
func ColumnIndex(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("empty column letter")
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", letter)
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1, nil
}

// ColumnLetter is the inverse of ColumnIndex.
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}
