package pipeline

import (
	"fmt"
	"strings"
)

const DefaultFilenameMaxChars = 20

var filenameReplacer = strings.NewReplacer(
	"\n", " ", "\r", " ", "\t", " ",
	`\`, "", "/", "", ":", "", "*", "", "?", "", `"`, "", "<", "", ">", "", "|", "",
)

// SanitizeFilename turns text into a filename fragment of at most maxChars
// characters with no path separators, reserved characters or control
// whitespace. maxChars <= 0 selects DefaultFilenameMaxChars.
func SanitizeFilename(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultFilenameMaxChars
	}
	clean := strings.TrimSpace(filenameReplacer.Replace(text))
	if r := []rune(clean); len(r) > maxChars {
		clean = string(r[:maxChars])
	}
	return clean
}

// OutputName is the WAV filename for the index-th (1-based) text.
func OutputName(index int, text, prefix string, maxChars int) string {
	name := fmt.Sprintf("%03d_%s.wav", index, SanitizeFilename(text, maxChars))
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name
}

// Preview shortens text for log and dry-run lines.
func Preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
