package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the default maximum length for descriptions in table output.
const DefaultDescriptionMaxLen = 60

// DefaultTailLines is how many trailing script output lines are kept as debug context.
const DefaultTailLines = 20

// MinTruncateLen is the minimum maxLen value for TruncateDescription.
const MinTruncateLen = 4

// TruncateDescription truncates a string to maxLen runes and ensures single-line output.
// Whitespace runs are collapsed and "..." is appended if truncated.
// maxLen values below MinTruncateLen are clamped.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// TailLines returns the last n non-empty lines of s, joined with newlines.
// It is used to attach the end of a failed script's output to an error.
func TailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, "\r"))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
