package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var copyMarker = regexp.MustCompile(`\(Copy( [0-9]*)?\)`)

// CopyLabel marks a label as a copy: "X" becomes "X (Copy)", then
// "X (Copy 2)", "X (Copy 3)" and so on. The number follows the first marker
// and every marker in the label is rewritten to it.
func CopyLabel(label string) string {
	m := copyMarker.FindStringSubmatch(label)
	if m == nil {
		return label + " (Copy)"
	}

	n := 2
	if parsed, err := strconv.Atoi(strings.TrimSpace(m[1])); err == nil {
		n = parsed + 1
	}
	return copyMarker.ReplaceAllLiteralString(label, "(Copy "+strconv.Itoa(n)+")")
}
