// Package textnorm normalises and compares program output for judging.
package textnorm

import "strings"

// Normalize strips leading/trailing whitespace and trailing newline or
// carriage-return sequences. Internal whitespace is preserved untouched.
// Normalizing an already-normalized string is a no-op.
func Normalize(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "\n\r")
}

// Equivalent reports whether actual output matches expected output after
// normalisation. In non-strict mode both strings are compared as whole
// blocks. In strict mode both are split into lines, line counts must match
// and each line pair is compared after per-line normalisation. No numeric
// tolerance or whitespace collapsing is applied beyond the trim rules.
func Equivalent(actual, expected string, strict bool) bool {
	actual = Normalize(actual)
	expected = Normalize(expected)

	if !strict {
		return actual == expected
	}

	actualLines := strings.Split(actual, "\n")
	expectedLines := strings.Split(expected, "\n")
	if len(actualLines) != len(expectedLines) {
		return false
	}
	for i := range actualLines {
		if Normalize(actualLines[i]) != Normalize(expectedLines[i]) {
			return false
		}
	}
	return true
}
