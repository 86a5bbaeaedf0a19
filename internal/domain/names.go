package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldName returns the comparison key of a display name. Two names refer to
// the same user when their folded forms are equal.
func FoldName(name string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(strings.TrimSpace(name))
}
