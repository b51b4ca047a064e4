package types

import (
	"regexp"
	"strings"
)

// MaxLabelLength bounds domain, category, client and niche labels
const MaxLabelLength = 100

// LabelPattern allows letters (any script), digits, spaces, dots, hyphens and underscores.
var LabelPattern = regexp.MustCompile(`^[\p{L}\p{N} ._-]+$`)

// ValidateLabel checks a domain or category label passes basic sanitization
func ValidateLabel(label string) bool {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || len(label) > MaxLabelLength {
		return false
	}
	if strings.Contains(label, "..") {
		return false
	}
	return LabelPattern.MatchString(label)
}
