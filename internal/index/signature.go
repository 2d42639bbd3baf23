package index

import (
	"sort"
	"strings"

	"github.com/your-org/imgindex/internal/models"
)

// Signature is the canonical term string of a label set: lowercased names,
// sorted ascending, joined by single spaces. It does not depend on label
// order or casing.
func Signature(labels []models.Label) string {
	terms := make([]string, 0, len(labels))
	for _, l := range labels {
		terms = append(terms, strings.ToLower(l.Name))
	}
	sort.Strings(terms)
	return strings.Join(terms, " ")
}
