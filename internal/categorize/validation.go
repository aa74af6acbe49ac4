package categorize

import (
	"fmt"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
)

// CategoryValidator checks labels against the closed category mapping.
type CategoryValidator struct {
	canonical map[string]string // normalized name -> canonical name
}

// NewCategoryValidator creates a validator over domain.CategoryNames.
func NewCategoryValidator() *CategoryValidator {
	v := &CategoryValidator{canonical: make(map[string]string, domain.NumCategories)}
	for _, name := range domain.CategoryNames() {
		v.canonical[normalizeCategory(name)] = name
	}
	return v
}

// Canonical returns the canonical spelling of category, or an error listing
// the valid names when category is not part of the mapping.
func (v *CategoryValidator) Canonical(category string) (string, error) {
	if name, ok := v.canonical[normalizeCategory(category)]; ok {
		return name, nil
	}
	return "", fmt.Errorf("invalid category %q. Valid categories: %v", category, domain.CategoryNames())
}

// normalizeCategory upper-cases and trims a name for case-insensitive comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
