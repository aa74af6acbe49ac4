package handlers

import (
	"net/http"

	"github.com/dvloznov/bankdata-pipeline/internal/api/middleware"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
)

// Category is one entry of the category mapping.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CategoriesHandler serves the fixed category mapping.
type CategoriesHandler struct {
	strategy string
}

// NewCategoriesHandler creates a categories handler reporting the configured
// categorization strategy alongside the mapping.
func NewCategoriesHandler(strategy string) *CategoriesHandler {
	return &CategoriesHandler{strategy: strategy}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	names := domain.CategoryNames()
	categories := make([]Category, len(names))
	for i, name := range names {
		categories[i] = Category{ID: i, Name: name}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
		"strategy":   h.strategy,
	})
}
