package pipeline

import "github.com/dvloznov/bankdata-pipeline/internal/domain"

// Merge concatenates per-file batches in input order, preserving each file's
// row order. Rows are not deduplicated.
func Merge(perFile [][]domain.CategorizedRow) []domain.CategorizedRow {
	total := 0
	for _, rows := range perFile {
		total += len(rows)
	}

	merged := make([]domain.CategorizedRow, 0, total)
	for _, rows := range perFile {
		merged = append(merged, rows...)
	}
	return merged
}
