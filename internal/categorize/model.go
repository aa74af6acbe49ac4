package categorize

import (
	"context"
	"fmt"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/shopspring/decimal"
)

// Features is the classifier input for one row.
type Features struct {
	DateTime    string          `json:"date_time"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Day         int             `json:"day"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	DayOfWeek   int             `json:"day_of_week"`
}

// Classifier predicts a category id for every feature row, in order.
type Classifier interface {
	Predict(ctx context.Context, rows []Features) ([]int, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, rows []Features) ([]int, error)

// Predict implements Classifier.
func (f ClassifierFunc) Predict(ctx context.Context, rows []Features) ([]int, error) {
	return f(ctx, rows)
}

// ModelStrategy labels rows with a pre-trained classifier.
type ModelStrategy struct {
	classifier Classifier
}

// NewModelStrategy creates a ModelStrategy over classifier.
func NewModelStrategy(classifier Classifier) *ModelStrategy {
	return &ModelStrategy{classifier: classifier}
}

// Name implements Strategy.
func (s *ModelStrategy) Name() string { return StrategyModel }

// BuildFeatures derives classifier input from an enriched row. An absent
// amount is presented as zero and an absent description as empty text.
func BuildFeatures(row domain.EnrichedRow) Features {
	f := Features{
		DateTime:    row.Date.String(),
		Description: Preprocess(domain.StringValue(row.Description)),
		Day:         row.Day,
		Month:       row.Month,
		Year:        row.Year,
		DayOfWeek:   row.DayOfWeek,
	}
	if row.Amount.Valid {
		f.Amount = row.Amount.Decimal
	}
	return f
}

// Assign implements Strategy. The batch is predicted in a single call.
func (s *ModelStrategy) Assign(ctx context.Context, rows []domain.EnrichedRow) ([]domain.CategorizedRow, error) {
	if len(rows) == 0 {
		return []domain.CategorizedRow{}, nil
	}

	features := make([]Features, len(rows))
	for i, row := range rows {
		features[i] = BuildFeatures(row)
	}

	ids, err := s.classifier.Predict(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("ModelStrategy.Assign: predicting categories: %w", err)
	}
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("ModelStrategy.Assign: %w: got %d predictions for %d rows",
			ErrIncompatibleClassifier, len(ids), len(rows))
	}

	out := make([]domain.CategorizedRow, len(rows))
	for i, id := range ids {
		label, err := domain.CategoryID(id).Name()
		if err != nil {
			return nil, fmt.Errorf("ModelStrategy.Assign: row %d: %w: %v", i, ErrIncompatibleClassifier, err)
		}
		out[i] = domain.NewCategorizedRow(rows[i], label)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("rows", len(rows)).
		Msg("Model categorization finished")

	return out, nil
}
