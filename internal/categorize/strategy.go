// Package categorize assigns a spending category label to transaction rows.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
)

// Strategy names accepted in configuration.
const (
	StrategyRules = "rules"
	StrategyModel = "model"
)

var (
	// ErrUnknownStrategy is returned when configuration names no known strategy.
	ErrUnknownStrategy = errors.New("unknown categorization strategy")

	// ErrIncompatibleClassifier is returned when a classifier's output does not
	// line up with its input batch or leaves the category codomain. The whole
	// batch fails; there is no per-row recovery.
	ErrIncompatibleClassifier = errors.New("incompatible classifier output")
)

// Strategy labels a batch of enriched rows. Every input row yields exactly
// one output row, in order; rows without a better match get domain.OtherLabel.
type Strategy interface {
	Name() string
	Assign(ctx context.Context, rows []domain.EnrichedRow) ([]domain.CategorizedRow, error)
}

// Select builds the strategy named by name. The classifier is only required
// for the model strategy and rules only for the rule strategy (nil rules use
// DefaultRules).
func Select(name string, rules []Rule, classifier Classifier) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyRules, "":
		if rules == nil {
			rules = DefaultRules()
		}
		return NewRuleStrategy(rules)
	case StrategyModel:
		if classifier == nil {
			return nil, fmt.Errorf("Select: model strategy requires a classifier")
		}
		return NewModelStrategy(classifier), nil
	default:
		return nil, fmt.Errorf("Select: %w: %q", ErrUnknownStrategy, name)
	}
}
