package categorize

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
)

// Rule maps description patterns onto one category. Patterns are regular
// expressions matched case-insensitively anywhere in the description.
type Rule struct {
	Category string   `mapstructure:"category" yaml:"category" json:"category"`
	Patterns []string `mapstructure:"patterns" yaml:"patterns" json:"patterns"`
}

// DefaultRules returns the built-in rule set, in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: "General merchandise",
			Patterns: []string{"Allegro", "HERBALIFE", "LIDL", "CARREFOUR", "ROSSMANN", "ZABKA", "PIWARIUM", "Kancelaria", "JMP", "Top", "BADYLARNIA"},
		},
		{
			Category: "Services",
			Patterns: []string{"PAYPAL", "GOOGLE", "NETFLIX.COM", "HEROKU*", "DISNEY"},
		},
		{
			Category: "Food and drinks",
			Patterns: []string{"PP*RESTAUMATIC.COM", "WILCZA", "RESTAURACJA", "PIZZA", "XIN", "BUTCHERY", "GREEN", "PIJALNIA"},
		},
		{
			Category: "Transportation",
			Patterns: []string{"BOLT", "Stacja", "CIRCLE", "SPP", "Parking"},
		},
		{
			Category: "Personal and healthcare",
			Patterns: []string{"MOKOT.FUND.WARSZAWIANKA", "APTEKA", "PORADNIA", "CEFARM-WARSZAWA", "OSIR", "PSYCHIATRZY.WARSZAWA"},
		},
		{
			Category: "General merchandise",
			Patterns: []string{"PayPro", "Elfi.pl", "KUBUS", "EVENTIM.PL-PL-ECOM", "AVANS.PL", "PAYPAL *ZALANDOSE"},
		},
		{
			Category: "Other",
			Patterns: []string{"UBEZP.", "SPŁATA", "ZWROT", "HB", "ODSETKI"},
		},
	}
}

type compiledRule struct {
	category string
	patterns []*regexp.Regexp
}

// RuleStrategy labels rows by the first rule, in order, with a matching pattern.
type RuleStrategy struct {
	rules []compiledRule
}

// NewRuleStrategy validates rule categories and compiles their patterns. A
// pattern that is not a valid regular expression is matched literally.
func NewRuleStrategy(rules []Rule) (*RuleStrategy, error) {
	validator := NewCategoryValidator()

	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		category, err := validator.Canonical(r.Category)
		if err != nil {
			return nil, fmt.Errorf("NewRuleStrategy: rule %d: %w", i, err)
		}

		cr := compiledRule{category: category}
		for _, p := range r.Patterns {
			if p == "" {
				continue
			}
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(p))
			}
			cr.patterns = append(cr.patterns, re)
		}
		compiled = append(compiled, cr)
	}

	return &RuleStrategy{rules: compiled}, nil
}

// Name implements Strategy.
func (s *RuleStrategy) Name() string { return StrategyRules }

// Label returns the category for a single description.
func (s *RuleStrategy) Label(description string) string {
	for _, r := range s.rules {
		for _, re := range r.patterns {
			if re.MatchString(description) {
				return r.category
			}
		}
	}
	return domain.OtherLabel
}

// Assign implements Strategy.
func (s *RuleStrategy) Assign(ctx context.Context, rows []domain.EnrichedRow) ([]domain.CategorizedRow, error) {
	out := make([]domain.CategorizedRow, len(rows))
	matched := 0
	for i, row := range rows {
		label := domain.OtherLabel
		if row.Description != nil {
			label = s.Label(*row.Description)
		}
		if label != domain.OtherLabel {
			matched++
		}
		out[i] = domain.NewCategorizedRow(row, label)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("rows", len(rows)).
		Int("matched", matched).
		Msg("Rule categorization finished")

	return out, nil
}
