// Package classifier provides the trained models behind the model
// categorization strategy.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
)

// ArtifactFormat identifies the serialized naive-Bayes layout.
const ArtifactFormat = "bankdata-naive-bayes/v1"

// DefaultAlpha is the Laplace smoothing constant used by TrainNaiveBayes.
const DefaultAlpha = 1.0

var (
	// ErrIncompatibleArtifact is returned for artifacts with an unknown format
	// or a class set other than the category ids.
	ErrIncompatibleArtifact = errors.New("incompatible classifier artifact")

	// ErrArtifactUnavailable is returned when an artifact cannot be fetched.
	ErrArtifactUnavailable = errors.New("classifier artifact unavailable")
)

// Example is one labelled training row.
type Example struct {
	Features categorize.Features
	Label    int
}

// NaiveBayes is a multinomial naive-Bayes model over description tokens plus
// calendar and amount tokens.
type NaiveBayes struct {
	Format      string           `json:"format"`
	Classes     []int            `json:"classes"`
	DocCounts   []int            `json:"doc_counts"`
	TokenCounts []map[string]int `json:"token_counts"`
	TokenTotals []int            `json:"token_totals"`
	Vocabulary  int              `json:"vocabulary"`
	Alpha       float64          `json:"alpha"`
	TrainedAt   time.Time        `json:"trained_at"`
}

// TrainNaiveBayes fits a model on examples. Labels must be category ids.
func TrainNaiveBayes(examples []Example, alpha float64) (*NaiveBayes, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("TrainNaiveBayes: no training examples")
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	m := &NaiveBayes{
		Format:      ArtifactFormat,
		Classes:     make([]int, domain.NumCategories),
		DocCounts:   make([]int, domain.NumCategories),
		TokenCounts: make([]map[string]int, domain.NumCategories),
		TokenTotals: make([]int, domain.NumCategories),
		Alpha:       alpha,
		TrainedAt:   time.Now().UTC(),
	}
	for i := range m.Classes {
		m.Classes[i] = i
		m.TokenCounts[i] = make(map[string]int)
	}

	vocab := make(map[string]struct{})
	for i, ex := range examples {
		if !domain.CategoryID(ex.Label).Valid() {
			return nil, fmt.Errorf("TrainNaiveBayes: example %d: label %d out of range", i, ex.Label)
		}
		m.DocCounts[ex.Label]++
		for _, tok := range Tokens(ex.Features) {
			m.TokenCounts[ex.Label][tok]++
			m.TokenTotals[ex.Label]++
			vocab[tok] = struct{}{}
		}
	}
	m.Vocabulary = len(vocab)

	return m, nil
}

// LoadNaiveBayes decodes and validates a serialized model.
func LoadNaiveBayes(data []byte) (*NaiveBayes, error) {
	var m NaiveBayes
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("LoadNaiveBayes: %w: decoding: %v", ErrIncompatibleArtifact, err)
	}
	if m.Format != ArtifactFormat {
		return nil, fmt.Errorf("LoadNaiveBayes: %w: format %q", ErrIncompatibleArtifact, m.Format)
	}
	if len(m.Classes) != domain.NumCategories {
		return nil, fmt.Errorf("LoadNaiveBayes: %w: %d classes, want %d",
			ErrIncompatibleArtifact, len(m.Classes), domain.NumCategories)
	}
	for i, c := range m.Classes {
		if c != i {
			return nil, fmt.Errorf("LoadNaiveBayes: %w: class %d at position %d", ErrIncompatibleArtifact, c, i)
		}
	}
	if len(m.DocCounts) != domain.NumCategories ||
		len(m.TokenCounts) != domain.NumCategories ||
		len(m.TokenTotals) != domain.NumCategories {
		return nil, fmt.Errorf("LoadNaiveBayes: %w: count tables do not match class set", ErrIncompatibleArtifact)
	}
	if m.Alpha <= 0 {
		m.Alpha = DefaultAlpha
	}
	for i := range m.TokenCounts {
		if m.TokenCounts[i] == nil {
			m.TokenCounts[i] = make(map[string]int)
		}
	}

	return &m, nil
}

// Marshal serializes the model.
func (m *NaiveBayes) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("NaiveBayes.Marshal: %w", err)
	}
	return data, nil
}

// Predict implements categorize.Classifier.
func (m *NaiveBayes) Predict(ctx context.Context, rows []categorize.Features) ([]int, error) {
	out := make([]int, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.predictOne(Tokens(row))
	}
	return out, nil
}

func (m *NaiveBayes) predictOne(tokens []string) int {
	totalDocs := 0
	for _, n := range m.DocCounts {
		totalDocs += n
	}

	k := float64(len(m.Classes))
	v := float64(m.Vocabulary)

	best, bestScore := 0, math.Inf(-1)
	for c := range m.Classes {
		score := math.Log((float64(m.DocCounts[c]) + m.Alpha) / (float64(totalDocs) + m.Alpha*k))
		denom := float64(m.TokenTotals[c]) + m.Alpha*(v+1)
		for _, tok := range tokens {
			score += math.Log((float64(m.TokenCounts[c][tok]) + m.Alpha) / denom)
		}
		// Strict comparison keeps the lowest id on ties.
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return m.Classes[best]
}

// Tokens expands a feature row into model tokens.
func Tokens(f categorize.Features) []string {
	words := strings.Fields(f.Description)
	tokens := make([]string, 0, len(words)+4)
	for _, w := range words {
		tokens = append(tokens, "w:"+w)
	}
	tokens = append(tokens,
		"dow:"+strconv.Itoa(f.DayOfWeek),
		"month:"+strconv.Itoa(f.Month),
		"amt:"+amountBucket(f),
	)
	return tokens
}

// amountBucket groups amounts by sign and order of magnitude.
func amountBucket(f categorize.Features) string {
	if f.Amount.IsZero() {
		return "0"
	}
	sign := "+"
	if f.Amount.IsNegative() {
		sign = "-"
	}
	abs, _ := f.Amount.Abs().Float64()
	mag := 0
	if abs >= 1 {
		mag = int(math.Floor(math.Log10(abs))) + 1
	}
	return sign + strconv.Itoa(mag)
}
