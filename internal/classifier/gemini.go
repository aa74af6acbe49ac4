package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/domain"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini model used for categorization.
const DefaultGeminiModel = "gemini-2.5-flash"

// geminiBatchSize bounds the number of rows sent in one prompt.
const geminiBatchSize = 200

// TextGenerator produces a model response for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// GeminiClassifier asks a Gemini model for category ids.
type GeminiClassifier struct {
	generator TextGenerator
}

// NewGeminiClassifier creates a classifier backed by the Gemini API.
func NewGeminiClassifier(ctx context.Context, model string) (*GeminiClassifier, error) {
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClassifier: create genai client: %w", err)
	}

	return NewGeminiClassifierWithGenerator(&genaiGenerator{client: client, model: model}), nil
}

// NewGeminiClassifierWithGenerator creates a classifier over any TextGenerator.
func NewGeminiClassifierWithGenerator(generator TextGenerator) *GeminiClassifier {
	return &GeminiClassifier{generator: generator}
}

// Predict implements categorize.Classifier. Every sub-batch must return one id
// per row; range checks are left to the caller.
func (g *GeminiClassifier) Predict(ctx context.Context, rows []categorize.Features) ([]int, error) {
	out := make([]int, 0, len(rows))
	for start := 0; start < len(rows); start += geminiBatchSize {
		end := min(start+geminiBatchSize, len(rows))

		ids, err := g.predictBatch(ctx, rows[start:end])
		if err != nil {
			return nil, fmt.Errorf("GeminiClassifier.Predict: rows %d-%d: %w", start, end-1, err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

func (g *GeminiClassifier) predictBatch(ctx context.Context, rows []categorize.Features) ([]int, error) {
	prompt, err := buildCategorizationPrompt(rows)
	if err != nil {
		return nil, err
	}

	rawText, err := g.generator.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if rawText == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var ids []int
	if err := json.Unmarshal([]byte(clean), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, rawText)
	}
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("%w: %d predictions for %d rows", categorize.ErrIncompatibleClassifier, len(ids), len(rows))
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int("rows", len(rows)).
		Int("predictions", len(ids)).
		Msg("Gemini categorization batch finished")

	return ids, nil
}

func buildCategorizationPrompt(rows []categorize.Features) (string, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal features: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a bank transaction categorizer.\n\n")
	b.WriteString("Use ONLY the following category ids:\n")
	for id, name := range domain.CategoryNames() {
		fmt.Fprintf(&b, "  %d: %s\n", id, name)
	}
	b.WriteString("\nTransactions (descriptions are lower-cased and stripped of diacritics):\n")
	b.Write(payload)
	b.WriteString("\n\nRules:\n")
	b.WriteString("1. Return one category id per transaction, in the same order.\n")
	b.WriteString("2. If you are unsure, use 0.\n")
	b.WriteString("Return ONLY a raw JSON array of integers.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String(), nil
}

// cleanModelJSON strips Markdown fences and surrounding text from a model
// response, keeping the outermost JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
