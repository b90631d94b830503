package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

// categorizationPrompt instructs the model to return a strict JSON array of
// category labels, one per merchant, in order.
const categorizationPrompt = `Categorize each merchant into exactly one category.

IMPORTANT RULES:
1. Focus on the CORE BUSINESS NAME - ignore dates, card numbers, transaction IDs, locations
2. Be CONSISTENT - same store must always get the same category
3. "Convenience" stores, gas stations with shops = groceries
4. Look at the business type, not the extra text

Examples:
- "college convenience boston ma" -> groceries (it's a convenience store)
- "uber trip help.uber.com" -> transport
- "uber eats help.uber.com" -> dining

Categories: %s

Merchants:
%s

Respond with ONLY a JSON array of categories in the same order:
["category1", "category2", ...]`

// GeminiOracle implements Oracle against the Gemini API. Credentials come
// from the environment (GEMINI_API_KEY), picked up by the genai client.
type GeminiOracle struct {
	client *genai.Client
	model  string
}

// NewGeminiOracle creates a Gemini-backed oracle using the given model.
func NewGeminiOracle(ctx context.Context, model string) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiOracle: create genai client: %w", err)
	}
	return &GeminiOracle{client: client, model: model}, nil
}

// CategorizeBatch sends one numbered merchant list to the model and parses
// the JSON array reply. Returns exactly one label per merchant; a count
// mismatch is padded or truncated with "other".
func (o *GeminiOracle) CategorizeBatch(ctx context.Context, merchantKeys []string) ([]string, error) {
	var sb strings.Builder
	for i, m := range merchantKeys {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, m)
	}

	var names []string
	for _, c := range domain.Categories() {
		names = append(names, string(c))
	}
	prompt := fmt.Sprintf(categorizationPrompt, strings.Join(names, ", "), sb.String())

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := o.client.Models.GenerateContent(ctx, o.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("CategorizeBatch: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("CategorizeBatch: empty response from model")
	}

	labels, err := parseOracleLabels(rawText, len(merchantKeys))
	if err != nil {
		return nil, fmt.Errorf("CategorizeBatch: %w", err)
	}
	return labels, nil
}

// parseOracleLabels extracts the JSON label array from a model reply,
// tolerating markdown fences and stray prose, and normalizes its length.
func parseOracleLabels(raw string, expected int) ([]string, error) {
	clean := cleanOracleJSON(raw)

	var labels []string
	if err := json.Unmarshal([]byte(clean), &labels); err != nil {
		return nil, fmt.Errorf("unmarshal label array: %w", err)
	}

	for len(labels) < expected {
		labels = append(labels, string(domain.CategoryOther))
	}
	return labels[:expected], nil
}

// cleanOracleJSON strips markdown fences and surrounding junk the model
// sometimes emits despite instructions, keeping the outermost JSON array.
func cleanOracleJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
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
