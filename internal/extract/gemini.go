// Package extract turns unstructured expense text into candidate records
// using a Gemini model. The pipeline treats it as a black box behind the
// ingest.Extractor interface; everything here is prompt construction and
// response decoding.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"finman/internal/ingest"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

const extractionPrompt = "You are a financial assistant extracting transactions from free text.\n\n" +
	"Task:\n" +
	"- Extract EVERY clear financial transaction from the text below.\n" +
	"- Ignore summaries, balances and non-transactional text.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\". If the year is missing, assume the current year.\n" +
	"- \"description\": string, a brief label for the transaction\n" +
	"- \"value\": number, NEGATIVE for money spent or paid out, POSITIVE for money received\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"[\" and end with \"]\".\n" +
	"If the text contains no transactions, output [].\n"

// GeminiExtractor implements ingest.Extractor on top of the Gemini API.
// Credentials come from the environment (GEMINI_API_KEY), the same way the
// genai client resolves them elsewhere.
type GeminiExtractor struct {
	model string
}

var _ ingest.Extractor = (*GeminiExtractor)(nil)

func NewGeminiExtractor(model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiExtractor{model: model}
}

// Extract sends the whole text blob to the model in one call and decodes the
// JSON array it returns into raw records for the pipeline.
func (g *GeminiExtractor) Extract(ctx context.Context, text string) ([]ingest.RawRecord, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{Text: "Text:\n" + text},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model %s", g.model)
	}

	records, err := decodeCandidates(cleanModelJSON(raw))
	if err != nil {
		return nil, fmt.Errorf("decode model output: %w\nraw response: %s", err, raw)
	}

	slog.InfoContext(ctx, "Gemini extraction complete", "model", g.model, "candidates", len(records))
	return records, nil
}

// cleanModelJSON strips Markdown code fences the model sometimes emits
// despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

type candidate struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Value       json.Number `json:"value"`
}

func decodeCandidates(clean string) ([]ingest.RawRecord, error) {
	var items []candidate
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, err
	}

	records := make([]ingest.RawRecord, 0, len(items))
	for i, item := range items {
		records = append(records, ingest.RawRecord{
			Line:        i + 1,
			Date:        item.Date,
			Description: item.Description,
			Value:       item.Value.String(),
		})
	}
	return records, nil
}
