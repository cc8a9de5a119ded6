package generator

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"portfolio-quiz-service/internal/domain"
)

// GeminiModel generates text through the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key not configured")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

func (m *GeminiModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := m.client.Models.GenerateContent(
		ctx,
		m.model,
		genai.Text(systemPrompt+"\n\n"+userPrompt),
		nil,
	)
	if err != nil {
		return "", mapGeminiError(err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini: empty result")
	}
	text, err := result.Text()
	if err != nil {
		return "", fmt.Errorf("gemini: extract text: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("gemini: empty reply")
	}
	return text, nil
}

func (m *GeminiModel) Name() string { return "gemini/" + m.model }

// mapGeminiError translates quota and billing failures into the sentinel
// errors the engine surfaces verbatim.
func mapGeminiError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case strings.Contains(msg, "402"):
		return fmt.Errorf("%w: %s", domain.ErrPaymentRequired, msg)
	default:
		return fmt.Errorf("gemini: %w", err)
	}
}
