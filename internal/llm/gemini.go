package llm

import (
	"context"
	"iter"

	"google.golang.org/genai"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/config"
)

type geminiStreamFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

type geminiBackend struct {
	model string
	open  geminiStreamFunc
}

func newGeminiBackend(ctx context.Context, cfg config.Config) (*geminiBackend, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, apperr.NewProviderNotConfiguredError(string(ProviderGemini), "GOOGLE_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.NewProviderNotConfiguredError(string(ProviderGemini), err.Error())
	}
	return &geminiBackend{model: cfg.GeminiModel, open: client.Models.GenerateContentStream}, nil
}

func (b *geminiBackend) stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error] {
	gcc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	return func(yield func(string, error) bool) {
		for resp, err := range b.open(ctx, b.model, genai.Text(userPrompt), gcc) {
			if err != nil {
				yield("", err)
				return
			}
			text, ok := geminiText(resp)
			if !ok {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// geminiText reads the chunk's text accessor; chunks without text parts
// (usage-only, function calls, safety stops) are skipped.
func geminiText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	text := resp.Text()
	return text, text != ""
}
