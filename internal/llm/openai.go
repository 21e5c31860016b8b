package llm

import (
	"context"
	"errors"
	"io"
	"iter"

	openai "github.com/sashabaranov/go-openai"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/config"
)

// chatChunkStream is the part of *openai.ChatCompletionStream we consume.
type chatChunkStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

type openAIBackend struct {
	model string
	open  func(ctx context.Context, req openai.ChatCompletionRequest) (chatChunkStream, error)
}

func newOpenAIBackend(cfg config.Config) (*openAIBackend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, apperr.NewProviderNotConfiguredError(string(ProviderOpenAI), "OPENAI_API_KEY is not set")
	}
	occ := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		occ.BaseURL = cfg.OpenAIBaseURL
	}
	client := openai.NewClientWithConfig(occ)
	return &openAIBackend{
		model: cfg.OpenAIModel,
		open: func(ctx context.Context, req openai.ChatCompletionRequest) (chatChunkStream, error) {
			s, err := client.CreateChatCompletionStream(ctx, req)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}, nil
}

func (b *openAIBackend) stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error] {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Stream: true,
	}
	return func(yield func(string, error) bool) {
		s, err := b.open(ctx, req)
		if err != nil {
			yield("", err)
			return
		}
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			text, ok := openAIText(chunk)
			if !ok {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// openAIText unwraps a content delta; role-only and empty chunks are skipped.
func openAIText(chunk openai.ChatCompletionStreamResponse) (string, bool) {
	if len(chunk.Choices) == 0 {
		return "", false
	}
	text := chunk.Choices[0].Delta.Content
	return text, text != ""
}
