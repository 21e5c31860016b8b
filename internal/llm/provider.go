// Package llm normalizes the streaming protocols of the supported model
// vendors into one lazy sequence of text fragments.
package llm

import (
	"context"
	"iter"
	"strings"
	"sync"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/config"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/metrics"
)

type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderGemini    ProviderID = "gemini"
	ProviderAnthropic ProviderID = "anthropic"
)

// Providers lists every supported id in a stable order.
var Providers = []ProviderID{ProviderOpenAI, ProviderGemini, ProviderAnthropic}

// ParseProviderID maps a wire value to a ProviderID. Unknown values fail
// with a ConfigurationError.
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range Providers {
		if p == id {
			return id, nil
		}
	}
	return "", apperr.NewUnknownProviderError(s)
}

// Streamer is the single capability every stage depends on: given a system
// and a user instruction, produce a finite lazy sequence of text fragments.
// The returned error covers configuration problems detected before any
// network call; vendor failures are yielded by the sequence.
type Streamer interface {
	StreamCompletion(ctx context.Context, provider ProviderID, systemPrompt, userPrompt string) (iter.Seq2[string, error], error)
}

// backend is one vendor's protocol adapter.
type backend interface {
	stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error]
}

// Registry dispatches to a lazily constructed, cached backend per provider.
type Registry struct {
	cfg config.Config
	log logger.Logger

	mu       sync.Mutex
	backends map[ProviderID]backend
}

func NewRegistry(cfg config.Config, log logger.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		log:      log.With(map[string]interface{}{"component": "llm"}),
		backends: make(map[ProviderID]backend),
	}
}

func (r *Registry) StreamCompletion(ctx context.Context, provider ProviderID, systemPrompt, userPrompt string) (iter.Seq2[string, error], error) {
	if _, err := ParseProviderID(string(provider)); err != nil {
		return nil, err
	}
	b, err := r.backend(ctx, provider)
	if err != nil {
		return nil, err
	}
	return r.instrument(provider, b.stream(ctx, systemPrompt, userPrompt)), nil
}

func (r *Registry) backend(ctx context.Context, provider ProviderID) (backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[provider]; ok {
		return b, nil
	}
	var (
		b   backend
		err error
	)
	switch provider {
	case ProviderOpenAI:
		b, err = newOpenAIBackend(r.cfg)
	case ProviderGemini:
		b, err = newGeminiBackend(ctx, r.cfg)
	case ProviderAnthropic:
		b, err = newBedrockBackend(ctx, r.cfg)
	default:
		err = apperr.NewUnknownProviderError(string(provider))
	}
	if err != nil {
		return nil, err
	}
	r.log.Info("provider client initialised", map[string]interface{}{"provider": string(provider)})
	r.backends[provider] = b
	return b, nil
}

// instrument wraps vendor failures as ProviderError and records metrics.
func (r *Registry) instrument(provider ProviderID, seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	label := string(provider)
	return func(yield func(string, error) bool) {
		metrics.ProviderStreamsTotal.WithLabelValues(label).Inc()
		for text, err := range seq {
			if err != nil {
				metrics.ProviderErrorsTotal.WithLabelValues(label).Inc()
				r.log.Warn("provider stream failed", map[string]interface{}{
					"provider": label,
					"error":    err.Error(),
				})
				yield("", apperr.NewProviderError(label, err))
				return
			}
			metrics.FragmentsTotal.WithLabelValues(label).Inc()
			if !yield(text, nil) {
				return
			}
		}
	}
}

// Collect drains seq and returns the concatenated text.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for text, err := range seq {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
