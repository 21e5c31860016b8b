// Package analyzer turns a free-form request into structured generation
// parameters plus the follow-up questions still worth asking.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/prompts"
)

type Analyzer struct {
	streamer        llm.Streamer
	spec            prompts.Spec
	mode            deck.Mode
	defaultProvider llm.ProviderID
	log             logger.Logger
}

func New(streamer llm.Streamer, spec prompts.Spec, mode deck.Mode, defaultProvider llm.ProviderID, log logger.Logger) *Analyzer {
	return &Analyzer{
		streamer:        streamer,
		spec:            spec,
		mode:            mode,
		defaultProvider: defaultProvider,
		log:             log.With(map[string]interface{}{"component": "analyzer"}),
	}
}

// Analyze classifies prompt with one collected completion. Every failure is
// an AnalysisFailure wrapping its cause.
func (a *Analyzer) Analyze(ctx context.Context, prompt string, provider llm.ProviderID) (*deck.PromptAnalysisResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.NewAnalysisError(apperr.NewValidationError("prompt is required"))
	}
	if provider == "" {
		provider = a.defaultProvider
	}

	seq, err := a.streamer.StreamCompletion(ctx, provider, a.spec.System, a.userPrompt(prompt))
	if err != nil {
		return nil, apperr.NewAnalysisError(err)
	}
	text, err := llm.Collect(seq)
	if err != nil {
		return nil, apperr.NewAnalysisError(err)
	}

	result, err := ParseAnalysis(text, a.mode)
	if err != nil {
		a.log.Warn("analysis response rejected", map[string]interface{}{
			"provider": string(provider),
			"length":   len(text),
			"error":    err.Error(),
		})
		return nil, apperr.NewAnalysisError(err)
	}
	a.log.Debug("prompt analysed", map[string]interface{}{
		"provider":       string(provider),
		"hasUserContent": result.HasUserContent,
		"questions":      len(result.Questions),
	})
	return result, nil
}

func (a *Analyzer) userPrompt(prompt string) string {
	var b strings.Builder
	b.WriteString(a.spec.Footer)
	b.WriteString("\n\n\"\"\"")
	b.WriteString(prompt)
	b.WriteString("\"\"\"")
	return b.String()
}

type rawAnalysis struct {
	HasUserContent *bool           `json:"hasUserContent"`
	Topic          *string         `json:"topic"`
	UserContent    *string         `json:"userContent"`
	NumberOfSlides json.RawMessage `json:"numberOfSlides"`
	Audience       *string         `json:"audience"`
	Style          *string         `json:"style"`
	Questions      json.RawMessage `json:"questions"`
	Assumptions    json.RawMessage `json:"assumptions"`
}

// ParseAnalysis extracts the analysis object from model output and applies
// the result clamps.
func ParseAnalysis(text string, mode deck.Mode) (*deck.PromptAnalysisResult, error) {
	obj, err := deck.ExtractObject(text, mode)
	if err != nil {
		return nil, err
	}
	if err := deck.ValidateAnalysisShape([]byte(obj)); err != nil {
		return nil, err
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, apperr.NewInvalidShapeError(err.Error())
	}
	return normalize(raw), nil
}

func normalize(raw rawAnalysis) *deck.PromptAnalysisResult {
	res := &deck.PromptAnalysisResult{
		Topic:       deck.DefaultTopic,
		Questions:   decodeQuestions(raw.Questions),
		Assumptions: decodeAssumptions(raw.Assumptions),
	}
	if raw.HasUserContent != nil {
		res.HasUserContent = *raw.HasUserContent
	}
	if raw.Topic != nil && strings.TrimSpace(*raw.Topic) != "" {
		res.Topic = strings.TrimSpace(*raw.Topic)
	}
	if raw.UserContent != nil && *raw.UserContent != "" {
		res.UserContent = raw.UserContent
	}
	if f, ok := slideCount(raw.NumberOfSlides); ok {
		n := roundClamp(f)
		res.NumberOfSlides = &n
	}
	if raw.Audience != nil && strings.TrimSpace(*raw.Audience) != "" {
		res.Audience = raw.Audience
	}
	if raw.Style != nil {
		if st, ok := deck.ParseStyle(*raw.Style); ok {
			res.Style = &st
		}
	}
	return res
}

// decodeQuestions keeps every well-formed entry; anything that is not a
// list becomes an empty list.
func decodeQuestions(raw json.RawMessage) []deck.Question {
	questions := []deck.Question{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return questions
	}
	for _, item := range items {
		var q deck.Question
		if json.Unmarshal(item, &q) != nil || q.Field == "" {
			continue
		}
		questions = append(questions, q)
	}
	return questions
}

func decodeAssumptions(raw json.RawMessage) deck.Assumptions {
	out := deck.DefaultAssumptions()
	var got struct {
		NumberOfSlides json.RawMessage `json:"numberOfSlides"`
		Audience       *string         `json:"audience"`
		Style          *string         `json:"style"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &got) != nil {
		return out
	}
	if f, ok := slideCount(got.NumberOfSlides); ok {
		out.NumberOfSlides = roundClamp(f)
	}
	if got.Audience != nil && strings.TrimSpace(*got.Audience) != "" {
		out.Audience = *got.Audience
	}
	if got.Style != nil {
		if st, ok := deck.ParseStyle(*got.Style); ok {
			out.Style = st
		}
	}
	return out
}

// slideCount reads a JSON number or numeric string. null, absent and
// non-numeric values report false.
func slideCount(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// roundClamp rounds a model-supplied slide count into [MinAnalyzed, MaxAnalyzed].
func roundClamp(f float64) int {
	f = math.Max(deck.MinAnalyzed, math.Min(deck.MaxAnalyzed, f))
	return int(math.Round(f))
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}
