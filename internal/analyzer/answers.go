package analyzer

import (
	"strconv"
	"strings"
	"unicode"

	"slidesmith-backend/internal/deck"
)

// Answer keys understood by ApplyAnswers. They match Question.Field.
const (
	FieldNumberOfSlides         = "numberOfSlides"
	FieldAudience               = "audience"
	FieldStyle                  = "style"
	FieldTopic                  = "topic"
	FieldAdditionalInstructions = "additionalInstructions"
)

// ApplyAnswers builds the generation request for an analysis. For every
// field an answer wins over an explicit analysis value, which wins over the
// assumption. The provider is left for the caller to choose.
func ApplyAnswers(res deck.PromptAnalysisResult, answers map[string]string) deck.GenerationRequest {
	answer := func(key string) (string, bool) {
		v, ok := answers[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	req := deck.GenerationRequest{
		Topic:    res.Topic,
		Audience: firstNonEmpty(deref(res.Audience), res.Assumptions.Audience, deck.DefaultAudience),
		Style:    deck.DefaultStyle,
	}
	if v, ok := answer(FieldTopic); ok {
		req.Topic = v
	}
	if v, ok := answer(FieldAudience); ok {
		req.Audience = v
	}
	if v, ok := answer(FieldAdditionalInstructions); ok {
		req.AdditionalInstructions = v
	}

	switch {
	case res.Style != nil:
		req.Style = *res.Style
	case res.Assumptions.Style != "":
		req.Style = res.Assumptions.Style
	}
	if v, ok := answer(FieldStyle); ok {
		if st, valid := deck.ParseStyle(v); valid {
			req.Style = st
		}
	}

	if res.UserContent != nil && strings.TrimSpace(*res.UserContent) != "" {
		req.UserContent = *res.UserContent
		req.HasUserContent = res.HasUserContent
	}

	n := res.Assumptions.NumberOfSlides
	if res.NumberOfSlides != nil {
		n = *res.NumberOfSlides
	}
	if v, ok := answer(FieldNumberOfSlides); ok {
		if parsed, valid := leadingInt(v); valid {
			n = parsed
		}
	}
	if !(req.HasUserContent && n == 1) {
		n = clamp(n, deck.MinSlides, deck.MaxSlides)
	}
	req.NumberOfSlides = n
	return req
}

// leadingInt reads the number at the start of answers like "10" or "10 slides".
func leadingInt(s string) (int, bool) {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end < 0 {
		end = len(s)
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
