package types

import (
	"time"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/pipeline"
)

type AnalyzeRequest struct {
	Prompt        string `json:"prompt"`
	ModelProvider string `json:"modelProvider,omitempty"`
}

// AnswersRequest carries the user's replies keyed by Question.Field.
// Values may be strings or numbers.
type AnswersRequest struct {
	Answers       map[string]any `json:"answers"`
	ModelProvider string         `json:"modelProvider,omitempty"`
}

type SlideHTMLRequest struct {
	SlideContent      *deck.SlideDescriptor `json:"slideContent"`
	Style             string                `json:"style,omitempty"`
	Index             *int                  `json:"index"`
	PresentationTitle string                `json:"presentationTitle,omitempty"`
	ModelProvider     string                `json:"modelProvider,omitempty"`
}

type HTMLResponse struct {
	HTML string `json:"html"`
}

type AssembleRequest struct {
	Slides []string `json:"slides"`
}

type RunRequest struct {
	deck.GenerationRequest
	AllowPartial bool `json:"allowPartial,omitempty"`
}

type RunCreatedResponse struct {
	RunID string `json:"runId"`
}

// RunResponse reports a run. Slides holds the normalized markup of every
// slide that rendered, also when the run failed on other slides.
type RunResponse struct {
	RunID      string               `json:"runId"`
	Done       bool                 `json:"done"`
	Progress   pipeline.Snapshot    `json:"progress"`
	Deck       *deck.DeckDocument   `json:"deck,omitempty"`
	Slides     []deck.RenderedSlide `json:"slides,omitempty"`
	HTML       string               `json:"html,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	FinishedAt *time.Time           `json:"finishedAt,omitempty"`
}

type ErrorResponse struct {
	Error     string           `json:"error"`
	Kind      apperr.Kind      `json:"kind,omitempty"`
	Code      apperr.ErrorCode `json:"code,omitempty"`
	Details   string           `json:"details,omitempty"`
	Provider  string           `json:"provider,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}
