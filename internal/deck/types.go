// Package deck holds the data model shared by every generation stage and
// the parser that turns model output into it.
package deck

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"slidesmith-backend/internal/llm"
)

type Style string

const (
	StyleProfessional Style = "professional"
	StyleCreative     Style = "creative"
	StyleMinimal      Style = "minimal"
	StyleCorporate    Style = "corporate"
)

var Styles = []Style{StyleProfessional, StyleCreative, StyleMinimal, StyleCorporate}

// ParseStyle reports whether s names one of the four allowed styles.
func ParseStyle(s string) (Style, bool) {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Styles {
		if st == known {
			return st, true
		}
	}
	return "", false
}

type Layout string

const (
	LayoutTitle   Layout = "title"
	LayoutSection Layout = "section"
	LayoutClosing Layout = "closing"
	LayoutContent Layout = "content"
)

const (
	MinSlides       = 3
	MaxSlides       = 20
	MaxAnalyzed     = 20
	MinAnalyzed     = 1
	DefaultTopic    = "Untitled Presentation"
	DefaultAudience = "general business audience"
	DefaultSlides   = 8
	DefaultStyle    = StyleProfessional
)

// GenerationRequest is the fully specified input to content generation.
type GenerationRequest struct {
	Topic                  string         `json:"topic" validate:"notblank"`
	NumberOfSlides         int            `json:"numberOfSlides"`
	Audience               string         `json:"audience" validate:"notblank"`
	Style                  Style          `json:"style" validate:"required,oneof=professional creative minimal corporate"`
	AdditionalInstructions string         `json:"additionalInstructions,omitempty"`
	ModelProvider          llm.ProviderID `json:"modelProvider,omitempty" validate:"omitempty,oneof=openai gemini anthropic"`
	UserContent            string         `json:"userContent,omitempty"`
	HasUserContent         bool           `json:"hasUserContent"`
}

// Question is one clarification the analyzer wants answered.
type Question struct {
	Field    string       `json:"field"`
	Question string       `json:"question"`
	Options  []string     `json:"options,omitempty"`
	Default  DefaultValue `json:"default"`
}

// DefaultValue is a question default, either text or a whole number.
type DefaultValue struct {
	Text  string
	Int   int
	IsInt bool
}

func TextDefault(s string) DefaultValue { return DefaultValue{Text: s} }
func IntDefault(n int) DefaultValue     { return DefaultValue{Int: n, IsInt: true} }

func (d DefaultValue) String() string {
	if d.IsInt {
		return strconv.Itoa(d.Int)
	}
	return d.Text
}

func (d DefaultValue) MarshalJSON() ([]byte, error) {
	if d.IsInt {
		return json.Marshal(d.Int)
	}
	return json.Marshal(d.Text)
}

func (d *DefaultValue) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*d = DefaultValue{}
	case string:
		*d = TextDefault(t)
	case float64:
		*d = IntDefault(int(math.Round(t)))
	case bool:
		*d = TextDefault(strconv.FormatBool(t))
	default:
		return fmt.Errorf("question default must be a string or number, got %s", string(data))
	}
	return nil
}

// Assumptions are the values used for anything the user leaves unanswered.
type Assumptions struct {
	NumberOfSlides int    `json:"numberOfSlides"`
	Audience       string `json:"audience"`
	Style          Style  `json:"style"`
}

func DefaultAssumptions() Assumptions {
	return Assumptions{
		NumberOfSlides: DefaultSlides,
		Audience:       DefaultAudience,
		Style:          DefaultStyle,
	}
}

// PromptAnalysisResult is the structured reading of a free-form prompt.
// Nil pointers mean the prompt did not specify the value.
type PromptAnalysisResult struct {
	HasUserContent bool        `json:"hasUserContent"`
	Topic          string      `json:"topic"`
	UserContent    *string     `json:"userContent"`
	NumberOfSlides *int        `json:"numberOfSlides"`
	Audience       *string     `json:"audience"`
	Style          *Style      `json:"style"`
	Questions      []Question  `json:"questions"`
	Assumptions    Assumptions `json:"assumptions"`
}

// DeckDocument is the parsed output of content generation.
type DeckDocument struct {
	Title   string            `json:"title"`
	Summary string            `json:"summary"`
	Slides  []SlideDescriptor `json:"slides"`
}

// RenderedSlide is one slide's final markup. Treat as immutable.
type RenderedSlide struct {
	Index  int    `json:"index"`
	Markup string `json:"html"`
}
