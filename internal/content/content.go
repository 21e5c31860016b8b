// Package content drives the deck-content completion.
package content

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/prompts"
)

type Generator struct {
	streamer        llm.Streamer
	topic           prompts.Spec
	structure       prompts.Spec
	mode            deck.Mode
	defaultProvider llm.ProviderID
	log             logger.Logger
}

func New(streamer llm.Streamer, set *prompts.Set, mode deck.Mode, defaultProvider llm.ProviderID, log logger.Logger) *Generator {
	return &Generator{
		streamer:        streamer,
		topic:           set.Content,
		structure:       set.ContentRaw,
		mode:            mode,
		defaultProvider: defaultProvider,
		log:             log.With(map[string]interface{}{"component": "content"}),
	}
}

func (g *Generator) DefaultProvider() llm.ProviderID { return g.defaultProvider }

// StreamDeckContent validates req and starts the content completion. The
// fragments concatenate to the deck JSON text.
func (g *Generator) StreamDeckContent(ctx context.Context, req deck.GenerationRequest) (iter.Seq2[string, error], error) {
	req = req.WithDefaults(g.defaultProvider)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	system, user := g.Prompt(req)
	g.log.Debug("streaming deck content", map[string]interface{}{
		"provider":       string(req.ModelProvider),
		"numberOfSlides": req.NumberOfSlides,
		"hasUserContent": req.HasUserContent,
	})
	return g.streamer.StreamCompletion(ctx, req.ModelProvider, system, user)
}

// GenerateDeck drains the content stream and parses it.
func (g *Generator) GenerateDeck(ctx context.Context, req deck.GenerationRequest) (*deck.DeckDocument, error) {
	seq, err := g.StreamDeckContent(ctx, req)
	if err != nil {
		return nil, err
	}
	text, err := llm.Collect(seq)
	if err != nil {
		return nil, err
	}
	return g.Parse(text)
}

// Parse turns collected content output into a normalized deck.
func (g *Generator) Parse(text string) (*deck.DeckDocument, error) {
	return deck.ParseDeck(text, g.mode)
}

// Prompt returns the system and user instructions for req. Pasted content
// selects the structuring variant.
func (g *Generator) Prompt(req deck.GenerationRequest) (string, string) {
	var b strings.Builder
	spec := g.topic
	if req.HasUserContent {
		spec = g.structure
		noun := "slides"
		if req.NumberOfSlides == 1 {
			noun = "slide"
		}
		fmt.Fprintf(&b, "Structure the following content into %d %s.\n", req.NumberOfSlides, noun)
		fmt.Fprintf(&b, "Working title: %q\n", req.Topic)
	} else {
		fmt.Fprintf(&b, "Create a %d-slide presentation about: %q\n", req.NumberOfSlides, req.Topic)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Target audience: %s\n", req.Audience)
	fmt.Fprintf(&b, "Presentation style (for tone and content choice): %s\n", req.Style)
	if req.AdditionalInstructions != "" {
		fmt.Fprintf(&b, "Additional requirements: %s\n", req.AdditionalInstructions)
	}
	if req.HasUserContent {
		b.WriteString("\nContent:\n\"\"\"\n")
		b.WriteString(req.UserContent)
		b.WriteString("\n\"\"\"\n")
	}
	if rules := spec.RulesBlock(); rules != "" {
		b.WriteString("\n")
		b.WriteString(rules)
	}
	return spec.System, b.String()
}
