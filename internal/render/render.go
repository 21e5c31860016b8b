// Package render turns slide descriptors into slide markup, one model
// completion per slide, and runs a whole deck's renders concurrently.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"golang.org/x/sync/errgroup"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/metrics"
	"slidesmith-backend/internal/prompts"
)

type Renderer struct {
	streamer    llm.Streamer
	spec        prompts.Spec
	maxParallel int
	log         logger.Logger
}

func New(streamer llm.Streamer, spec prompts.Spec, maxParallel int, log logger.Logger) *Renderer {
	if maxParallel <= 0 {
		maxParallel = deck.MaxSlides
	}
	return &Renderer{
		streamer:    streamer,
		spec:        spec,
		maxParallel: maxParallel,
		log:         log.With(map[string]interface{}{"component": "render"}),
	}
}

// Target identifies one slide render.
type Target struct {
	Slide     deck.SlideDescriptor
	Style     deck.Style
	Index     int
	DeckTitle string
	Provider  llm.ProviderID
}

// StreamSlideMarkup starts the completion for one slide. Fragments are the
// raw model output; use NormalizeMarkup on the concatenation.
func (r *Renderer) StreamSlideMarkup(ctx context.Context, t Target) (iter.Seq2[string, error], error) {
	if t.Index < 0 {
		return nil, apperr.NewValidationError("slide index must be >= 0")
	}
	user, err := r.userPrompt(t)
	if err != nil {
		return nil, err
	}
	return r.streamer.StreamCompletion(ctx, t.Provider, r.spec.System, user)
}

// RenderSlide collects and normalizes one slide.
func (r *Renderer) RenderSlide(ctx context.Context, t Target) (*deck.RenderedSlide, error) {
	seq, err := r.StreamSlideMarkup(ctx, t)
	if err != nil {
		return nil, err
	}
	text, err := llm.Collect(seq)
	if err != nil {
		return nil, err
	}
	return &deck.RenderedSlide{Index: t.Index, Markup: NormalizeMarkup(text, t.Index)}, nil
}

func (r *Renderer) userPrompt(t Target) (string, error) {
	content, err := json.MarshalIndent(t.Slide, "", "  ")
	if err != nil {
		return "", apperr.NewValidationError(fmt.Sprintf("slide %d cannot be encoded: %v", t.Index, err))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Presentation style: %s\n", t.Style)
	fmt.Fprintf(&b, "Presentation title: %s\n", t.DeckTitle)
	fmt.Fprintf(&b, "Slide index (0-based): %d\n\n", t.Index)
	b.WriteString("Slide content (JSON):\n")
	b.Write(content)
	b.WriteString("\n\n")
	b.WriteString(r.spec.Footer)
	return b.String(), nil
}

// Observer receives fan-out progress. Calls for different slides may arrive
// concurrently; calls for one slide arrive in order.
type Observer interface {
	SlideFragment(index int, text string)
	SlideDone(index int, err error)
}

type nopObserver struct{}

func (nopObserver) SlideFragment(int, string) {}
func (nopObserver) SlideDone(int, error)      {}

// SlideResult is one index slot of a fan-out: exactly one of Slide and Err is set.
type SlideResult struct {
	Index int
	Slide *deck.RenderedSlide
	Err   error
}

// RenderAll renders every slide of doc concurrently and returns once all of
// them have finished. Results are in index order; a failed slide never
// affects its siblings.
func (r *Renderer) RenderAll(ctx context.Context, doc *deck.DeckDocument, style deck.Style, provider llm.ProviderID, obs Observer) []SlideResult {
	if obs == nil {
		obs = nopObserver{}
	}
	results := make([]SlideResult, len(doc.Slides))

	var g errgroup.Group
	g.SetLimit(r.maxParallel)
	for i := range doc.Slides {
		t := Target{Slide: doc.Slides[i], Style: style, Index: i, DeckTitle: doc.Title, Provider: provider}
		g.Go(func() error {
			slide, err := r.renderObserved(ctx, t, obs)
			results[i] = SlideResult{Index: i, Slide: slide, Err: err}
			obs.SlideDone(i, err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Renderer) renderObserved(ctx context.Context, t Target, obs Observer) (*deck.RenderedSlide, error) {
	seq, err := r.StreamSlideMarkup(ctx, t)
	if err != nil {
		r.recordFailure(t.Index, err)
		return nil, err
	}
	var b strings.Builder
	for text, err := range seq {
		if err != nil {
			r.recordFailure(t.Index, err)
			return nil, err
		}
		b.WriteString(text)
		obs.SlideFragment(t.Index, text)
	}
	metrics.SlidesRenderedTotal.WithLabelValues("success").Inc()
	return &deck.RenderedSlide{Index: t.Index, Markup: NormalizeMarkup(b.String(), t.Index)}, nil
}

func (r *Renderer) recordFailure(index int, err error) {
	metrics.SlidesRenderedTotal.WithLabelValues("failure").Inc()
	r.log.Warn("slide render failed", map[string]interface{}{
		"index": index,
		"error": err.Error(),
	})
}

// Join splits fan-out results into the rendered slides, in index order, and
// a SlideRenderError naming every failed index (nil when all succeeded).
func Join(results []SlideResult) ([]deck.RenderedSlide, error) {
	slides := make([]deck.RenderedSlide, 0, len(results))
	var failed []int
	var first error
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.Index)
			if first == nil {
				first = res.Err
			}
			continue
		}
		slides = append(slides, *res.Slide)
	}
	if len(failed) > 0 {
		return slides, apperr.NewSlideRenderError(failed, first)
	}
	return slides, nil
}

// Markups returns the markup of each slide in the given order.
func Markups(slides []deck.RenderedSlide) []string {
	out := make([]string, len(slides))
	for i, s := range slides {
		out[i] = s.Markup
	}
	return out
}
