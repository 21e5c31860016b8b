// Package pipeline runs the generation stages in order and reports their
// progress into a caller-owned Progress.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"slidesmith-backend/internal/analyzer"
	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/assemble"
	"slidesmith-backend/internal/content"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/metrics"
	"slidesmith-backend/internal/observability"
	"slidesmith-backend/internal/render"
)

type Pipeline struct {
	analyzer *analyzer.Analyzer
	content  *content.Generator
	renderer *render.Renderer
	log      logger.Logger
}

func New(a *analyzer.Analyzer, c *content.Generator, r *render.Renderer, log logger.Logger) *Pipeline {
	return &Pipeline{
		analyzer: a,
		content:  c,
		renderer: r,
		log:      log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

type Options struct {
	// AllowPartial assembles the slides that rendered and drops the rest
	// instead of failing the run.
	AllowPartial bool
}

// Result holds everything a run produced, including per-slide outcomes
// when rendering failed.
type Result struct {
	Request  deck.GenerationRequest `json:"request"`
	Deck     *deck.DeckDocument     `json:"deck,omitempty"`
	Slides   []render.SlideResult   `json:"-"`
	Rendered []deck.RenderedSlide   `json:"slides,omitempty"`
	Document string                 `json:"document,omitempty"`
}

// Analyze runs the analysis stage. On success progress waits for answers.
func (p *Pipeline) Analyze(ctx context.Context, prompt string, provider llm.ProviderID, progress *Progress) (*deck.PromptAnalysisResult, error) {
	progress.Reset()
	progress.setStage(StageAnalyzing)

	ctx, span := observability.StartSpan(ctx, "pipeline.analyze", attribute.String("provider", string(provider)))
	defer span.End()

	done := p.timeStage(StageAnalyzing)
	res, err := p.analyzer.Analyze(ctx, prompt, provider)
	done()
	if err != nil {
		p.fail(ctx, progress, StageAnalyzing, err)
		return nil, err
	}
	progress.setStage(StageAwaitingAnswers)
	return res, nil
}

// Run generates content, renders every slide and assembles the document.
// A failure at any stage leaves progress failed with earlier output intact.
func (p *Pipeline) Run(ctx context.Context, req deck.GenerationRequest, progress *Progress, opts Options) (*Result, error) {
	progress.Reset()
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	req = req.WithDefaults(p.content.DefaultProvider())
	result := &Result{Request: req}

	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.String("provider", string(req.ModelProvider)),
		attribute.Int("slides.requested", req.NumberOfSlides),
	)
	defer span.End()

	doc, err := p.generateContent(ctx, req, progress)
	if err != nil {
		p.fail(ctx, progress, StageGeneratingContent, err)
		return result, err
	}
	result.Deck = doc

	progress.startRendering(len(doc.Slides))
	observability.AddSpanEvent(ctx, "rendering", attribute.Int("slides.total", len(doc.Slides)))
	done := p.timeStage(StageRenderingSlides)
	result.Slides = p.renderer.RenderAll(ctx, doc, req.Style, req.ModelProvider, progress)
	done()

	rendered, err := render.Join(result.Slides)
	result.Rendered = rendered
	if err != nil {
		if !opts.AllowPartial {
			p.fail(ctx, progress, StageRenderingSlides, err)
			return result, err
		}
		p.log.Warn("assembling partial deck", map[string]interface{}{
			"rendered": len(rendered),
			"total":    len(doc.Slides),
		})
	}

	progress.setStage(StageAssembling)
	result.Document = assemble.Assemble(render.Markups(rendered))
	progress.setStage(StageReady)

	p.log.Info("deck ready", map[string]interface{}{
		"provider": string(req.ModelProvider),
		"slides":   len(rendered),
	})
	return result, nil
}

func (p *Pipeline) generateContent(ctx context.Context, req deck.GenerationRequest, progress *Progress) (*deck.DeckDocument, error) {
	progress.setStage(StageGeneratingContent)
	defer p.timeStage(StageGeneratingContent)()

	seq, err := p.content.StreamDeckContent(ctx, req)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for text, err := range seq {
		if err != nil {
			return nil, err
		}
		b.WriteString(text)
		progress.appendContent(text)
	}
	return p.content.Parse(b.String())
}

func (p *Pipeline) fail(ctx context.Context, progress *Progress, stage Stage, err error) {
	progress.fail(err)
	observability.RecordError(ctx, err)
	metrics.StageFailuresTotal.WithLabelValues(string(stage), string(apperr.KindOf(err))).Inc()
	p.log.WithError(err).Error("pipeline stage failed", map[string]interface{}{
		"stage": string(stage),
	})
}

func (p *Pipeline) timeStage(stage Stage) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}
