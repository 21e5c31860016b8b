package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"slidesmith-backend/internal/analyzer"
	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/content"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/llm/llmtest"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/prompts"
	"slidesmith-backend/internal/render"
)

const q3Deck = `{"title":"Q3 Results","summary":"Quarter in review","slides":[` +
	`{"title":"Q3 Results"},{"title":"Revenue","bullets":["+12%"]},` +
	`{"title":"Costs","bullets":["-3%"]},{"title":"Thank you"}]}`

func newPipeline(t *testing.T, s llm.Streamer) *Pipeline {
	t.Helper()
	log := logger.NewTestLogger(t)
	set := prompts.Default()
	return New(
		analyzer.New(s, set.Analyzer, deck.ModeBalanced, llm.ProviderGemini, log),
		content.New(s, set, deck.ModeBalanced, llm.ProviderGemini, log),
		render.New(s, set.Slide, 4, log),
		log,
	)
}

func q3Request() deck.GenerationRequest {
	return deck.GenerationRequest{
		Topic:          "Q3 Results",
		NumberOfSlides: 4,
		Audience:       "executives",
		Style:          deck.StyleProfessional,
	}
}

// deckStreamer answers the content prompt with q3Deck split into fragments
// and every slide prompt with untagged slide markup.
func deckStreamer() *llmtest.Streamer {
	s := llmtest.New().On("Create a 4-slide presentation", llmtest.Script{
		Fragments: []string{q3Deck[:40], q3Deck[40:90], q3Deck[90:]},
	})
	s.Default = &llmtest.Script{Fragments: []string{`<div class="slide">`, `content</div>`}}
	return s
}

func TestRun_EndToEnd(t *testing.T) {
	s := deckStreamer()
	p := newPipeline(t, s)
	progress := NewProgress()

	res, err := p.Run(context.Background(), q3Request(), progress, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Q3 Results", res.Deck.Title)
	assert.Equal(t, llm.ProviderGemini, res.Request.ModelProvider)
	require.Len(t, res.Rendered, 4)

	doc := res.Document
	assert.Equal(t, 1, strings.Count(doc, "<style>"))
	assert.Equal(t, 4, strings.Count(doc, `<div class="slide"`))
	last := -1
	for i := 0; i < 4; i++ {
		pos := strings.Index(doc, fmt.Sprintf(`data-slide-index="%d"`, i))
		require.Greater(t, pos, last)
		last = pos
	}

	snap := progress.Snapshot()
	assert.Equal(t, StageReady, snap.Stage)
	assert.Equal(t, q3Deck, snap.StreamedContent)
	assert.Equal(t, 4, snap.CompletedSlides)
	assert.Equal(t, 4, snap.TotalSlides)
	assert.Equal(t, `<div class="slide">content</div>`, snap.LiveSlides[2])
	assert.Empty(t, snap.SlideErrors)
	assert.Len(t, s.Calls(), 5)
}

func TestRun_SlideFailureKeepsProgress(t *testing.T) {
	boom := errors.New("overloaded")
	s := deckStreamer().On("Slide index (0-based): 1", llmtest.Script{Err: boom})

	t.Run("fails the run", func(t *testing.T) {
		progress := NewProgress()
		res, err := newPipeline(t, s).Run(context.Background(), q3Request(), progress, Options{})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindSlideRender))

		require.NotNil(t, res)
		assert.Len(t, res.Rendered, 3)
		assert.Empty(t, res.Document)
		require.Len(t, res.Slides, 4)
		assert.ErrorIs(t, res.Slides[1].Err, boom)

		snap := progress.Snapshot()
		assert.Equal(t, StageFailed, snap.Stage)
		assert.Equal(t, apperr.KindSlideRender, snap.ErrorKind)
		assert.Equal(t, q3Deck, snap.StreamedContent)
		assert.Equal(t, 3, snap.CompletedSlides)
		assert.Equal(t, 4, snap.TotalSlides)
		assert.Contains(t, snap.SlideErrors[1], "overloaded")
	})

	t.Run("partial assembly", func(t *testing.T) {
		progress := NewProgress()
		res, err := newPipeline(t, s).Run(context.Background(), q3Request(), progress, Options{AllowPartial: true})
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(res.Document, `data-slide-index=`))
		assert.NotContains(t, res.Document, `data-slide-index="1"`)
		assert.Equal(t, StageReady, progress.Stage())
		assert.Contains(t, progress.Snapshot().SlideErrors, 1)
	})
}

func TestRun_Spans(t *testing.T) {
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, err := newPipeline(t, deckStreamer()).Run(context.Background(), q3Request(), NewProgress(), Options{})
	require.NoError(t, err)

	s := deckStreamer().On("Slide index (0-based): 2", llmtest.Script{Err: errors.New("overloaded")})
	_, err = newPipeline(t, s).Run(context.Background(), q3Request(), NewProgress(), Options{})
	require.Error(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	for _, span := range ended {
		assert.Equal(t, "pipeline.run", span.Name())
	}
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Contains(t, ended[1].Status().Description, "overloaded")
}

func TestRun_ContentFailures(t *testing.T) {
	t.Run("malformed content keeps streamed text", func(t *testing.T) {
		s := llmtest.Reply("Sorry, ", "I can't do that.")
		progress := NewProgress()
		_, err := newPipeline(t, s).Run(context.Background(), q3Request(), progress, Options{})
		assert.True(t, apperr.IsKind(err, apperr.KindMalformed))

		snap := progress.Snapshot()
		assert.Equal(t, StageFailed, snap.Stage)
		assert.Equal(t, "Sorry, I can't do that.", snap.StreamedContent)
		assert.Zero(t, snap.TotalSlides)
	})

	t.Run("invalid request never reaches a provider", func(t *testing.T) {
		s := deckStreamer()
		req := q3Request()
		req.Audience = ""
		progress := NewProgress()
		_, err := newPipeline(t, s).Run(context.Background(), req, progress, Options{})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		assert.Equal(t, StageFailed, progress.Stage())
		assert.Empty(t, s.Calls())
	})
}

func TestAnalyze_Stages(t *testing.T) {
	s := llmtest.Reply(`{"hasUserContent":false,"topic":"AI","numberOfSlides":null,"questions":[{"field":"numberOfSlides","question":"How many slides?","default":8}]}`)
	p := newPipeline(t, s)
	progress := NewProgress()

	res, err := p.Analyze(context.Background(), "a deck about AI", "", progress)
	require.NoError(t, err)
	assert.Equal(t, "AI", res.Topic)
	assert.Equal(t, StageAwaitingAnswers, progress.Stage())

	req := analyzer.ApplyAnswers(*res, map[string]string{analyzer.FieldNumberOfSlides: "5"})
	assert.Equal(t, 5, req.NumberOfSlides)

	_, err = p.Analyze(context.Background(), "", "", progress)
	assert.Equal(t, apperr.KindAnalysis, apperr.KindOf(err))
	assert.Equal(t, StageFailed, progress.Stage())
}

func TestProgress_ConcurrentReaders(t *testing.T) {
	p := newPipeline(t, deckStreamer())
	progress := NewProgress()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := progress.Snapshot()
				assert.GreaterOrEqual(t, snap.CompletedSlides, prev)
				prev = snap.CompletedSlides
			}
		}()
	}

	_, err := p.Run(context.Background(), q3Request(), progress, Options{})
	close(stop)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, 4, progress.Snapshot().CompletedSlides)
}
