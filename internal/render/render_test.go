package render

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/assemble"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/llm/llmtest"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/prompts"
)

var indexLine = regexp.MustCompile(`Slide index \(0-based\): (\d+)`)

func promptIndex(user string) int {
	m := indexLine.FindStringSubmatch(user)
	if m == nil {
		return -1
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// gatedStreamer holds each slide's completion until its gate is closed.
type gatedStreamer struct {
	gates []chan struct{}
}

func (g *gatedStreamer) StreamCompletion(_ context.Context, _ llm.ProviderID, _, user string) (iter.Seq2[string, error], error) {
	idx := promptIndex(user)
	return func(yield func(string, error) bool) {
		<-g.gates[idx]
		if !yield(`<div class="slide">`, nil) {
			return
		}
		yield(fmt.Sprintf("S%d</div>", idx), nil)
	}, nil
}

type recorder struct {
	mu        sync.Mutex
	fragments map[int]string
	errs      map[int]error
	done      chan int
}

func newRecorder(n int) *recorder {
	return &recorder{fragments: map[int]string{}, errs: map[int]error{}, done: make(chan int, n)}
}

func (r *recorder) SlideFragment(index int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments[index] += text
}

func (r *recorder) SlideDone(index int, err error) {
	r.mu.Lock()
	r.errs[index] = err
	r.mu.Unlock()
	r.done <- index
}

func testDeck(n int) *deck.DeckDocument {
	doc := &deck.DeckDocument{Title: "Deck"}
	for i := 0; i < n; i++ {
		doc.Slides = append(doc.Slides, deck.SlideDescriptor{Title: fmt.Sprintf("S%d", i)})
	}
	deck.NormalizeDeck(doc)
	return doc
}

func newRenderer(t *testing.T, s llm.Streamer, parallel int) *Renderer {
	t.Helper()
	return New(s, prompts.Default().Slide, parallel, logger.NewTestLogger(t))
}

func TestRenderAll_OutOfOrderCompletion(t *testing.T) {
	order := []int{3, 1, 4, 0, 2}
	gs := &gatedStreamer{gates: make([]chan struct{}, len(order))}
	for i := range gs.gates {
		gs.gates[i] = make(chan struct{})
	}
	r := newRenderer(t, gs, 5)
	rec := newRecorder(len(order))

	var results []SlideResult
	finished := make(chan struct{})
	go func() {
		results = r.RenderAll(context.Background(), testDeck(5), deck.StyleProfessional, llm.ProviderGemini, rec)
		close(finished)
	}()

	for _, idx := range order {
		close(gs.gates[idx])
		select {
		case got := <-rec.done:
			assert.Equal(t, idx, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("slide %d never finished", idx)
		}
	}
	<-finished

	slides, err := Join(results)
	require.NoError(t, err)
	require.Len(t, slides, 5)

	doc := assemble.Assemble(Markups(slides))
	last := -1
	for i := 0; i < 5; i++ {
		pos := strings.Index(doc, fmt.Sprintf(`data-slide-index="%d"`, i))
		require.GreaterOrEqual(t, pos, 0, "slide %d missing", i)
		assert.Greater(t, pos, last, "slide %d out of order", i)
		last = pos
	}
	assert.Equal(t, `<div class="slide">S3</div>`, rec.fragments[3])
}

func TestRenderAll_FailureStaysInItsSlot(t *testing.T) {
	boom := errors.New("rate limited")
	s := llmtest.New().
		On("Slide index (0-based): 2", llmtest.Script{Fragments: []string{"<div"}, Err: boom})
	s.Default = &llmtest.Script{Fragments: []string{`<div class="slide">ok</div>`}}
	r := newRenderer(t, s, 2)
	rec := newRecorder(4)

	results := r.RenderAll(context.Background(), testDeck(4), deck.StyleMinimal, llm.ProviderOpenAI, rec)
	require.Len(t, results, 4)
	assert.Len(t, s.Calls(), 4)

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		if i == 2 {
			assert.Nil(t, res.Slide)
			assert.ErrorIs(t, res.Err, boom)
			continue
		}
		require.NoError(t, res.Err)
		assert.Equal(t, fmt.Sprintf(`<div class="slide" data-slide-index="%d">ok</div>`, i), res.Slide.Markup)
	}

	slides, err := Join(results)
	assert.Len(t, slides, 3)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindSlideRender))
	assert.Contains(t, err.Error(), "[2]")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, rec.errs[2], boom)
}

func TestRenderSlide_PromptCarriesDescriptorVerbatim(t *testing.T) {
	s := llmtest.Reply("```html\n<h2>Revenue</h2>\n```")
	r := newRenderer(t, s, 1)
	slide := deck.SlideDescriptor{Title: "Revenue", Layout: deck.LayoutContent, Bullets: []string{"+12%"}}

	got, err := r.RenderSlide(context.Background(), Target{Slide: slide, Style: deck.StyleCorporate, Index: 1, DeckTitle: "Q3", Provider: llm.ProviderGemini})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)
	assert.Equal(t, `<div class="slide" data-slide-index="1" style="`+wrapperStyle+`"><h2>Revenue</h2></div>`, got.Markup)

	calls := s.Calls()
	require.Len(t, calls, 1)
	user := calls[0].UserPrompt
	assert.Contains(t, user, "Presentation style: corporate")
	assert.Contains(t, user, "Presentation title: Q3")
	assert.Equal(t, 1, promptIndex(user))
	assert.Contains(t, user, `"bullets": [`)
	assert.Contains(t, user, `"+12%"`)
}

func TestStreamSlideMarkup_NegativeIndex(t *testing.T) {
	r := newRenderer(t, llmtest.Reply("x"), 1)
	_, err := r.StreamSlideMarkup(context.Background(), Target{Index: -1, Provider: llm.ProviderGemini})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
