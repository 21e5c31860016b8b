package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/deck"
	"slidesmith-backend/internal/llm"
	"slidesmith-backend/internal/llm/llmtest"
	"slidesmith-backend/internal/logger"
	"slidesmith-backend/internal/prompts"
)

func newGenerator(t *testing.T, s llm.Streamer) *Generator {
	t.Helper()
	return New(s, prompts.Default(), deck.ModeBalanced, llm.ProviderOpenAI, logger.NewTestLogger(t))
}

func q3Request() deck.GenerationRequest {
	return deck.GenerationRequest{
		Topic:          "Q3 Results",
		NumberOfSlides: 4,
		Audience:       "executives",
		Style:          deck.StyleProfessional,
	}
}

func TestGenerateDeck(t *testing.T) {
	s := llmtest.Reply(
		"```json\n{\"title\":\"Q3 Results\",\"summary\":\"Quarter in review\",\"slides\":[",
		`{"title":"Q3 Results"},{"title":"Revenue","bullets":["+12%"]},`,
		`{"title":"Outlook","layout":"section"},{"title":"Thank you"}]}`,
		"\n```",
	)
	g := newGenerator(t, s)

	doc, err := g.GenerateDeck(context.Background(), q3Request())
	require.NoError(t, err)

	assert.Equal(t, "Q3 Results", doc.Title)
	require.Len(t, doc.Slides, 4)
	layouts := []deck.Layout{doc.Slides[0].Layout, doc.Slides[1].Layout, doc.Slides[2].Layout, doc.Slides[3].Layout}
	assert.Equal(t, []deck.Layout{deck.LayoutTitle, deck.LayoutContent, deck.LayoutSection, deck.LayoutClosing}, layouts)

	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.ProviderOpenAI, calls[0].Provider)
	assert.Contains(t, calls[0].UserPrompt, `Create a 4-slide presentation about: "Q3 Results"`)
	assert.Contains(t, calls[0].UserPrompt, "Target audience: executives")
	assert.Contains(t, calls[0].SystemPrompt, `"slides"`)
}

func TestStreamDeckContent_ValidatesBeforeCalling(t *testing.T) {
	s := llmtest.Reply("{}")
	g := newGenerator(t, s)

	req := q3Request()
	req.NumberOfSlides = 25
	seq, err := g.StreamDeckContent(context.Background(), req)
	assert.Nil(t, seq)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, s.Calls())
}

func TestStreamDeckContent_UnknownProvider(t *testing.T) {
	s := llmtest.Reply("{}")
	g := newGenerator(t, s)

	req := q3Request()
	req.ModelProvider = "mistral"
	_, err := g.StreamDeckContent(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, s.Calls())
}

func TestGenerateDeck_MalformedOutput(t *testing.T) {
	g := newGenerator(t, llmtest.Reply(`{"summary":"no title here","slides":[]}`))
	_, err := g.GenerateDeck(context.Background(), q3Request())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindMalformed))
}

func TestPrompt_StructuringVariant(t *testing.T) {
	g := newGenerator(t, llmtest.New())
	req := deck.GenerationRequest{
		Topic:          "Revenue",
		NumberOfSlides: 1,
		Audience:       "board",
		Style:          deck.StyleMinimal,
		UserContent:    "Revenue grew 12% to $4.1B.",
		HasUserContent: true,
	}

	system, user := g.Prompt(req)
	assert.Contains(t, system, "STRUCTURE the supplied content")
	assert.Contains(t, user, "Structure the following content into 1 slide.")
	assert.Contains(t, user, "\"\"\"\nRevenue grew 12% to $4.1B.\n\"\"\"")
	assert.Contains(t, user, `layout "content"`)

	_, topicUser := g.Prompt(q3Request())
	assert.NotContains(t, topicUser, "Content:")
	assert.Contains(t, topicUser, `Last slide: layout "closing"`)
}

func TestGenerateDeck_SingleSlideFromContent(t *testing.T) {
	g := newGenerator(t, llmtest.Reply(`{"title":"Revenue","summary":"","slides":[{"title":"Revenue","layout":"content","bullets":["Revenue grew 12% to $4.1B."]}]}`))
	doc, err := g.GenerateDeck(context.Background(), deck.GenerationRequest{
		Topic:          "Revenue",
		NumberOfSlides: 1,
		Audience:       "board",
		Style:          deck.StyleMinimal,
		UserContent:    "Revenue grew 12% to $4.1B.",
		HasUserContent: true,
	})
	require.NoError(t, err)
	require.Len(t, doc.Slides, 1)
	assert.Equal(t, deck.LayoutContent, doc.Slides[0].Layout)
}
