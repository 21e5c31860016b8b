package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/llm"
)

func validRequest() GenerationRequest {
	return GenerationRequest{
		Topic:          "Q3 Results",
		NumberOfSlides: 4,
		Audience:       "executives",
		Style:          StyleProfessional,
		ModelProvider:  llm.ProviderGemini,
	}
}

func TestGenerationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GenerationRequest)
		wantErr string
	}{
		{"valid", func(*GenerationRequest) {}, ""},
		{"provider optional", func(r *GenerationRequest) { r.ModelProvider = "" }, ""},
		{"blank topic", func(r *GenerationRequest) { r.Topic = "  " }, "topic is required"},
		{"missing audience", func(r *GenerationRequest) { r.Audience = "" }, "audience is required"},
		{"unknown style", func(r *GenerationRequest) { r.Style = "playful" }, "style must be one of"},
		{"unknown provider", func(r *GenerationRequest) { r.ModelProvider = "mistral" }, "modelProvider must be one of"},
		{"too few slides", func(r *GenerationRequest) { r.NumberOfSlides = 2 }, "numberOfSlides must be between 3 and 20"},
		{"too many slides", func(r *GenerationRequest) { r.NumberOfSlides = 21 }, "numberOfSlides must be between 3 and 20"},
		{"one slide without content", func(r *GenerationRequest) { r.NumberOfSlides = 1 }, "numberOfSlides must be between 3 and 20"},
		{"one slide from content", func(r *GenerationRequest) {
			r.NumberOfSlides = 1
			r.HasUserContent = true
			r.UserContent = "Revenue grew 12%."
		}, ""},
		{"content flagged but empty", func(r *GenerationRequest) {
			r.HasUserContent = true
		}, "userContent is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerationRequest_WithDefaults(t *testing.T) {
	req := validRequest()
	req.ModelProvider = ""
	assert.Equal(t, llm.ProviderOpenAI, req.WithDefaults(llm.ProviderOpenAI).ModelProvider)

	req.ModelProvider = llm.ProviderAnthropic
	assert.Equal(t, llm.ProviderAnthropic, req.WithDefaults(llm.ProviderOpenAI).ModelProvider)
}
