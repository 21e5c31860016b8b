package llm

import (
	"context"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/config"
)

// converseEvents is the part of *bedrockruntime.ConverseStreamEventStream we consume.
type converseEvents interface {
	Events() <-chan types.ConverseStreamOutput
	Err() error
	Close() error
}

type bedrockBackend struct {
	modelID   string
	maxTokens int32
	open      func(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (converseEvents, error)
}

// newBedrockBackend uses the default AWS credential chain, which also
// honours AWS_BEARER_TOKEN_BEDROCK. Without a bearer token the chain must
// resolve credentials now, so a missing setup fails before any stream opens.
func newBedrockBackend(ctx context.Context, cfg config.Config) (*bedrockBackend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, apperr.NewProviderNotConfiguredError(string(ProviderAnthropic), err.Error())
	}
	if cfg.BedrockBearerToken == "" {
		if awsCfg.Credentials == nil {
			return nil, apperr.NewProviderNotConfiguredError(string(ProviderAnthropic), "no AWS credentials found")
		}
		if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
			return nil, apperr.NewProviderNotConfiguredError(string(ProviderAnthropic), "no AWS credentials found: "+err.Error())
		}
	}
	client := bedrockruntime.NewFromConfig(awsCfg)
	return &bedrockBackend{
		modelID:   cfg.BedrockModelID,
		maxTokens: int32(cfg.BedrockMaxTokens),
		open: func(ctx context.Context, in *bedrockruntime.ConverseStreamInput) (converseEvents, error) {
			out, err := client.ConverseStream(ctx, in)
			if err != nil {
				return nil, err
			}
			return out.GetStream(), nil
		},
	}, nil
}

func (b *bedrockBackend) stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error] {
	in := &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(b.modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: userPrompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(b.maxTokens)},
	}
	return func(yield func(string, error) bool) {
		events, err := b.open(ctx, in)
		if err != nil {
			yield("", err)
			return
		}
		defer events.Close()
		for ev := range events.Events() {
			text, ok := bedrockText(ev)
			if !ok {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
		if err := events.Err(); err != nil {
			yield("", err)
		}
	}
}

// bedrockText keeps only text deltas of content blocks.
func bedrockText(ev types.ConverseStreamOutput) (string, bool) {
	delta, ok := ev.(*types.ConverseStreamOutputMemberContentBlockDelta)
	if !ok {
		return "", false
	}
	text, ok := delta.Value.Delta.(*types.ContentBlockDeltaMemberText)
	if !ok || text.Value == "" {
		return "", false
	}
	return text.Value, true
}
