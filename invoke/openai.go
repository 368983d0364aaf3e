package invoke

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures the OpenAI adapter. BaseURL also points it at
// OpenAI-compatible endpoints.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxOutputUnits int
	Pricing        Pricing
}

// OpenAI invokes the OpenAI API through the official SDK.
type OpenAI struct {
	client   *openai.Client
	model    string
	maxUnits int
	pricing  Pricing
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for openai")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for openai")
	}
	if cfg.MaxOutputUnits == 0 {
		return nil, fmt.Errorf("max_output_units is required for openai")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAI{
		client:   &client,
		model:    cfg.Model,
		maxUnits: cfg.MaxOutputUnits,
		pricing:  cfg.Pricing,
	}, nil
}

// Invoke implements Invoker.
func (o *OpenAI) Invoke(ctx context.Context, req Request) (*Response, error) {
	maxUnits := int64(o.maxUnits)
	if req.MaxOutputUnits > 0 {
		maxUnits = int64(req.MaxOutputUnits)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(o.model),
		Messages:  messages,
		MaxTokens: openai.Int(maxUnits),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify("openai", err)
	}

	out := &Response{
		Model: resp.Model,
		Usage: Usage{
			InputUnits:  resp.Usage.PromptTokens,
			OutputUnits: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Output = resp.Choices[0].Message.Content
	}
	out.CostUSD = o.pricing.Cost(out.Usage)
	return out, nil
}

var _ Invoker = (*OpenAI)(nil)
