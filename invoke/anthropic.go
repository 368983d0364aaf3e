package invoke

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey         string
	BaseURL        string // optional custom endpoint
	Model          string
	MaxOutputUnits int
	Pricing        Pricing
}

// Anthropic invokes the Anthropic API through the official SDK.
type Anthropic struct {
	client   *anthropic.Client
	model    string
	maxUnits int
	pricing  Pricing
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for anthropic")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for anthropic")
	}
	if cfg.MaxOutputUnits == 0 {
		return nil, fmt.Errorf("max_output_units is required for anthropic")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Anthropic{
		client:   &client,
		model:    cfg.Model,
		maxUnits: cfg.MaxOutputUnits,
		pricing:  cfg.Pricing,
	}, nil
}

// Invoke implements Invoker.
func (a *Anthropic) Invoke(ctx context.Context, req Request) (*Response, error) {
	maxUnits := int64(a.maxUnits)
	if req.MaxOutputUnits > 0 {
		maxUnits = int64(req.MaxOutputUnits)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxUnits,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify("anthropic", err)
	}

	out := &Response{
		Model: string(resp.Model),
		Usage: Usage{
			InputUnits:  resp.Usage.InputTokens,
			OutputUnits: resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.Output += block.Text
		}
	}
	out.CostUSD = a.pricing.Cost(out.Usage)
	return out, nil
}

var _ Invoker = (*Anthropic)(nil)
