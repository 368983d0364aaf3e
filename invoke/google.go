package invoke

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Google Gemini adapter.
type GoogleConfig struct {
	APIKey         string
	Model          string
	MaxOutputUnits int
	Pricing        Pricing
}

// Google invokes the Gemini API through the official SDK.
type Google struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	pricing Pricing
}

// NewGoogle creates a Gemini adapter. ctx bounds client construction only.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for google")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for google")
	}
	if cfg.MaxOutputUnits == 0 {
		return nil, fmt.Errorf("max_output_units is required for google")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	maxUnits := int32(cfg.MaxOutputUnits)
	model.MaxOutputTokens = &maxUnits

	return &Google{
		client:  client,
		model:   model,
		name:    cfg.Model,
		pricing: cfg.Pricing,
	}, nil
}

// Close releases the underlying client.
func (g *Google) Close() error {
	return g.client.Close()
}

// requestModel returns a per-request copy of the model so concurrent
// calls never share a system prompt.
func (g *Google) requestModel(req Request) genai.GenerativeModel {
	model := *g.model
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	return model
}

// Invoke implements Invoker.
func (g *Google) Invoke(ctx context.Context, req Request) (*Response, error) {
	model := g.requestModel(req)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, classify("google", err)
	}

	out := &Response{Model: g.name}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.Output += string(text)
			}
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage.InputUnits = int64(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputUnits = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	out.CostUSD = g.pricing.Cost(out.Usage)
	return out, nil
}

var _ Invoker = (*Google)(nil)
