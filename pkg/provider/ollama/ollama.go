// Package ollama exposes a local Ollama server as a keyless capability
// provider.
package ollama

import (
	"context"
	"slices"

	"github.com/driftlabs/helmsman/pkg/llm"
	"github.com/driftlabs/helmsman/pkg/provider"
)

const (
	// Name is the provider's registry name.
	Name = "ollama"

	defaultModel = "llama3.2"
)

// Provider adapts a local Ollama server. It holds no credentials, so it
// is configured by construction.
type Provider struct {
	client *llm.OllamaClient
	model  string
	ops    *provider.OperationSet
}

// New constructs the provider from its config block.
func New(cfg map[string]any, _ provider.Env) (provider.Provider, error) {
	baseURL, err := provider.OptionalString(cfg, "base_url", "")
	if err != nil {
		return nil, err
	}
	model, err := provider.OptionalString(cfg, "model", defaultModel)
	if err != nil {
		return nil, err
	}

	p := &Provider{client: llm.NewOllama(baseURL), model: model}
	p.ops, err = provider.NewOperationSet(
		provider.Operation{
			Name:        "generate-text",
			Description: "Generate text using Ollama models",
			Params: []provider.Param{
				{Name: "prompt", Required: true, Kind: provider.KindString, Description: "The input prompt for text generation"},
				{Name: "system_prompt", Required: true, Kind: provider.KindString, Description: "System prompt to guide the model"},
				{Name: "model", Required: false, Kind: provider.KindString, Description: "Model to use for generation"},
			},
			Handler: p.generateText,
		},
		provider.Operation{
			Name:        "check-model",
			Description: "Check if a model has been pulled locally",
			Params: []provider.Param{
				{Name: "model", Required: true, Kind: provider.KindString, Description: "Model name to check availability"},
			},
			Handler: p.checkModel,
		},
		provider.Operation{
			Name:        "list-models",
			Description: "List locally available Ollama models",
			Handler:     p.listModels,
		},
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Name() string      { return Name }
func (p *Provider) LLMProvider() bool { return true }

// Configure is a no-op: Ollama needs no credentials.
func (p *Provider) Configure(_ context.Context) (bool, error) {
	return true, nil
}

// IsConfigured is always true without credentials to check; verbose mode
// additionally probes the server.
func (p *Provider) IsConfigured(ctx context.Context, verbose bool) bool {
	if verbose {
		return p.client.Ping(ctx) == nil
	}
	return true
}

func (p *Provider) Operations() []provider.Operation {
	return p.ops.List()
}

func (p *Provider) Perform(ctx context.Context, operation string, params map[string]any) (any, error) {
	return p.ops.Perform(ctx, operation, params)
}

func (p *Provider) generateText(ctx context.Context, params map[string]any) (any, error) {
	model := p.model
	if m, ok := params["model"].(string); ok && m != "" {
		model = m
	}
	resp, err := p.client.Chat(ctx, llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: params["system_prompt"].(string)},
			{Role: llm.RoleUser, Content: params["prompt"].(string)},
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Content, nil
}

func (p *Provider) checkModel(ctx context.Context, params map[string]any) (any, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Contains(models, params["model"].(string)), nil
}

func (p *Provider) listModels(ctx context.Context, _ map[string]any) (any, error) {
	return p.client.ListModels(ctx)
}

var _ provider.Provider = (*Provider)(nil)
