// Package openai exposes the OpenAI API as a capability provider.
package openai

import (
	"context"
	"slices"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/llm"
	"github.com/driftlabs/helmsman/pkg/provider"
	"github.com/driftlabs/helmsman/pkg/secrets"
)

const (
	// Name is the provider's registry name.
	Name = "openai"

	// EnvAPIKey is the environment variable holding the API key.
	EnvAPIKey = "OPENAI_API_KEY"

	defaultModel = "gpt-3.5-turbo"
)

// backend is the slice of the SDK client the provider needs. Tests swap
// it for a stub.
type backend interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Provider adapts the OpenAI chat completions API.
type Provider struct {
	env     provider.Env
	model   string
	baseURL string
	ops     *provider.OperationSet

	newBackend func(apiKey string) backend
}

// New constructs the provider from its config block.
func New(cfg map[string]any, env provider.Env) (provider.Provider, error) {
	model, err := provider.OptionalString(cfg, "model", defaultModel)
	if err != nil {
		return nil, err
	}
	baseURL, err := provider.OptionalString(cfg, "base_url", "")
	if err != nil {
		return nil, err
	}

	p := &Provider{env: env, model: model, baseURL: baseURL}
	p.newBackend = func(apiKey string) backend {
		return llm.NewOpenAI(apiKey, p.baseURL, p.model)
	}

	p.ops, err = provider.NewOperationSet(
		provider.Operation{
			Name:        "generate-text",
			Description: "Generate text using OpenAI models",
			Params: []provider.Param{
				{Name: "prompt", Required: true, Kind: provider.KindString, Description: "The input prompt for text generation"},
				{Name: "system_prompt", Required: true, Kind: provider.KindString, Description: "System prompt to guide the model"},
				{Name: "model", Required: false, Kind: provider.KindString, Description: "Model to use for generation"},
			},
			Handler: p.generateText,
		},
		provider.Operation{
			Name:        "check-model",
			Description: "Check if a specific model is available",
			Params: []provider.Param{
				{Name: "model", Required: true, Kind: provider.KindString, Description: "Model name to check availability"},
			},
			Handler: p.checkModel,
		},
		provider.Operation{
			Name:        "list-models",
			Description: "List all available OpenAI models",
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

func (p *Provider) Configure(ctx context.Context) (bool, error) {
	return provider.ConfigureSecret(ctx, p.env, Name, EnvAPIKey, "OpenAI API key")
}

func (p *Provider) IsConfigured(ctx context.Context, verbose bool) bool {
	key, ok := secrets.Lookup(ctx, p.env.Secrets, Name, EnvAPIKey)
	if !ok {
		return false
	}
	if verbose {
		if _, err := p.newBackend(key).ListModels(ctx); err != nil {
			return false
		}
	}
	return true
}

func (p *Provider) Operations() []provider.Operation {
	return p.ops.List()
}

func (p *Provider) Perform(ctx context.Context, operation string, params map[string]any) (any, error) {
	return p.ops.Perform(ctx, operation, params)
}

func (p *Provider) client(ctx context.Context) (backend, error) {
	key, ok := secrets.Lookup(ctx, p.env.Secrets, Name, EnvAPIKey)
	if !ok {
		return nil, errors.Newf(errors.CodeNotConfigured, "%s is not set", EnvAPIKey).WithRecoverable(true)
	}
	return p.newBackend(key), nil
}

func (p *Provider) generateText(ctx context.Context, params map[string]any) (any, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	model := p.model
	if m, ok := params["model"].(string); ok && m != "" {
		model = m
	}
	resp, err := client.Chat(ctx, llm.ChatRequest{
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
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	models, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Contains(models, params["model"].(string)), nil
}

func (p *Provider) listModels(ctx context.Context, _ map[string]any) (any, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.ListModels(ctx)
}

var _ provider.Provider = (*Provider)(nil)
