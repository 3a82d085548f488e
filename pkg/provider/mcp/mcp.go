// Package mcp exposes the tools of a Model Context Protocol server as
// capability-provider operations, discovered at construction time.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/driftlabs/helmsman/pkg/errors"
	"github.com/driftlabs/helmsman/pkg/provider"
)

const (
	// Name is the provider's registry name.
	Name = "mcp"

	initTimeout = 10 * time.Second
)

// toolClient is the slice of the MCP client the provider uses. Tests
// swap it for a stub server.
type toolClient interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Provider adapts one MCP server. Its operation set is built from the
// server's advertised tools, so two instances of this provider rarely
// expose the same operations.
type Provider struct {
	client toolClient
	ops    *provider.OperationSet
}

// New constructs the provider from its config block, spawning the MCP
// server subprocess and discovering its tools.
func New(cfg map[string]any, _ provider.Env) (provider.Provider, error) {
	command, err := provider.RequiredString(cfg, "command")
	if err != nil {
		return nil, err
	}
	args, err := provider.OptionalStringList(cfg, "args")
	if err != nil {
		return nil, err
	}

	stdioClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "failed to spawn mcp server", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "helmsman-client",
		Version: "0.1.0",
	}
	if _, err := stdioClient.Initialize(ctx, initRequest); err != nil {
		stdioClient.Close()
		return nil, errors.New(errors.CodeConfiguration, "failed to initialize mcp server", err)
	}

	p, err := NewWithClient(ctx, stdioClient)
	if err != nil {
		stdioClient.Close()
		return nil, err
	}
	return p, nil
}

// NewWithClient builds the provider on an already-initialized client.
func NewWithClient(ctx context.Context, c toolClient) (*Provider, error) {
	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "failed to list mcp tools", err)
	}

	p := &Provider{client: c}
	ops := make([]provider.Operation, 0, len(result.Tools))
	for _, tool := range result.Tools {
		ops = append(ops, provider.Operation{
			Name:        tool.Name,
			Description: tool.Description,
			Params:      toolParams(tool),
			Handler:     p.callTool(tool.Name),
		})
	}
	p.ops, err = provider.NewOperationSet(ops...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Name() string      { return Name }
func (p *Provider) LLMProvider() bool { return false }

// Configure is a no-op: the server subprocess carries its own credentials.
func (p *Provider) Configure(_ context.Context) (bool, error) {
	return true, nil
}

func (p *Provider) IsConfigured(ctx context.Context, verbose bool) bool {
	if p.client == nil {
		return false
	}
	if verbose {
		if _, err := p.client.ListTools(ctx, mcp.ListToolsRequest{}); err != nil {
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

// Close shuts down the server subprocess.
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) callTool(name string) provider.Handler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = params

		result, err := p.client.CallTool(ctx, req)
		if err != nil {
			return nil, errors.New(errors.CodeProvider, fmt.Sprintf("tool %s failed", name), err).
				WithRecoverable(true)
		}
		text := flattenContent(result)
		if result.IsError {
			return nil, errors.Newf(errors.CodeProvider, "tool %s reported an error: %s", name, text).
				WithRecoverable(true)
		}
		return text, nil
	}
}

func flattenContent(result *mcp.CallToolResult) string {
	var text string
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return text
}

// toolParams maps a tool's JSON schema onto the declared parameter list.
// Required parameters are emitted first so positional dispatch fills them
// before any optionals.
func toolParams(tool mcp.Tool) []provider.Param {
	required := make(map[string]bool, len(tool.InputSchema.Required))
	for _, name := range tool.InputSchema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(tool.InputSchema.Properties))
	for name := range tool.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var params []provider.Param
	appendMatching := func(wantRequired bool) {
		for _, name := range names {
			if required[name] != wantRequired {
				continue
			}
			kind := provider.KindString
			var description string
			if prop, ok := tool.InputSchema.Properties[name].(map[string]any); ok {
				if t, ok := prop["type"].(string); ok {
					kind = schemaKind(t)
				}
				if d, ok := prop["description"].(string); ok {
					description = d
				}
			}
			params = append(params, provider.Param{
				Name:        name,
				Required:    wantRequired,
				Kind:        kind,
				Description: description,
			})
		}
	}
	appendMatching(true)
	appendMatching(false)
	return params
}

func schemaKind(schemaType string) provider.ParamKind {
	switch schemaType {
	case "integer":
		return provider.KindInt
	case "number":
		return provider.KindFloat
	case "boolean":
		return provider.KindBool
	case "array":
		return provider.KindStringList
	case "object":
		return provider.KindMap
	default:
		return provider.KindString
	}
}

var _ provider.Provider = (*Provider)(nil)
