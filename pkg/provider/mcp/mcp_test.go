package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/driftlabs/helmsman/pkg/errors"
)

type stubClient struct {
	tools    []mcp.Tool
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	closed   bool
}

func (s *stubClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: s.tools}, nil
}

func (s *stubClient) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.lastName = req.Params.Name
	s.lastArgs, _ = req.Params.Arguments.(map[string]any)
	return s.result, nil
}

func (s *stubClient) Close() error {
	s.closed = true
	return nil
}

func weatherTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get-weather",
		Description: "Look up current weather",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"city":  map[string]any{"type": "string", "description": "City name"},
				"units": map[string]any{"type": "string", "description": "Unit system"},
				"days":  map[string]any{"type": "integer", "description": "Forecast days"},
			},
			Required: []string{"city"},
		},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func TestToolsBecomeOperations(t *testing.T) {
	stub := &stubClient{tools: []mcp.Tool{weatherTool()}}
	p, err := NewWithClient(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewWithClient failed: %v", err)
	}

	ops := p.Operations()
	if len(ops) != 1 || ops[0].Name != "get-weather" {
		t.Fatalf("unexpected operations: %+v", ops)
	}
	params := ops[0].Params
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
	// Required parameters come first so positional dispatch fills them.
	if params[0].Name != "city" || !params[0].Required {
		t.Errorf("expected required city first, got %+v", params[0])
	}
	for _, param := range params[1:] {
		if param.Required {
			t.Errorf("expected optional param, got %+v", param)
		}
	}
}

func TestCallToolFlattensText(t *testing.T) {
	stub := &stubClient{
		tools:  []mcp.Tool{weatherTool()},
		result: textResult("sunny, 21C"),
	}
	p, err := NewWithClient(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewWithClient failed: %v", err)
	}

	result, err := p.Perform(context.Background(), "get-weather", map[string]any{"city": "Lisbon"})
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	if result != "sunny, 21C" {
		t.Errorf("unexpected result: %v", result)
	}
	if stub.lastName != "get-weather" || stub.lastArgs["city"] != "Lisbon" {
		t.Errorf("unexpected call: %s %v", stub.lastName, stub.lastArgs)
	}
}

func TestToolErrorSurfacesAsProviderError(t *testing.T) {
	result := textResult("city not found")
	result.IsError = true
	stub := &stubClient{tools: []mcp.Tool{weatherTool()}, result: result}
	p, err := NewWithClient(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewWithClient failed: %v", err)
	}

	_, err = p.Perform(context.Background(), "get-weather", map[string]any{"city": "Atlantis"})
	if !errors.HasCode(err, errors.CodeProvider) {
		t.Errorf("expected PROVIDER_ERROR, got %v", err)
	}
}

func TestMissingRequiredToolParam(t *testing.T) {
	stub := &stubClient{tools: []mcp.Tool{weatherTool()}, result: textResult("ok")}
	p, err := NewWithClient(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewWithClient failed: %v", err)
	}

	_, err = p.Perform(context.Background(), "get-weather", map[string]any{"days": 3})
	if !errors.HasCode(err, errors.CodeInvalidParameters) {
		t.Fatalf("expected INVALID_PARAMETERS, got %v", err)
	}

	if _, err := p.Perform(context.Background(), "get-weather", map[string]any{"city": "Lisbon", "days": 3}); err != nil {
		t.Errorf("expected success with required param present: %v", err)
	}
	if stub.lastArgs["days"] != 3 {
		t.Errorf("expected coerced int days, got %T", stub.lastArgs["days"])
	}
}

func TestProviderClose(t *testing.T) {
	stub := &stubClient{tools: []mcp.Tool{weatherTool()}}
	p, err := NewWithClient(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewWithClient failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !stub.closed {
		t.Error("expected underlying client to be closed")
	}
}
