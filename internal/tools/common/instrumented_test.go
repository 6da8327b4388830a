package common

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestInstrumentedToolHandler_PassesThrough(t *testing.T) {
	called := false
	handler := InstrumentedToolHandler("test_tool", nil, func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("wrapped handler was not called")
	}
	if result == nil || len(result.Content) == 0 {
		t.Error("expected a result with content")
	}
}

func TestInstrumentedToolHandler_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	handler := InstrumentedToolHandler("test_tool", nil, func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, wantErr
	})

	_, err := handler(context.Background(), mcp.CallToolRequest{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	handler := InstrumentedToolHandler("test_tool", nil, func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("tool failed"), nil
	})

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Error("expected an error result")
	}
}
