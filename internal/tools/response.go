// Package tools implements the MCP tool surface: parameter validation, the
// response envelope, per-call timeouts, and the three document operations.
package tools

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mydocs/internal/errors"
)

// Envelope is the uniform payload every tool returns, success or failure.
type Envelope struct {
	Success         bool           `json:"success"`
	Data            any            `json:"data,omitempty"`
	Error           *ErrorPayload  `json:"error,omitempty"`
	ExecutionTimeMs float64        `json:"execution_time_ms"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ErrorPayload is the client-visible error shape.
type ErrorPayload struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Parameter  string `json:"parameter,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// successResult wraps data in the envelope and serializes it as tool output.
func successResult(data any, elapsedMs float64, metadata map[string]any) (*mcp.CallToolResult, error) {
	return marshalResult(&Envelope{
		Success:         true,
		Data:            data,
		ExecutionTimeMs: elapsedMs,
		Metadata:        metadata,
	}, false)
}

// errorResult maps a service error into the envelope with IsError set so MCP
// clients surface the failure inside the result rather than as a protocol
// error.
func errorResult(err error, elapsedMs float64) (*mcp.CallToolResult, error) {
	payload := &ErrorPayload{
		Type:    string(errors.TypeOf(err)),
		Message: err.Error(),
	}
	var verr *errors.ValidationError
	if stderrors.As(err, &verr) {
		payload.Parameter = verr.Parameter
		payload.Suggestion = verr.Suggestion
		payload.Message = verr.Message
	}
	return marshalResult(&Envelope{
		Success:         false,
		Error:           payload,
		ExecutionTimeMs: elapsedMs,
	}, true)
}

func marshalResult(env *Envelope, isError bool) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response envelope: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
		IsError: isError,
	}, nil
}
