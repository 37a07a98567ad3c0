package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/parser"
	"github.com/standardbeagle/mydocs/internal/search"
	"github.com/standardbeagle/mydocs/internal/storage"
)

// Handlers owns the three document tools and their shared dependencies.
type Handlers struct {
	cfg     *config.Config
	store   *storage.Store
	engine  *search.Engine
	parsers *parser.Registry
	log     *logging.Logger
	timeout time.Duration

	calls    atomic.Int64
	failures atomic.Int64
	timeouts atomic.Int64
}

// NewHandlers wires the tool layer to its dependencies. The per-call timeout
// comes from the configured request timeout.
func NewHandlers(cfg *config.Config, store *storage.Store, engine *search.Engine,
	parsers *parser.Registry, log *logging.Logger) *Handlers {
	return &Handlers{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		parsers: parsers,
		log:     log,
		timeout: time.Duration(cfg.Limits.RequestTimeoutSec * float64(time.Second)),
	}
}

// Counters reports call totals for diagnostics.
func (h *Handlers) Counters() (calls, failures, timeouts int64) {
	return h.calls.Load(), h.failures.Load(), h.timeouts.Load()
}

type toolFunc func(ctx context.Context, args map[string]any) (any, map[string]any, error)

type toolOutcome struct {
	data     any
	metadata map[string]any
	err      error
}

// dispatch runs one tool call under the request timeout and wraps the result
// in the response envelope. A handler that overruns the deadline is abandoned
// and reported as a timeout.
func (h *Handlers) dispatch(ctx context.Context, name string, raw json.RawMessage, fn toolFunc) (*mcp.CallToolResult, error) {
	start := time.Now()
	h.calls.Add(1)

	args := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			h.failures.Add(1)
			return errorResult(errors.NewValidationError("arguments",
				fmt.Sprintf("arguments must be a JSON object: %v", err)), elapsedMs(start))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	done := make(chan toolOutcome, 1)
	go func() {
		data, metadata, err := fn(callCtx, args)
		done <- toolOutcome{data: data, metadata: metadata, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			h.failures.Add(1)
			h.log.Warning("tool %s failed: %v", name, out.err)
			return errorResult(out.err, elapsedMs(start))
		}
		return successResult(out.data, elapsedMs(start), out.metadata)
	case <-callCtx.Done():
		h.failures.Add(1)
		h.timeouts.Add(1)
		h.log.Error("tool %s exceeded %s deadline", name, h.timeout)
		return errorResult(errors.NewDocumentError(errors.ErrorTypeTimeout, name,
			fmt.Errorf("operation did not complete within %s", h.timeout)), elapsedMs(start))
	}
}

// IndexDocument handles the indexDocument tool.
func (h *Handlers) IndexDocument(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.dispatch(ctx, "indexDocument", req.Params.Arguments, h.indexDocument)
}

// SearchDocuments handles the searchDocuments tool.
func (h *Handlers) SearchDocuments(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.dispatch(ctx, "searchDocuments", req.Params.Arguments, h.searchDocuments)
}

// GetDocument handles the getDocument tool.
func (h *Handlers) GetDocument(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.dispatch(ctx, "getDocument", req.Params.Arguments, h.getDocument)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
