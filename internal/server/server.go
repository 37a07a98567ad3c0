// Package server assembles the MCP server: storage, search, parsing, the
// tool surface, and the optional file watcher, exposed over stdio.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/parser"
	"github.com/standardbeagle/mydocs/internal/search"
	"github.com/standardbeagle/mydocs/internal/storage"
	"github.com/standardbeagle/mydocs/internal/tools"
	"github.com/standardbeagle/mydocs/internal/version"
	"github.com/standardbeagle/mydocs/internal/watcher"
)

// Server owns the assembled service.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	store    *storage.Store
	engine   *search.Engine
	handlers *tools.Handlers
	watcher  *watcher.Watcher
	mcp      *mcp.Server
}

// New builds the full service from configuration. stdout and stderr stay
// untouched; diagnostics go to the log file because stdio carries the
// protocol.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Server, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, dbPath, cfg.Limits.MaxConnections, log)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cfg.Search.CacheTTLSec) * time.Second
	engine := search.NewEngine(store, ttl, cfg.Search.EnableCaching, log)
	parsers := parser.NewRegistry(log)
	handlers := tools.NewHandlers(cfg, store, engine, parsers, log)

	s := &Server{
		cfg:      cfg,
		log:      log,
		store:    store,
		engine:   engine,
		handlers: handlers,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "mydocs-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()

	if len(cfg.Watcher.Directories) > 0 {
		dispatcher := watcher.NewDispatcher(handlers, log)
		s.watcher = watcher.New(cfg.Watcher, dispatcher, log)
		if err := s.watcher.Start(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	if status, err := handlers.Status(ctx); err == nil {
		log.Info("server ready: %d documents, schema v%d, db %d bytes",
			status.DocumentCount, status.SchemaVersion, status.DatabaseBytes)
	}
	return s, nil
}

// Run serves the MCP protocol over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving MCP over stdio (%s)", version.FullInfo())
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Shutdown stops the watcher and closes storage.
func (s *Server) Shutdown() error {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.log.Warning("watcher stop: %v", err)
		}
	}
	s.engine.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	s.log.Info("server shut down")
	return nil
}

// Handlers exposes the tool layer for diagnostics.
func (s *Server) Handlers() *tools.Handlers {
	return s.handlers
}

// registerTools declares the three document tools with their input schemas.
func (s *Server) registerTools() {
	// boolean false as a schema
	closed := &jsonschema.Schema{Not: &jsonschema.Schema{}}

	s.mcp.AddTool(&mcp.Tool{
		Name:        "indexDocument",
		Description: "Index a markdown or text file into the searchable document store. Reindexes when the file has changed; pass force_reindex to reindex unconditionally.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"file_path"},
			Properties: map[string]*jsonschema.Schema{
				"file_path": {
					Type:        "string",
					MinLength:   intPtr(1),
					MaxLength:   intPtr(1000),
					Description: "Path to the file to index",
				},
				"force_reindex": {
					Type:        "boolean",
					Description: "Reindex even if the stored copy is current",
				},
			},
			AdditionalProperties: closed,
		},
	}, s.handlers.IndexDocument)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "searchDocuments",
		Description: "Keyword search over indexed documents with relevance ranking, snippets, and optional file-type filtering.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					MinLength:   intPtr(1),
					MaxLength:   intPtr(500),
					Description: "Search terms",
				},
				"limit": {
					Type:        "integer",
					Minimum:     floatPtr(1),
					Maximum:     floatPtr(100),
					Description: "Maximum results to return (default 10)",
				},
				"file_type": {
					Type:        "string",
					Enum:        []any{"md", "markdown", "txt", "text", ".md", ".txt"},
					Description: "Restrict results to one file type",
				},
				"sort_by": {
					Type:        "string",
					Enum:        []any{"relevance", "date", "name"},
					Description: "Result ordering (default relevance)",
				},
			},
			AdditionalProperties: closed,
		},
	}, s.handlers.SearchDocuments)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "getDocument",
		Description: "Retrieve one indexed document by id or path, with content rendered as json, markdown, or text.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"document_id": {
					Type:        "integer",
					Minimum:     floatPtr(1),
					Description: "Document id (mutually exclusive with file_path)",
				},
				"file_path": {
					Type:        "string",
					MinLength:   intPtr(1),
					MaxLength:   intPtr(1000),
					Description: "Document path (mutually exclusive with document_id)",
				},
				"include_content": {
					Type:        "boolean",
					Description: "Include the document content (default true)",
				},
				"include_metadata": {
					Type:        "boolean",
					Description: "Include the document metadata (default true)",
				},
				"format": {
					Type:        "string",
					Enum:        []any{"json", "markdown", "text"},
					Description: "Content rendering (default json)",
				},
				"max_content_length": {
					Type:        "integer",
					Minimum:     floatPtr(0),
					Description: "Truncate content to this many bytes; 0 means unlimited",
				},
			},
			AdditionalProperties: closed,
		},
	}, s.handlers.GetDocument)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
