package tools

import (
	"context"
)

// StatusReport summarizes the service for diagnostics and startup logging.
type StatusReport struct {
	DocumentCount int64 `json:"document_count"`
	IndexEntries  int64 `json:"index_entries"`
	CacheEntries  int64 `json:"cache_entries"`
	DatabaseBytes int64 `json:"database_bytes"`
	SchemaVersion int   `json:"schema_version"`
	ToolCalls     int64 `json:"tool_calls"`
	ToolFailures  int64 `json:"tool_failures"`
	ToolTimeouts  int64 `json:"tool_timeouts"`
}

// Status collects store statistics and tool counters.
func (h *Handlers) Status(ctx context.Context) (*StatusReport, error) {
	stats, err := h.store.GetStatistics(ctx)
	if err != nil {
		return nil, err
	}
	calls, failures, timeouts := h.Counters()
	return &StatusReport{
		DocumentCount: stats.DocumentCount,
		IndexEntries:  stats.IndexEntries,
		CacheEntries:  stats.CacheEntries,
		DatabaseBytes: stats.DatabaseBytes,
		SchemaVersion: stats.SchemaVersion,
		ToolCalls:     calls,
		ToolFailures:  failures,
		ToolTimeouts:  timeouts,
	}, nil
}
