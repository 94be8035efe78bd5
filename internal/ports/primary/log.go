package primary

import "context"

// LogService defines the primary port for reading the governance log.
type LogService interface {
	// ListLogs retrieves governance log entries matching the given filters, newest first.
	ListLogs(ctx context.Context, filters LogFilters) ([]*LogEntry, error)
}

// LogEntry represents a governance log entry at the port boundary.
type LogEntry struct {
	ID          int64          `json:"id"`
	Action      string         `json:"action"`
	TraceID     string         `json:"trace_id"`
	Scope       string         `json:"scope"`
	CompanyID   int64          `json:"company_id,omitempty"`
	FromChannel string         `json:"from_channel,omitempty"`
	ToChannel   string         `json:"to_channel,omitempty"`
	FromRef     string         `json:"from_ref,omitempty"`
	ToRef       string         `json:"to_ref,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// LogFilters contains filter options for querying the governance log.
type LogFilters struct {
	Scope   string // empty for every scope
	Action  string
	TraceID string
	Since   string // RFC3339
	Limit   int
}
