package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/scenegov/internal/ports/primary"
	"github.com/example/scenegov/internal/ports/secondary"
)

// LogServiceImpl implements the LogService interface.
type LogServiceImpl struct {
	store secondary.Store
}

// NewLogService creates a new LogService with injected dependencies.
func NewLogService(store secondary.Store) *LogServiceImpl {
	return &LogServiceImpl{
		store: store,
	}
}

// ListLogs retrieves governance log entries matching the given filters, newest first.
func (s *LogServiceImpl) ListLogs(ctx context.Context, filters primary.LogFilters) ([]*primary.LogEntry, error) {
	if filters.Limit < 0 {
		return nil, invalidParams(fmt.Errorf("limit must not be negative"))
	}
	since, err := storedTime(filters.Since)
	if err != nil {
		return nil, invalidParams(err)
	}

	var records []*secondary.GovernanceLogRecord
	err = s.store.View(ctx, func(tx secondary.ReadTx) error {
		var err error
		records, err = tx.ListLogs(ctx, secondary.GovernanceLogFilters{
			Scope:   filters.Scope,
			Action:  filters.Action,
			TraceID: filters.TraceID,
			Since:   since,
			Limit:   filters.Limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	entries := make([]*primary.LogEntry, len(records))
	for i, r := range records {
		entries[i] = recordToLogEntry(r)
	}
	return entries, nil
}

// storedTime converts an RFC3339 bound into the stored timestamp layout.
func storedTime(rfc3339 string) (string, error) {
	rfc3339 = strings.TrimSpace(rfc3339)
	if rfc3339 == "" {
		return "", nil
	}
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return "", fmt.Errorf("since must be RFC3339: %w", err)
	}
	return t.UTC().Format(secondary.TimeLayout), nil
}

// Ensure LogServiceImpl implements the interface
var _ primary.LogService = (*LogServiceImpl)(nil)
