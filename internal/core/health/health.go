// Package health projects diagnostics and governance state into the summary
// and paginated detail views served by the health query.
// This is part of the Functional Core - no I/O, only pure functions.
package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/scenegov/internal/core/diagnostics"
)

// Modes.
const (
	ModeSummary = "summary"
	ModeFull    = "full"
)

// Paging limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Query is a normalized health request.
type Query struct {
	CompanyID int64      `json:"company_id,omitempty"`
	Mode      string     `json:"mode"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	Since     *time.Time `json:"since,omitempty"`
}

// RawQuery is a health request as received from a caller.
type RawQuery struct {
	CompanyID int64
	Mode      string
	Limit     int
	Offset    int
	Since     string
}

// NormalizeQuery validates a raw request and applies defaults.
// The offset is echoed exactly; limit defaults to DefaultLimit and is capped at MaxLimit.
func NormalizeQuery(raw RawQuery) (Query, error) {
	q := Query{CompanyID: raw.CompanyID, Offset: raw.Offset}

	switch mode := strings.ToLower(strings.TrimSpace(raw.Mode)); mode {
	case "", ModeSummary:
		q.Mode = ModeSummary
	case ModeFull:
		q.Mode = ModeFull
	default:
		return Query{}, fmt.Errorf("unknown mode %q: must be summary or full", raw.Mode)
	}

	if raw.CompanyID < 0 {
		return Query{}, fmt.Errorf("company_id must not be negative")
	}
	if raw.Offset < 0 {
		return Query{}, fmt.Errorf("offset must not be negative")
	}
	switch {
	case raw.Limit < 0:
		return Query{}, fmt.Errorf("limit must not be negative")
	case raw.Limit == 0:
		q.Limit = DefaultLimit
	case raw.Limit > MaxLimit:
		q.Limit = MaxLimit
	default:
		q.Limit = raw.Limit
	}

	if s := strings.TrimSpace(raw.Since); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Query{}, fmt.Errorf("since must be RFC3339: %w", err)
		}
		t = t.UTC()
		q.Since = &t
	}
	return q, nil
}

// Summary holds the counts the health view always reports.
type Summary struct {
	CriticalResolveErrorsCount int  `json:"critical_resolve_errors_count"`
	CriticalDriftWarnCount     int  `json:"critical_drift_warn_count"`
	NonCriticalDebtCount       int  `json:"non_critical_debt_count"`
	MissingDebtCount           int  `json:"missing_debt_count"`
	NormalizeWarningsCount     int  `json:"normalize_warnings_count"`
	ResolveErrorsCount         int  `json:"resolve_errors_count"`
	DriftCount                 int  `json:"drift_count"`
	Healthy                    bool `json:"healthy"`
}

// Summarize derives summary counts from one diagnostics report.
func Summarize(r diagnostics.Report, warnings int) Summary {
	return Summary{
		CriticalResolveErrorsCount: r.CriticalResolveErrors(),
		CriticalDriftWarnCount:     r.CriticalDriftWarn(),
		NonCriticalDebtCount:       len(r.Debt),
		MissingDebtCount:           len(r.MissingDebt),
		NormalizeWarningsCount:     warnings,
		ResolveErrorsCount:         len(r.ResolveErrors),
		DriftCount:                 len(r.Drift),
		Healthy:                    r.Healthy(),
	}
}

// Page returns items[offset:offset+limit], clamped to the slice bounds.
// The result is never nil.
func Page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
