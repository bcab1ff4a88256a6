package model

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrFunnelNotFound is returned by a DefinitionStore when the requested
// funnel or goal does not exist for the tenant.
var ErrFunnelNotFound = errors.New("funnel not found")

// StepOccurrence is one matched (session, step) row: the session's earliest
// event satisfying the step's predicate within the queried range.
type StepOccurrence struct {
	SessionID       string
	StepNumber      int
	FirstOccurrence time.Time
}

// OccurrenceQuery describes one tenant-scoped pull of step occurrences.
// Filters must already be validated; stores apply them with AND semantics.
type OccurrenceQuery struct {
	WebsiteID string
	Steps     []Step
	Filters   []Filter
	From      time.Time
	To        time.Time
}

// EventStore is the only capability the engine needs from event storage.
// Steps are matched independently; implementations may run the per step
// queries in parallel but must return the complete union or an error, never a
// partial result.
type EventStore interface {
	// StepOccurrences returns, per step of the query, one row per session
	// with that session's earliest matching timestamp.
	StepOccurrences(ctx context.Context, q OccurrenceQuery) ([]StepOccurrence, error)

	// FirstReferrers returns each session's earliest non-empty referrer
	// across all of its page views in the query range, for referrer
	// attribution.
	FirstReferrers(ctx context.Context, q OccurrenceQuery) (map[string]string, error)

	// TotalWebsiteUsers counts distinct sessions with any page view in
	// range, the denominator for goal conversion.
	TotalWebsiteUsers(ctx context.Context, websiteID string, from, to time.Time) (int, error)
}

// DefinitionStore supplies immutable funnel and goal definitions.
type DefinitionStore interface {
	// GetFunnel returns the definition or ErrFunnelNotFound.
	GetFunnel(ctx context.Context, websiteID, funnelID string) (*FunnelDefinition, error)

	// GetFunnels returns the definitions matching the given ids. Missing
	// ids are skipped, not errors.
	GetFunnels(ctx context.Context, websiteID string, funnelIDs []string) ([]*FunnelDefinition, error)
}
