package model

import (
	"context"
	"sort"

	U "funnelytics/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FunnelAnalyzer computes funnel, goal and referrer analytics from an event
// log store. It is stateless per invocation: every run reads immutable
// historical data and produces a fresh result.
type FunnelAnalyzer struct {
	events      EventStore
	definitions DefinitionStore
	log         log.FieldLogger
}

// NewFunnelAnalyzer wires the analyzer to its collaborators. A nil logger
// falls back to the logrus standard logger.
func NewFunnelAnalyzer(events EventStore, definitions DefinitionStore, logger log.FieldLogger) *FunnelAnalyzer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &FunnelAnalyzer{events: events, definitions: definitions, log: logger}
}

// RunFunnelAnalytics computes per step conversion and dropoff for one funnel
// over the requested date range.
func (fa *FunnelAnalyzer) RunFunnelAnalytics(ctx context.Context, req AnalyticsRequest) (*FunnelAnalytics, error) {
	funnel, query, logCtx, err := fa.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	rows, err := fa.events.StepOccurrences(ctx, query)
	if err != nil {
		logCtx.WithError(err).Error("Failed fetching step occurrences.")
		return nil, errors.Wrap(err, "step occurrences query")
	}

	reached := calculateStepCounts(groupSessionOccurrences(rows), len(query.Steps))
	result := buildFunnelAnalytics(query.Steps, reached)

	logCtx.WithFields(log.Fields{
		"funnel_name":   funnel.Name,
		"users_entered": result.TotalUsersEntered,
	}).Info("Funnel analytics computed.")
	return result, nil
}

// prepareQuery loads and validates the definition, resolves the date range
// and compiles the occurrence query shared by all analysis paths.
func (fa *FunnelAnalyzer) prepareQuery(ctx context.Context, req AnalyticsRequest) (*FunnelDefinition, OccurrenceQuery, log.FieldLogger, error) {
	logCtx := fa.log.WithFields(log.Fields{
		"website_id": req.WebsiteID,
		"funnel_id":  req.FunnelID,
		"request_id": U.GetUUID(),
	})

	funnel, err := fa.definitions.GetFunnel(ctx, req.WebsiteID, req.FunnelID)
	if err != nil {
		if errors.Is(err, ErrFunnelNotFound) {
			return nil, OccurrenceQuery{}, nil, err
		}
		logCtx.WithError(err).Error("Failed loading funnel definition.")
		return nil, OccurrenceQuery{}, nil, errors.Wrap(err, "load funnel definition")
	}
	if err := funnel.Validate(); err != nil {
		return nil, OccurrenceQuery{}, nil, err
	}

	valid, dropped := ValidFilters(funnel.Filters)
	for _, filter := range dropped {
		logCtx.WithFields(log.Fields{
			"field":    filter.Field,
			"operator": filter.Operator,
		}).Warn("Dropped invalid funnel filter.")
	}

	from, to, err := U.QueryRangeFor(req.StartDate, req.EndDate)
	if err != nil {
		return nil, OccurrenceQuery{}, nil, err
	}

	query := OccurrenceQuery{
		WebsiteID: req.WebsiteID,
		Steps:     numberedSteps(funnel.Steps),
		Filters:   valid,
		From:      from,
		To:        to,
	}
	return funnel, query, logCtx, nil
}

// groupSessionOccurrences collates the unioned step rows per session.
func groupSessionOccurrences(rows []StepOccurrence) map[string][]StepOccurrence {
	sessionEvents := make(map[string][]StepOccurrence)
	for _, row := range rows {
		sessionEvents[row.SessionID] = append(sessionEvents[row.SessionID], row)
	}
	return sessionEvents
}

// calculateStepCounts runs the strict-order automaton per session and returns
// the reached set per step, indexed by step number - 1.
//
// Each session's rows are scanned in first-occurrence order with an expected
// cursor starting at 1. A row advances the cursor only when its step number
// matches the cursor exactly; everything else is ignored. A session therefore
// can never be credited for step N without steps 1..N-1, and the returned sets
// are nested by construction.
func calculateStepCounts(sessionEvents map[string][]StepOccurrence, numSteps int) []map[string]bool {
	reached := make([]map[string]bool, numSteps)
	for i := range reached {
		reached[i] = make(map[string]bool)
	}

	for sessionID, events := range sessionEvents {
		sort.Slice(events, func(i, j int) bool {
			return events[i].FirstOccurrence.Before(events[j].FirstOccurrence)
		})

		expected := 1
		for _, event := range events {
			if event.StepNumber != expected {
				continue
			}
			reached[expected-1][sessionID] = true
			expected++
			if expected > numSteps {
				break
			}
		}
	}
	return reached
}

// buildFunnelAnalytics derives conversion, dropoff and summary metrics from
// the nested reached sets.
func buildFunnelAnalytics(steps []Step, reached []map[string]bool) *FunnelAnalytics {
	totalUsers := len(reached[0])
	stepsAnalytics := make([]StepAnalytics, 0, len(steps))

	for i, step := range steps {
		users := len(reached[i])

		conversionRate := 100.0
		dropoffs := 0
		dropoffRate := 0.0
		if i > 0 {
			prevUsers := len(reached[i-1])
			dropoffs = prevUsers - users
			if prevUsers > 0 {
				conversionRate = U.RoundTwoDecimals(float64(users) / float64(prevUsers) * 100)
				dropoffRate = U.RoundTwoDecimals(float64(dropoffs) / float64(prevUsers) * 100)
			} else {
				conversionRate = 0
			}
		}

		stepsAnalytics = append(stepsAnalytics, StepAnalytics{
			StepNumber:     i + 1,
			StepName:       step.Name,
			Users:          users,
			TotalUsers:     totalUsers,
			ConversionRate: conversionRate,
			Dropoffs:       dropoffs,
			DropoffRate:    dropoffRate,
		})
	}

	// Biggest dropoff is only meaningful past the entry step; ties resolve
	// to the earliest step.
	biggest := stepsAnalytics[0]
	for i := 1; i < len(stepsAnalytics); i++ {
		if i == 1 || stepsAnalytics[i].DropoffRate > biggest.DropoffRate {
			biggest = stepsAnalytics[i]
		}
	}

	completed := len(reached[len(reached)-1])
	overallConversionRate := 0.0
	if totalUsers > 0 {
		overallConversionRate = U.RoundTwoDecimals(float64(completed) / float64(totalUsers) * 100)
	}

	// TODO: populate avg_completion_time from per-session step deltas once
	// completion timestamps are carried through aggregation.
	return &FunnelAnalytics{
		OverallConversionRate:      overallConversionRate,
		TotalUsersEntered:          totalUsers,
		TotalUsersCompleted:        completed,
		AvgCompletionTime:          0,
		AvgCompletionTimeFormatted: U.SecondsToShortDurationString(0),
		BiggestDropoffStep:         biggest.StepNumber,
		BiggestDropoffRate:         biggest.DropoffRate,
		StepsAnalytics:             stepsAnalytics,
	}
}
