package model

import (
	"context"
	"sync"

	U "funnelytics/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GoalAnalyticsEntry is one goal's slot in a bulk result: either a computed
// result or the failure that prevented it.
type GoalAnalyticsEntry struct {
	Result *FunnelAnalytics `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// RunGoalAnalytics computes completion analytics for a single step goal.
// Unlike the funnel path, conversion is measured against all website visitors
// in range, not against the goal's own entry cohort.
func (fa *FunnelAnalyzer) RunGoalAnalytics(ctx context.Context, req AnalyticsRequest) (*FunnelAnalytics, error) {
	goal, query, logCtx, err := fa.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	if !goal.IsGoal() {
		return nil, errors.Errorf("definition %s is not a single step goal", goal.ID)
	}
	return fa.runGoal(ctx, goal, query, logCtx)
}

func (fa *FunnelAnalyzer) runGoal(ctx context.Context, goal *FunnelDefinition, query OccurrenceQuery, logCtx log.FieldLogger) (*FunnelAnalytics, error) {
	totalWebsiteUsers, err := fa.events.TotalWebsiteUsers(ctx, query.WebsiteID, query.From, query.To)
	if err != nil {
		logCtx.WithError(err).Error("Failed counting website users.")
		return nil, errors.Wrap(err, "total website users query")
	}

	rows, err := fa.events.StepOccurrences(ctx, query)
	if err != nil {
		logCtx.WithError(err).Error("Failed fetching goal occurrences.")
		return nil, errors.Wrap(err, "goal occurrences query")
	}

	reached := calculateStepCounts(groupSessionOccurrences(rows), 1)
	completions := len(reached[0])

	conversionRate := 0.0
	if totalWebsiteUsers > 0 {
		conversionRate = U.RoundTwoDecimals(float64(completions) / float64(totalWebsiteUsers) * 100)
	}

	return &FunnelAnalytics{
		OverallConversionRate:      conversionRate,
		TotalUsersEntered:          totalWebsiteUsers,
		TotalUsersCompleted:        completions,
		AvgCompletionTime:          0,
		AvgCompletionTimeFormatted: U.SecondsToShortDurationString(0),
		BiggestDropoffStep:         1,
		BiggestDropoffRate:         0,
		StepsAnalytics: []StepAnalytics{{
			StepNumber:     1,
			StepName:       query.Steps[0].Name,
			Users:          completions,
			TotalUsers:     totalWebsiteUsers,
			ConversionRate: conversionRate,
		}},
	}, nil
}

// BulkGoalAnalytics computes analytics for several goals of one website
// concurrently. Individual goal failures are reported per id and do not fail
// the batch; ids with no matching definition are absent from the result.
func (fa *FunnelAnalyzer) BulkGoalAnalytics(ctx context.Context, websiteID string, goalIDs []string, startDate, endDate string) (map[string]GoalAnalyticsEntry, error) {
	goals, err := fa.definitions.GetFunnels(ctx, websiteID, goalIDs)
	if err != nil {
		return nil, errors.Wrap(err, "load goal definitions")
	}

	var mu sync.Mutex
	results := make(map[string]GoalAnalyticsEntry, len(goals))

	g, gctx := errgroup.WithContext(ctx)
	for _, goal := range goals {
		goal := goal
		g.Go(func() error {
			result, err := fa.RunGoalAnalytics(gctx, AnalyticsRequest{
				WebsiteID: websiteID,
				FunnelID:  goal.ID,
				StartDate: startDate,
				EndDate:   endDate,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[goal.ID] = GoalAnalyticsEntry{Error: err.Error()}
			} else {
				results[goal.ID] = GoalAnalyticsEntry{Result: result}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
