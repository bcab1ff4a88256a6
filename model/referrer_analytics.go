package model

import (
	"context"
	"sort"

	"funnelytics/referrer"
	U "funnelytics/util"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// referrerGroup collects the sessions attributed to one canonical referrer.
type referrerGroup struct {
	parsed   referrer.Info
	sessions map[string]bool
}

// RunFunnelAnalyticsByReferrer partitions the funnel's sessions by canonical
// first referrer and computes conversion per partition. Groups are ordered by
// total users descending; groups with no entry users are dropped.
func (fa *FunnelAnalyzer) RunFunnelAnalyticsByReferrer(ctx context.Context, req AnalyticsRequest) (*ReferrerAnalyticsResult, error) {
	_, query, logCtx, err := fa.prepareQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	// The occurrence rows and the session-level first referrers are
	// independent pulls.
	var rows []StepOccurrence
	var firstReferrers map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = fa.events.StepOccurrences(gctx, query)
		return errors.Wrap(err, "step occurrences query")
	})
	g.Go(func() error {
		var err error
		firstReferrers, err = fa.events.FirstReferrers(gctx, query)
		return errors.Wrap(err, "first referrers query")
	})
	if err := g.Wait(); err != nil {
		logCtx.WithError(err).Error("Failed fetching referrer attribution data.")
		return nil, err
	}

	sessionEvents := groupSessionOccurrences(rows)

	groups := make(map[string]*referrerGroup)
	for sessionID := range sessionEvents {
		parsed := referrer.Parse(firstReferrers[sessionID], req.WebsiteDomain)
		key := parsed.GroupKey()

		group, exists := groups[key]
		if !exists {
			group = &referrerGroup{parsed: parsed, sessions: make(map[string]bool)}
			groups[key] = group
		}
		group.sessions[sessionID] = true
	}

	analytics := make([]ReferrerAnalytics, 0, len(groups))
	for key, group := range groups {
		if entry := processReferrerGroup(key, group, sessionEvents, len(query.Steps)); entry != nil {
			analytics = append(analytics, *entry)
		}
	}

	result := &ReferrerAnalyticsResult{
		ReferrerAnalytics: aggregateReferrerAnalytics(analytics),
	}
	logCtx.WithField("referrer_groups", len(result.ReferrerAnalytics)).Info("Referrer analytics computed.")
	return result, nil
}

// processReferrerGroup re-runs the progression engine restricted to the
// group's sessions. Returns nil when no session in the group entered the
// funnel.
func processReferrerGroup(key string, group *referrerGroup, sessionEvents map[string][]StepOccurrence, numSteps int) *ReferrerAnalytics {
	groupEvents := make(map[string][]StepOccurrence, len(group.sessions))
	for sessionID := range group.sessions {
		if events, found := sessionEvents[sessionID]; found {
			groupEvents[sessionID] = events
		}
	}

	reached := calculateStepCounts(groupEvents, numSteps)
	totalUsers := len(reached[0])
	if totalUsers == 0 {
		return nil
	}
	completedUsers := len(reached[numSteps-1])

	return &ReferrerAnalytics{
		Referrer:       key,
		ReferrerParsed: group.parsed,
		TotalUsers:     totalUsers,
		CompletedUsers: completedUsers,
		ConversionRate: U.RoundTwoDecimals(float64(completedUsers) / float64(totalUsers) * 100),
	}
}

// aggregateReferrerAnalytics folds together entries whose referrers
// canonicalize to the same key: user counts are summed, while the reported
// conversion rate is the arithmetic mean of the sub-rates rather than a
// pooled rate recomputed from the summed counts.
func aggregateReferrerAnalytics(analytics []ReferrerAnalytics) []ReferrerAnalytics {
	type aggregate struct {
		parsed             referrer.Info
		totalUsers         int
		completedUsers     int
		conversionRateSum  float64
		conversionRateRuns int
	}

	order := make([]string, 0, len(analytics))
	aggregated := make(map[string]*aggregate)
	for _, entry := range analytics {
		agg, exists := aggregated[entry.Referrer]
		if !exists {
			agg = &aggregate{parsed: entry.ReferrerParsed}
			aggregated[entry.Referrer] = agg
			order = append(order, entry.Referrer)
		}
		agg.totalUsers += entry.TotalUsers
		agg.completedUsers += entry.CompletedUsers
		agg.conversionRateSum += entry.ConversionRate
		agg.conversionRateRuns++
	}

	merged := make([]ReferrerAnalytics, 0, len(aggregated))
	for _, key := range order {
		agg := aggregated[key]
		conversionRate := 0.0
		if agg.conversionRateRuns > 0 {
			conversionRate = U.RoundTwoDecimals(agg.conversionRateSum / float64(agg.conversionRateRuns))
		}
		merged = append(merged, ReferrerAnalytics{
			Referrer:       key,
			ReferrerParsed: agg.parsed,
			TotalUsers:     agg.totalUsers,
			CompletedUsers: agg.completedUsers,
			ConversionRate: conversionRate,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].TotalUsers > merged[j].TotalUsers
	})
	return merged
}
