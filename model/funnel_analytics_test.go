package model

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventStore serves canned rows and records the last query it saw.
type fakeEventStore struct {
	rows       []StepOccurrence
	referrers  map[string]string
	totalUsers int
	err        error

	lastQuery *OccurrenceQuery
}

func (f *fakeEventStore) StepOccurrences(ctx context.Context, q OccurrenceQuery) ([]StepOccurrence, error) {
	f.lastQuery = &q
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeEventStore) FirstReferrers(ctx context.Context, q OccurrenceQuery) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.referrers, nil
}

func (f *fakeEventStore) TotalWebsiteUsers(ctx context.Context, websiteID string, from, to time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.totalUsers, nil
}

type fakeDefinitionStore struct {
	funnels map[string]*FunnelDefinition
}

func (f *fakeDefinitionStore) GetFunnel(ctx context.Context, websiteID, funnelID string) (*FunnelDefinition, error) {
	funnel, found := f.funnels[funnelID]
	if !found || funnel.WebsiteID != websiteID {
		return nil, ErrFunnelNotFound
	}
	return funnel, nil
}

func (f *fakeDefinitionStore) GetFunnels(ctx context.Context, websiteID string, funnelIDs []string) ([]*FunnelDefinition, error) {
	var funnels []*FunnelDefinition
	for _, id := range funnelIDs {
		if funnel, found := f.funnels[id]; found && funnel.WebsiteID == websiteID {
			funnels = append(funnels, funnel)
		}
	}
	return funnels, nil
}

var baseTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

func occurrence(sessionID string, step, minutes int) StepOccurrence {
	return StepOccurrence{SessionID: sessionID, StepNumber: step, FirstOccurrence: at(minutes)}
}

func threeStepFunnel() *FunnelDefinition {
	return &FunnelDefinition{
		ID:        "fn1",
		WebsiteID: "site1",
		Name:      "Signup",
		Steps: []Step{
			{Type: StepTypePageView, Target: "/pricing", Name: "Pricing"},
			{Type: StepTypePageView, Target: "/signup", Name: "Signup"},
			{Type: StepTypeEvent, Target: "signup_completed", Name: "Completed"},
		},
	}
}

func TestCalculateStepCountsEnforcesStrictOrder(t *testing.T) {
	// Step 2 fires before step 1 in the session's own timeline; only step 1
	// may be credited.
	sessionEvents := groupSessionOccurrences([]StepOccurrence{
		occurrence("s1", 2, 1),
		occurrence("s1", 1, 2),
		occurrence("s1", 3, 3),
	})

	reached := calculateStepCounts(sessionEvents, 3)
	assert.True(t, reached[0]["s1"])
	assert.False(t, reached[1]["s1"])
	assert.False(t, reached[2]["s1"])
}

func TestCalculateStepCountsNesting(t *testing.T) {
	sessionEvents := groupSessionOccurrences([]StepOccurrence{
		occurrence("a", 1, 1), occurrence("a", 2, 2), occurrence("a", 3, 3),
		occurrence("b", 1, 1), occurrence("b", 3, 2),
		occurrence("c", 2, 1), occurrence("c", 1, 2), occurrence("c", 2, 5),
		occurrence("d", 3, 1),
	})

	reached := calculateStepCounts(sessionEvents, 3)
	for i := 1; i < len(reached); i++ {
		for sessionID := range reached[i] {
			assert.Truef(t, reached[i-1][sessionID], "session %s at step %d missing from step %d", sessionID, i+1, i)
		}
	}

	// c's second step-2 row at t=5 comes after its step-1 row, so c reaches
	// step 2 despite the earlier out-of-order row.
	assert.True(t, reached[1]["c"])
	assert.False(t, reached[0]["d"])
}

func TestBuildFunnelAnalyticsRoundTrip(t *testing.T) {
	// A completes all steps, B stops after step 2, C after step 1.
	sessionEvents := groupSessionOccurrences([]StepOccurrence{
		occurrence("A", 1, 1), occurrence("A", 2, 2), occurrence("A", 3, 3),
		occurrence("B", 1, 1), occurrence("B", 2, 2),
		occurrence("C", 1, 1),
	})
	reached := calculateStepCounts(sessionEvents, 3)

	require.Len(t, reached[0], 3)
	require.Len(t, reached[1], 2)
	require.Len(t, reached[2], 1)

	result := buildFunnelAnalytics(numberedSteps(threeStepFunnel().Steps), reached)

	assert.Equal(t, 3, result.TotalUsersEntered)
	assert.Equal(t, 1, result.TotalUsersCompleted)
	assert.Equal(t, 33.33, result.OverallConversionRate)

	require.Len(t, result.StepsAnalytics, 3)
	assert.Equal(t, 100.0, result.StepsAnalytics[0].ConversionRate)
	assert.Equal(t, 0, result.StepsAnalytics[0].Dropoffs)

	assert.Equal(t, 66.67, result.StepsAnalytics[1].ConversionRate)
	assert.Equal(t, 1, result.StepsAnalytics[1].Dropoffs)
	assert.Equal(t, 33.33, result.StepsAnalytics[1].DropoffRate)

	assert.Equal(t, 50.0, result.StepsAnalytics[2].ConversionRate)
	assert.Equal(t, 50.0, result.StepsAnalytics[2].DropoffRate)

	assert.Equal(t, 3, result.BiggestDropoffStep)
	assert.Equal(t, 50.0, result.BiggestDropoffRate)
}

func TestBuildFunnelAnalyticsBiggestDropoffTieResolvesEarliest(t *testing.T) {
	// 4 -> 2 -> 1: both transitions drop 50%; the earlier step wins.
	sessionEvents := groupSessionOccurrences([]StepOccurrence{
		occurrence("a", 1, 1), occurrence("a", 2, 2), occurrence("a", 3, 3),
		occurrence("b", 1, 1), occurrence("b", 2, 2),
		occurrence("c", 1, 1),
		occurrence("d", 1, 1),
	})
	reached := calculateStepCounts(sessionEvents, 3)
	result := buildFunnelAnalytics(numberedSteps(threeStepFunnel().Steps), reached)

	assert.Equal(t, 2, result.BiggestDropoffStep)
	assert.Equal(t, 50.0, result.BiggestDropoffRate)
}

func TestRunFunnelAnalytics(t *testing.T) {
	events := &fakeEventStore{rows: []StepOccurrence{
		occurrence("A", 1, 1), occurrence("A", 2, 2), occurrence("A", 3, 3),
		occurrence("B", 1, 1),
	}}
	definitions := &fakeDefinitionStore{funnels: map[string]*FunnelDefinition{"fn1": threeStepFunnel()}}
	analyzer := NewFunnelAnalyzer(events, definitions, nil)

	result, err := analyzer.RunFunnelAnalytics(context.Background(), AnalyticsRequest{
		WebsiteID: "site1",
		FunnelID:  "fn1",
		StartDate: "2026-01-10",
		EndDate:   "2026-01-10",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalUsersEntered)
	assert.Equal(t, 1, result.TotalUsersCompleted)
	assert.Equal(t, 50.0, result.OverallConversionRate)

	// The store must have been queried with the resolved inclusive range.
	require.NotNil(t, events.lastQuery)
	assert.Equal(t, "site1", events.lastQuery.WebsiteID)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), events.lastQuery.From)
	assert.Equal(t, 23, events.lastQuery.To.Hour())
	assert.Equal(t, 59, events.lastQuery.To.Minute())
	require.Len(t, events.lastQuery.Steps, 3)
	assert.Equal(t, 1, events.lastQuery.Steps[0].Number)
	assert.Equal(t, 3, events.lastQuery.Steps[2].Number)
}

func TestRunFunnelAnalyticsNotFound(t *testing.T) {
	analyzer := NewFunnelAnalyzer(&fakeEventStore{}, &fakeDefinitionStore{funnels: map[string]*FunnelDefinition{}}, nil)

	_, err := analyzer.RunFunnelAnalytics(context.Background(), AnalyticsRequest{WebsiteID: "site1", FunnelID: "missing"})
	assert.True(t, errors.Is(err, ErrFunnelNotFound))
}

func TestRunFunnelAnalyticsQueryFailureAborts(t *testing.T) {
	events := &fakeEventStore{err: errors.New("clickhouse unavailable")}
	definitions := &fakeDefinitionStore{funnels: map[string]*FunnelDefinition{"fn1": threeStepFunnel()}}
	analyzer := NewFunnelAnalyzer(events, definitions, nil)

	result, err := analyzer.RunFunnelAnalytics(context.Background(), AnalyticsRequest{WebsiteID: "site1", FunnelID: "fn1"})
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestRunFunnelAnalyticsZeroSessions(t *testing.T) {
	events := &fakeEventStore{}
	definitions := &fakeDefinitionStore{funnels: map[string]*FunnelDefinition{"fn1": threeStepFunnel()}}
	analyzer := NewFunnelAnalyzer(events, definitions, nil)

	result, err := analyzer.RunFunnelAnalytics(context.Background(), AnalyticsRequest{WebsiteID: "site1", FunnelID: "fn1"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalUsersEntered)
	assert.Equal(t, 0.0, result.OverallConversionRate)
	require.Len(t, result.StepsAnalytics, 3)
	for _, step := range result.StepsAnalytics {
		assert.Equal(t, 0, step.Users)
		assert.Equal(t, 0.0, step.DropoffRate)
	}
	// Entry step keeps its 100% definition; later steps have no cohort.
	assert.Equal(t, 100.0, result.StepsAnalytics[0].ConversionRate)
	assert.Equal(t, 0.0, result.StepsAnalytics[1].ConversionRate)
}

func TestRunFunnelAnalyticsGoalDegeneracy(t *testing.T) {
	events := &fakeEventStore{rows: []StepOccurrence{
		occurrence("A", 1, 1), occurrence("B", 1, 2),
	}}
	definitions := &fakeDefinitionStore{funnels: map[string]*FunnelDefinition{
		"goal1": {
			ID:        "goal1",
			WebsiteID: "site1",
			Name:      "Checkout",
			Steps:     []Step{{Type: StepTypeEvent, Target: "checkout", Name: "Checkout"}},
		},
	}}
	analyzer := NewFunnelAnalyzer(events, definitions, nil)

	result, err := analyzer.RunFunnelAnalytics(context.Background(), AnalyticsRequest{WebsiteID: "site1", FunnelID: "goal1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalUsersEntered)
	assert.Equal(t, 2, result.TotalUsersCompleted)
	assert.Equal(t, 100.0, result.OverallConversionRate)
	assert.Equal(t, 1, result.BiggestDropoffStep)
	assert.Equal(t, 0.0, result.BiggestDropoffRate)
}

func TestRunFunnelAnalyticsDropsInvalidFilters(t *testing.T) {
	funnel := threeStepFunnel()
	funnel.Filters = []Filter{
		{Field: "country", Operator: OperatorEquals, Value: "DE"},
		{Field: "not_a_real_field", Operator: OperatorEquals, Value: "x"},
		{Field: "path", Operator: "regex", Value: ".*"},
	}
	events := &fakeEventStore{}
	definitions := &fakeDefinitionStore{funnels: map[string]*FunnelDefinition{"fn1": funnel}}
	analyzer := NewFunnelAnalyzer(events, definitions, nil)

	_, err := analyzer.RunFunnelAnalytics(context.Background(), AnalyticsRequest{WebsiteID: "site1", FunnelID: "fn1"})
	require.NoError(t, err)

	require.NotNil(t, events.lastQuery)
	require.Len(t, events.lastQuery.Filters, 1)
	assert.Equal(t, "country", events.lastQuery.Filters[0].Field)
}
