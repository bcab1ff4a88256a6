// Package memstore provides in-memory implementations of the analytics
// collaborator interfaces, backed by plain event slices. It mirrors the
// ClickHouse store's matching semantics and is used by engine tests and local
// runs against canned data.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"funnelytics/model"
)

// Event is one raw analytics event.
type Event struct {
	WebsiteID string
	SessionID string
	Name      string // event name; page views use model.EventNamePageView
	Path      string
	Referrer  string
	Time      time.Time
	// Props holds the remaining filterable attributes, keyed by field name
	// (country, utm_source, ...).
	Props map[string]string
}

// EventStore is a slice-backed model.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events []Event
}

var _ model.EventStore = (*EventStore)(nil)

func NewEventStore(events ...Event) *EventStore {
	return &EventStore{events: events}
}

func (s *EventStore) Add(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// StepOccurrences returns one row per (session, step) with the session's
// earliest matching event time.
func (s *EventStore) StepOccurrences(ctx context.Context, q model.OccurrenceQuery) ([]model.StepOccurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	valid, _ := model.ValidFilters(q.Filters)

	var rows []model.StepOccurrence
	for _, step := range q.Steps {
		first := make(map[string]time.Time)
		for _, event := range s.events {
			if !inScope(event, q, valid) || !matchesStep(event, step) {
				continue
			}
			if seen, found := first[event.SessionID]; !found || event.Time.Before(seen) {
				first[event.SessionID] = event.Time
			}
		}
		for sessionID, t := range first {
			rows = append(rows, model.StepOccurrence{
				SessionID:       sessionID,
				StepNumber:      step.Number,
				FirstOccurrence: t,
			})
		}
	}
	return rows, nil
}

// FirstReferrers returns each session's earliest non-empty referrer across
// its page views in range.
func (s *EventStore) FirstReferrers(ctx context.Context, q model.OccurrenceQuery) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	valid, _ := model.ValidFilters(q.Filters)

	firstAt := make(map[string]time.Time)
	referrers := make(map[string]string)
	for _, event := range s.events {
		if !inScope(event, q, valid) || event.Name != model.EventNamePageView || event.Referrer == "" {
			continue
		}
		if seen, found := firstAt[event.SessionID]; !found || event.Time.Before(seen) {
			firstAt[event.SessionID] = event.Time
			referrers[event.SessionID] = event.Referrer
		}
	}
	return referrers, nil
}

// TotalWebsiteUsers counts distinct sessions with any page view in range.
func (s *EventStore) TotalWebsiteUsers(ctx context.Context, websiteID string, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make(map[string]bool)
	for _, event := range s.events {
		if event.WebsiteID != websiteID || event.Name != model.EventNamePageView {
			continue
		}
		if event.Time.Before(from) || event.Time.After(to) {
			continue
		}
		sessions[event.SessionID] = true
	}
	return len(sessions), nil
}

func inScope(event Event, q model.OccurrenceQuery, filters []model.Filter) bool {
	if event.WebsiteID != q.WebsiteID {
		return false
	}
	if event.Time.Before(q.From) || event.Time.After(q.To) {
		return false
	}
	for i := range filters {
		if !matchesFilter(event, &filters[i]) {
			return false
		}
	}
	return true
}

func matchesStep(event Event, step model.Step) bool {
	if step.Type == model.StepTypePageView {
		return event.Name == model.EventNamePageView &&
			(event.Path == step.Target || strings.Contains(event.Path, step.Target))
	}
	// EVENT and CUSTOM resolve to the same predicate.
	return event.Name == step.Target
}

func fieldValue(event Event, field string) string {
	switch field {
	case "event_name":
		return event.Name
	case "path":
		return event.Path
	case "referrer":
		return event.Referrer
	default:
		return event.Props[field]
	}
}

func matchesFilter(event Event, filter *model.Filter) bool {
	value := fieldValue(event, filter.Field)
	switch filter.Operator {
	case model.OperatorEquals:
		return value == filter.Value
	case model.OperatorNotEquals:
		return value != filter.Value
	case model.OperatorContains:
		return strings.Contains(value, filter.Value)
	case model.OperatorIn:
		return containsValue(filter.Values, value)
	case model.OperatorNotIn:
		return !containsValue(filter.Values, value)
	}
	return false
}

func containsValue(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// DefinitionStore is an in-memory model.DefinitionStore.
type DefinitionStore struct {
	mu      sync.RWMutex
	funnels map[string]*model.FunnelDefinition
}

var _ model.DefinitionStore = (*DefinitionStore)(nil)

func NewDefinitionStore(funnels ...*model.FunnelDefinition) *DefinitionStore {
	store := &DefinitionStore{funnels: make(map[string]*model.FunnelDefinition)}
	for _, funnel := range funnels {
		store.funnels[funnel.ID] = funnel
	}
	return store
}

func (s *DefinitionStore) Put(funnel *model.FunnelDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funnels[funnel.ID] = funnel
}

func (s *DefinitionStore) GetFunnel(ctx context.Context, websiteID, funnelID string) (*model.FunnelDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	funnel, found := s.funnels[funnelID]
	if !found || funnel.WebsiteID != websiteID {
		return nil, model.ErrFunnelNotFound
	}
	return funnel, nil
}

func (s *DefinitionStore) GetFunnels(ctx context.Context, websiteID string, funnelIDs []string) ([]*model.FunnelDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var funnels []*model.FunnelDefinition
	for _, id := range funnelIDs {
		if funnel, found := s.funnels[id]; found && funnel.WebsiteID == websiteID {
			funnels = append(funnels, funnel)
		}
	}
	return funnels, nil
}
