package clickhouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"funnelytics/model"
)

// EventStore implements model.EventStore on ClickHouse.
type EventStore struct {
	client *Client
	log    log.FieldLogger
}

func NewEventStore(client *Client, logger log.FieldLogger) *EventStore {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &EventStore{client: client, log: logger}
}

// StepOccurrences queries each step independently and concurrently, returning
// the union of the per step first-occurrence rows. Any step query failure
// aborts the whole pull.
func (s *EventStore) StepOccurrences(ctx context.Context, q model.OccurrenceQuery) ([]model.StepOccurrence, error) {
	filterCond, filterParams, dropped := buildFilterConditions(q.Filters)
	for _, field := range dropped {
		s.log.WithField("field", field).Warn("Dropped invalid filter in step query.")
	}

	var mu sync.Mutex
	var all []model.StepOccurrence

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range q.Steps {
		step := step
		g.Go(func() error {
			stmnt, params := buildStepQuery(step, q, filterCond, filterParams)

			rows, err := s.client.conn.Query(gctx, stmnt, params...)
			if err != nil {
				return errors.Wrapf(err, "step %d occurrence query", step.Number)
			}
			defer rows.Close()

			var batch []model.StepOccurrence
			for rows.Next() {
				var sessionID string
				var firstOccurrence time.Time
				if err := rows.Scan(&sessionID, &firstOccurrence); err != nil {
					return errors.Wrapf(err, "step %d occurrence scan", step.Number)
				}
				batch = append(batch, model.StepOccurrence{
					SessionID:       sessionID,
					StepNumber:      step.Number,
					FirstOccurrence: firstOccurrence,
				})
			}
			if err := rows.Err(); err != nil {
				return errors.Wrapf(err, "step %d occurrence rows", step.Number)
			}

			mu.Lock()
			all = append(all, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// buildStepQuery builds the per session first-occurrence query for one step.
// PAGE_VIEW steps match the path exactly or as a substring; EVENT and CUSTOM
// steps resolve to the same event name predicate over both the events and
// custom_events tables.
func buildStepQuery(step model.Step, q model.OccurrenceQuery, filterCond string, filterParams []interface{}) (string, []interface{}) {
	if step.Type == model.StepTypePageView {
		stmnt := fmt.Sprintf(`
			SELECT anonymous_id, MIN(time) AS first_occurrence
			FROM analytics.events
			WHERE client_id = ?
				AND time >= ? AND time <= ?
				AND event_name = '%s'
				AND (path = ? OR path LIKE ?)%s
			GROUP BY anonymous_id`,
			model.EventNamePageView, filterCond)

		params := []interface{}{q.WebsiteID, q.From, q.To, step.Target, "%" + likeEscaper.Replace(step.Target) + "%"}
		return stmnt, append(params, filterParams...)
	}

	stmnt := fmt.Sprintf(`
		SELECT anonymous_id, MIN(first_occurrence) AS first_occurrence
		FROM (
			SELECT anonymous_id, time AS first_occurrence
			FROM analytics.events
			WHERE client_id = ?
				AND time >= ? AND time <= ?
				AND event_name = ?%s
			UNION ALL
			SELECT anonymous_id, timestamp AS first_occurrence
			FROM analytics.custom_events
			WHERE client_id = ?
				AND timestamp >= ? AND timestamp <= ?
				AND event_name = ?
		) AS event_union
		GROUP BY anonymous_id`, filterCond)

	params := []interface{}{q.WebsiteID, q.From, q.To, step.Target}
	params = append(params, filterParams...)
	params = append(params, q.WebsiteID, q.From, q.To, step.Target)
	return stmnt, params
}

// FirstReferrers returns each session's earliest non-empty referrer across
// all page views in range.
func (s *EventStore) FirstReferrers(ctx context.Context, q model.OccurrenceQuery) (map[string]string, error) {
	filterCond, filterParams, _ := buildFilterConditions(q.Filters)

	stmnt := fmt.Sprintf(`
		SELECT anonymous_id, argMin(referrer, time) AS first_referrer
		FROM analytics.events
		WHERE client_id = ?
			AND time >= ? AND time <= ?
			AND event_name = '%s'
			AND referrer != ''%s
		GROUP BY anonymous_id`,
		model.EventNamePageView, filterCond)

	params := append([]interface{}{q.WebsiteID, q.From, q.To}, filterParams...)
	rows, err := s.client.conn.Query(ctx, stmnt, params...)
	if err != nil {
		return nil, errors.Wrap(err, "first referrers query")
	}
	defer rows.Close()

	referrers := make(map[string]string)
	for rows.Next() {
		var sessionID, firstReferrer string
		if err := rows.Scan(&sessionID, &firstReferrer); err != nil {
			return nil, errors.Wrap(err, "first referrers scan")
		}
		referrers[sessionID] = firstReferrer
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "first referrers rows")
	}
	return referrers, nil
}

// TotalWebsiteUsers counts distinct sessions with any page view in range.
func (s *EventStore) TotalWebsiteUsers(ctx context.Context, websiteID string, from, to time.Time) (int, error) {
	stmnt := fmt.Sprintf(`
		SELECT uniqExact(anonymous_id) AS total_users
		FROM analytics.events
		WHERE client_id = ?
			AND time >= ? AND time <= ?
			AND event_name = '%s'`,
		model.EventNamePageView)

	var totalUsers uint64
	if err := s.client.conn.QueryRow(ctx, stmnt, websiteID, from, to).Scan(&totalUsers); err != nil {
		return 0, errors.Wrap(err, "total website users query")
	}
	return int(totalUsers), nil
}
