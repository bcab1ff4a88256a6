package util

import (
	"time"

	"github.com/jinzhu/now"
	"github.com/pkg/errors"
)

// Datetime related utility functions. All analytics computation happens in UTC.
const (
	DATETIME_FORMAT_YYYYMMDD_HYPHEN string = "2006-01-02"
)

// DefaultQueryRangeDays is the lookback applied when a query range is not fully specified.
const DefaultQueryRangeDays = 30

// TimeNowZ Return current time in UTC. Should be used everywhere to avoid local timezone.
func TimeNowZ() time.Time {
	return time.Now().UTC()
}

// QueryRangeFor resolves optional YYYY-MM-DD bounds into an inclusive UTC range.
// If either bound is missing the range defaults to the last DefaultQueryRangeDays
// days ending today. The end bound is extended through end of day, so queries
// include events up to endDate 23:59:59.
func QueryRangeFor(startDate, endDate string) (time.Time, time.Time, error) {
	var start, end time.Time

	if startDate == "" || endDate == "" {
		end = TimeNowZ()
		start = end.AddDate(0, 0, -DefaultQueryRangeDays)
	} else {
		var err error
		start, err = time.ParseInLocation(DATETIME_FORMAT_YYYYMMDD_HYPHEN, startDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid start date %s", startDate)
		}
		end, err = time.ParseInLocation(DATETIME_FORMAT_YYYYMMDD_HYPHEN, endDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid end date %s", endDate)
		}
	}

	from := now.New(start).BeginningOfDay()
	to := now.New(end).EndOfDay()
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.Errorf("invalid range %s to %s", startDate, endDate)
	}
	return from, to, nil
}
