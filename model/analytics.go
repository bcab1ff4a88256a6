package model

import "funnelytics/referrer"

// Step types.
const (
	StepTypePageView = "PAGE_VIEW"
	StepTypeEvent    = "EVENT"
	StepTypeCustom   = "CUSTOM"
)

// EventNamePageView is the reserved event name the tracker emits for page views.
const EventNamePageView = "screen_view"

// Filter operators.
const (
	OperatorEquals    = "equals"
	OperatorNotEquals = "not_equals"
	OperatorContains  = "contains"
	OperatorIn        = "in"
	OperatorNotIn     = "not_in"
)

// AllowedFilterFields is the fixed set of event attributes a filter may
// reference. Filters on anything else are dropped, never interpolated.
var AllowedFilterFields = map[string]bool{
	"event_name":        true,
	"path":              true,
	"referrer":          true,
	"user_agent":        true,
	"ip_address":        true,
	"country":           true,
	"city":              true,
	"device_type":       true,
	"browser":           true,
	"browser_name":      true,
	"os":                true,
	"os_name":           true,
	"screen_resolution": true,
	"language":          true,
	"utm_source":        true,
	"utm_medium":        true,
	"utm_campaign":      true,
	"utm_term":          true,
	"utm_content":       true,
}

// AllowedFilterOperators is the supported filter operator set.
var AllowedFilterOperators = map[string]bool{
	OperatorEquals:    true,
	OperatorNotEquals: true,
	OperatorContains:  true,
	OperatorIn:        true,
	OperatorNotIn:     true,
}

// AnalyticsRequest identifies one funnel analysis: the tenant scope, the funnel
// and an optional date range. Missing dates default to the last 30 days.
// WebsiteDomain, when set, lets referrer attribution fold self-referrals into
// direct traffic.
type AnalyticsRequest struct {
	WebsiteID     string `json:"website_id"`
	FunnelID      string `json:"funnel_id"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	WebsiteDomain string `json:"website_domain,omitempty"`
}

// StepAnalytics is the per step slice of a funnel result.
type StepAnalytics struct {
	StepNumber        int     `json:"step_number"`
	StepName          string  `json:"step_name"`
	Users             int     `json:"users"`
	TotalUsers        int     `json:"total_users"`
	ConversionRate    float64 `json:"conversion_rate"`
	Dropoffs          int     `json:"dropoffs"`
	DropoffRate       float64 `json:"dropoff_rate"`
	AvgTimeToComplete float64 `json:"avg_time_to_complete"`
}

// FunnelAnalytics is the full result of one funnel or goal analysis.
type FunnelAnalytics struct {
	OverallConversionRate      float64         `json:"overall_conversion_rate"`
	TotalUsersEntered          int             `json:"total_users_entered"`
	TotalUsersCompleted        int             `json:"total_users_completed"`
	AvgCompletionTime          float64         `json:"avg_completion_time"`
	AvgCompletionTimeFormatted string          `json:"avg_completion_time_formatted"`
	BiggestDropoffStep         int             `json:"biggest_dropoff_step"`
	BiggestDropoffRate         float64         `json:"biggest_dropoff_rate"`
	StepsAnalytics             []StepAnalytics `json:"steps_analytics"`
}

// ReferrerAnalytics is one canonical referrer group's funnel performance.
type ReferrerAnalytics struct {
	Referrer       string        `json:"referrer"`
	ReferrerParsed referrer.Info `json:"referrer_parsed"`
	TotalUsers     int           `json:"total_users"`
	CompletedUsers int           `json:"completed_users"`
	ConversionRate float64       `json:"conversion_rate"`
}

// ReferrerAnalyticsResult wraps the referrer breakdown of a funnel.
type ReferrerAnalyticsResult struct {
	ReferrerAnalytics []ReferrerAnalytics `json:"referrer_analytics"`
}
