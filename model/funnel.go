package model

import "github.com/pkg/errors"

// Step is one stage of a funnel, matched against page or event data.
// Number is the 1-based position and defines the required order.
type Step struct {
	Number int    `json:"step_number"`
	Type   string `json:"type"`
	Target string `json:"target"`
	Name   string `json:"name"`
}

// Filter restricts which events participate in an analysis. Value carries the
// literal for scalar operators; Values carries the set for in / not_in.
type Filter struct {
	Field    string   `json:"field"`
	Operator string   `json:"operator"`
	Value    string   `json:"value,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// IsValid reports whether the filter references a recognized field and
// operator, with a usable value. Invalid filters are dropped from the
// analysis, not rejected.
func (f *Filter) IsValid() bool {
	if !AllowedFilterFields[f.Field] || !AllowedFilterOperators[f.Operator] {
		return false
	}
	if f.Operator == OperatorIn || f.Operator == OperatorNotIn {
		return len(f.Values) > 0
	}
	return true
}

// ValidFilters partitions filters into the kept set and the silently dropped
// set. The analysis always runs on the kept set alone.
func ValidFilters(filters []Filter) (valid, dropped []Filter) {
	for i := range filters {
		if filters[i].IsValid() {
			valid = append(valid, filters[i])
		} else {
			dropped = append(dropped, filters[i])
		}
	}
	return valid, dropped
}

// FunnelDefinition is an immutable funnel or goal definition. A funnel has two
// or more ordered steps; a goal is the degenerate single step case.
type FunnelDefinition struct {
	ID        string   `json:"id"`
	WebsiteID string   `json:"website_id"`
	Name      string   `json:"name"`
	Steps     []Step   `json:"steps"`
	Filters   []Filter `json:"filters,omitempty"`
}

// IsGoal Reports whether the definition is a single step goal.
func (fd *FunnelDefinition) IsGoal() bool {
	return len(fd.Steps) == 1
}

// Validate checks the definition is runnable.
func (fd *FunnelDefinition) Validate() error {
	if len(fd.Steps) == 0 {
		return errors.New("funnel has no steps")
	}
	for i := range fd.Steps {
		if fd.Steps[i].Target == "" {
			return errors.Errorf("funnel step %d has no target", i+1)
		}
	}
	return nil
}

// numberedSteps returns a copy of the steps with Number assigned from
// position. Step order in the definition is authoritative regardless of any
// numbering the caller supplied.
func numberedSteps(steps []Step) []Step {
	numbered := make([]Step, len(steps))
	for i, step := range steps {
		step.Number = i + 1
		numbered[i] = step
	}
	return numbered
}
