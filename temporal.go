package loracache

import (
	"net/url"
	"time"
)

// Temporal selects the query window of a populate run.
type Temporal struct {
	FullHistory bool `msgpack:"full_history"`
	SkipPast    bool `msgpack:"skip_past"`
}

var (
	ActualState            = Temporal{}
	FullHistory            = Temporal{FullHistory: true}
	FullHistorySkipPast    = Temporal{FullHistory: true, SkipPast: true}
	TemporalConfigurations = []Temporal{ActualState, FullHistory, FullHistorySkipPast}
)

// Window is a resolved query window. Nil bounds are open.
type Window struct {
	From *time.Time
	To   *time.Time
	// KeepHistory is set when every revision per entity is retained.
	KeepHistory bool
	// Now is the instant the window was resolved at.
	Now time.Time
}

// Resolve computes the window at now. SkipPast has no effect without FullHistory.
func (t Temporal) Resolve(now time.Time) Window {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if !t.FullHistory {
		tomorrow := today.AddDate(0, 0, 1)
		return Window{From: &today, To: &tomorrow, Now: now}
	}

	if t.SkipPast {
		return Window{From: &today, KeepHistory: true, Now: now}
	}

	return Window{KeepHistory: true, Now: now}
}

// Name is the deterministic configuration name used in blob names and metrics.
func (t Temporal) Name() string {
	switch {
	case t.FullHistory && t.SkipPast:
		return "full_history_skip_past"
	case t.FullHistory:
		return "full_history"
	default:
		return "actual_state"
	}
}

func (t Temporal) String() string {
	return t.Name()
}

// Today is the window's reference day as YYYY-MM-DD.
func (w Window) Today() string {
	return w.Now.Format(DateLayout)
}

// Contains reports whether the interval [from, to) intersects the window.
// Zero times are open bounds.
func (w Window) Contains(from, to time.Time) bool {
	if w.From != nil && !to.IsZero() && !to.After(*w.From) {
		return false
	}

	if w.To != nil && !from.IsZero() && !from.Before(*w.To) {
		return false
	}

	return true
}

// RegistryParams renders the window as bitemporal registry virkning parameters.
func (w Window) RegistryParams() url.Values {
	params := url.Values{}
	params.Set("virkningfra", "-infinity")
	params.Set("virkningtil", "infinity")

	if w.From != nil {
		params.Set("virkningfra", w.From.Format(DateLayout))
	}

	if w.To != nil {
		params.Set("virkningtil", w.To.Format(DateLayout))
	}

	return params
}

// GraphQLVariables renders the window as from_date/to_date variables.
// Actual state sends no dates and lets the server default to now.
func (w Window) GraphQLVariables() map[string]any {
	if !w.KeepHistory {
		return map[string]any{}
	}

	vars := map[string]any{"from_date": nil, "to_date": nil}
	if w.From != nil {
		vars["from_date"] = w.From.Format(time.RFC3339)
	}

	if w.To != nil {
		vars["to_date"] = w.To.Format(time.RFC3339)
	}

	return vars
}
