package loracache

import (
	"sort"
)

const (
	FieldFromDate = "from_date"
	FieldToDate   = "to_date"
)

// Snapshot is one validity-stamped revision of an entity. Values are limited to
// nil, string, bool, int64, float64 and []string; cross references are bare uuids.
type Snapshot map[string]any

// Entities maps an entity uuid to its snapshots.
type Entities map[string][]Snapshot

// String returns the field as a string, or "" when it is absent, nil or not a string.
func (s Snapshot) String(field string) string {
	v, _ := s[field].(string)
	return v
}

// Strings returns a list field. A single string is returned as a one element list.
func (s Snapshot) Strings(field string) []string {
	switch v := s[field].(type) {
	case []string:
		return v
	case string:
		return []string{v}
	}

	return nil
}

func (s Snapshot) Bool(field string) (bool, bool) {
	v, ok := s[field].(bool)
	return v, ok
}

func (s Snapshot) FromDate() string {
	return s.String(FieldFromDate)
}

func (s Snapshot) ToDate() string {
	return s.String(FieldToDate)
}

// ValidAt reports whether day (YYYY-MM-DD) falls inside [from_date, to_date).
// A missing from_date is open towards the past, a missing to_date towards the future.
func (s Snapshot) ValidAt(day string) bool {
	if from := s.FromDate(); from != "" && day < from {
		return false
	}

	if to := s.ToDate(); to != "" && day >= to {
		return false
	}

	return true
}

// Overlaps reports whether the validity of s and o intersect.
func (s Snapshot) Overlaps(o Snapshot) bool {
	if s.ToDate() != "" && o.FromDate() != "" && s.ToDate() <= o.FromDate() {
		return false
	}

	if o.ToDate() != "" && s.FromDate() != "" && o.ToDate() <= s.FromDate() {
		return false
	}

	return true
}

func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}

	return out
}

// Without returns a copy of s with the given fields removed.
func (s Snapshot) Without(fields ...string) Snapshot {
	out := s.Clone()
	for _, f := range fields {
		delete(out, f)
	}

	return out
}

// SortByFromDate orders snapshots by from_date, open starts first.
func SortByFromDate(snapshots []Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].FromDate() < snapshots[j].FromDate()
	})
}

// Clone deep copies the entity map.
func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for id, snapshots := range e {
		cp := make([]Snapshot, 0, len(snapshots))
		for _, s := range snapshots {
			cp = append(cp, s.Clone())
		}
		out[id] = cp
	}

	return out
}

// At returns the snapshot of id valid at day, if any.
func (e Entities) At(id string, day string) (Snapshot, bool) {
	for _, s := range e[id] {
		if s.ValidAt(day) {
			return s, true
		}
	}

	return nil, false
}

// Count returns the total number of snapshots.
func (e Entities) Count() int {
	n := 0
	for _, snapshots := range e {
		n += len(snapshots)
	}

	return n
}

// canonicalValue folds decoded values back into the snapshot value set.
func canonicalValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return val
			}
			out = append(out, s)
		}
		return out
	}

	return v
}

func (s Snapshot) canonicalize() {
	for k, v := range s {
		s[k] = canonicalValue(v)
	}
}
