// Package compare checks that the legacy and GraphQL engines produce the same
// store, after correcting for the legacy engine's known defects.
package compare

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/wI2L/jsondiff"

	lc "github.com/os2mo/loracache"
)

// Kinds the legacy engine fails to close out.
var neverEndingKinds = map[lc.Kind]bool{
	lc.KindUnit:         true,
	lc.KindITConnection: true,
	lc.KindManager:      true,
}

// Divergence holds the rows of one key left unmatched after corrections.
type Divergence struct {
	Key    string         `json:"key"`
	Legacy []lc.Snapshot  `json:"legacy"`
	New    []lc.Snapshot  `json:"new"`
	Patch  jsondiff.Patch `json:"patch,omitempty"`
}

type Corrections struct {
	NeverEndingDropped int `json:"never_ending_dropped"`
	NeverEndingClosed  int `json:"never_ending_closed"`
	ReopenedCollapsed  int `json:"reopened_collapsed"`
	DARBackfilled      int `json:"dar_backfilled"`
}

type KindResult struct {
	Kind        lc.Kind      `json:"kind"`
	Equivalent  bool         `json:"equivalent"`
	LegacyKeys  int          `json:"legacy_keys"`
	NewKeys     int          `json:"new_keys"`
	Corrections Corrections  `json:"corrections"`
	Divergences []Divergence `json:"divergences,omitempty"`
}

// Report is the verdict of one configuration.
type Report struct {
	Configuration string       `json:"configuration"`
	Equivalent    bool         `json:"equivalent"`
	Kinds         []KindResult `json:"kinds"`
}

// Divergent lists the kinds that are not equivalent.
func (r Report) Divergent() []lc.Kind {
	var out []lc.Kind
	for _, k := range r.Kinds {
		if !k.Equivalent {
			out = append(out, k.Kind)
		}
	}

	return out
}

// CompareStores compares every kind of legacy and newer. reference is the
// full-history store of the new engine; without it entities the legacy engine
// never closed cannot be told apart and are reported as divergent.
func CompareStores(legacy, newer, reference *lc.Store, policy IgnorePolicy, configuration string) Report {
	report := Report{Configuration: configuration, Equivalent: true}

	for _, kind := range lc.Kinds {
		var ref lc.Entities
		if reference != nil {
			ref = reference.Entities(kind)
		}

		result := compareKind(kind, legacy.Entities(kind), newer.Entities(kind), ref, policy.Fields(kind))
		report.Equivalent = report.Equivalent && result.Equivalent
		report.Kinds = append(report.Kinds, result)
	}

	return report
}

func compareKind(kind lc.Kind, legacyEnts, newEnts, ref lc.Entities, ignored []string) KindResult {
	legacyEnts = stripped(legacyEnts, ignored)
	newEnts = stripped(newEnts, ignored)

	result := KindResult{Kind: kind, LegacyKeys: len(legacyEnts), NewKeys: len(newEnts)}

	if kind == lc.KindAddress {
		result.Corrections.DARBackfilled = backfillDAR(legacyEnts, newEnts)
	}

	keys := map[string]struct{}{}
	for k := range legacyEnts {
		keys[k] = struct{}{}
	}
	for k := range newEnts {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		legacyRows, newRows := legacyEnts[key], newEnts[key]

		if len(newRows) > len(legacyRows) {
			var collapsed int
			newRows, collapsed = collapseReopened(newRows)
			result.Corrections.ReopenedCollapsed += collapsed
		}

		legacyOnly, newOnly := unmatched(legacyRows, newRows)

		if neverEndingKinds[kind] && ref != nil && len(legacyOnly) > 0 {
			var dropped, closed int
			legacyOnly, newOnly, dropped, closed = correctNeverEnding(legacyOnly, newOnly, ref[key])
			result.Corrections.NeverEndingDropped += dropped
			result.Corrections.NeverEndingClosed += closed
		}

		if len(legacyOnly) == 0 && len(newOnly) == 0 {
			continue
		}

		d := Divergence{Key: key, Legacy: legacyOnly, New: newOnly}
		if patch, err := jsondiff.Compare(legacyOnly, newOnly); err == nil {
			d.Patch = patch
		}
		result.Divergences = append(result.Divergences, d)
	}

	result.Equivalent = len(result.Divergences) == 0

	return result
}

func stripped(ents lc.Entities, ignored []string) lc.Entities {
	out := make(lc.Entities, len(ents))
	for id, snapshots := range ents {
		rows := make([]lc.Snapshot, 0, len(snapshots))
		for _, s := range snapshots {
			rows = append(rows, s.Without(ignored...))
		}
		out[id] = rows
	}

	return out
}

// backfillDAR copies the new engine's resolved DAR text onto legacy rows
// that reference the same DAR uuid without text.
func backfillDAR(legacyEnts, newEnts lc.Entities) int {
	filled := 0
	for key, rows := range legacyEnts {
		for _, row := range rows {
			darUUID := row.String("dar_uuid")
			if darUUID == "" || row.String("value") != "" {
				continue
			}
			for _, candidate := range newEnts[key] {
				if candidate.String("dar_uuid") == darUUID && candidate.String("value") != "" {
					row["value"] = candidate["value"]
					filled++
					break
				}
			}
		}
	}

	return filled
}

// collapseReopened merges every run of consecutive rows (by from_date) that
// are equal except for validity. The run keeps the oldest row's fields and
// from_date; its to_date is extended to the to_date of the last merged row.
func collapseReopened(rows []lc.Snapshot) ([]lc.Snapshot, int) {
	sorted := make([]lc.Snapshot, len(rows))
	for i, r := range rows {
		sorted[i] = r.Clone()
	}
	lc.SortByFromDate(sorted)

	out := make([]lc.Snapshot, 0, len(sorted))
	collapsed := 0
	for _, row := range sorted {
		if n := len(out); n > 0 && fieldsEqual(out[n-1], row, lc.FieldFromDate, lc.FieldToDate) {
			out[n-1][lc.FieldToDate] = row[lc.FieldToDate]
			collapsed++
			continue
		}
		out = append(out, row)
	}

	return out, collapsed
}

// correctNeverEnding handles legacy rows with no counterpart. A key the
// reference never saw is dropped. An open-ended legacy row whose key the
// reference shows terminated is closed when the new engine holds the same row
// with an end, and dropped otherwise.
func correctNeverEnding(legacyOnly, newOnly, refRows []lc.Snapshot) ([]lc.Snapshot, []lc.Snapshot, int, int) {
	if len(refRows) == 0 {
		return nil, newOnly, len(legacyOnly), 0
	}

	terminated := true
	for _, r := range refRows {
		if lc.IsTechnicallyNone(r[lc.FieldToDate]) {
			terminated = false
			break
		}
	}

	var keep []lc.Snapshot
	dropped, closed := 0, 0
	for _, row := range legacyOnly {
		if !terminated || !lc.IsTechnicallyNone(row[lc.FieldToDate]) {
			keep = append(keep, row)
			continue
		}

		idx := slices.IndexFunc(newOnly, func(n lc.Snapshot) bool {
			return fieldsEqual(row, n, lc.FieldToDate)
		})
		if idx >= 0 {
			newOnly = slices.Delete(slices.Clone(newOnly), idx, idx+1)
			closed++
			continue
		}
		dropped++
	}

	return keep, newOnly, dropped, closed
}

// unmatched returns the rows of either side without an equal row on the other.
func unmatched(legacyRows, newRows []lc.Snapshot) ([]lc.Snapshot, []lc.Snapshot) {
	var legacyOnly, newOnly []lc.Snapshot

	for _, l := range legacyRows {
		if !slices.ContainsFunc(newRows, func(n lc.Snapshot) bool { return rowsEqual(l, n) }) {
			legacyOnly = append(legacyOnly, l)
		}
	}

	for _, n := range newRows {
		if !slices.ContainsFunc(legacyRows, func(l lc.Snapshot) bool { return rowsEqual(l, n) }) {
			newOnly = append(newOnly, n)
		}
	}

	return legacyOnly, newOnly
}

func rowsEqual(a, b lc.Snapshot) bool {
	if !lc.IsSameDate(a[lc.FieldFromDate], b[lc.FieldFromDate]) {
		return false
	}

	if !lc.IsSameDate(a[lc.FieldToDate], b[lc.FieldToDate]) {
		return false
	}

	return fieldsEqual(a, b, lc.FieldFromDate, lc.FieldToDate)
}

// fieldsEqual compares every field except skip. A missing field, nil and ""
// are equal; lists compare as sets.
func fieldsEqual(a, b lc.Snapshot, skip ...string) bool {
	fields := map[string]struct{}{}
	for k := range a {
		fields[k] = struct{}{}
	}
	for k := range b {
		fields[k] = struct{}{}
	}

	for f := range fields {
		if slices.Contains(skip, f) {
			continue
		}
		if !valuesEqual(a[f], b[f]) {
			return false
		}
	}

	return true
}

func valuesEqual(a, b any) bool {
	if isEmpty(a) || isEmpty(b) {
		return isEmpty(a) && isEmpty(b)
	}

	la, listA := a.([]string)
	lb, listB := b.([]string)
	if listA || listB {
		return listA && listB && sameSet(la, lb)
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	}

	return false
}

func sameSet(a, b []string) bool {
	sa, sb := slices.Clone(a), slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)

	return slices.Equal(slices.Compact(sa), slices.Compact(sb))
}
