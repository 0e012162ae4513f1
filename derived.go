package loracache

import (
	"context"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FieldPrimaryBoolean    = "primary_boolean"
	FieldLocation          = "location"
	FieldManagerUUID       = "manager_uuid"
	FieldActingManagerUUID = "acting_manager_uuid"

	LocationSeparator = `\`
)

// referenceDay picks the day a snapshot is evaluated at: today when the
// snapshot is current, otherwise the first day of its validity.
func referenceDay(s Snapshot, today string) string {
	if s.ValidAt(today) {
		return today
	}

	if from := s.FromDate(); from != "" {
		return from
	}

	if t, err := time.Parse(DateLayout, s.ToDate()); err == nil {
		return t.AddDate(0, 0, -1).Format(DateLayout)
	}

	return today
}

type classInfo struct {
	userKey string
	scope   string
}

func classLookup(classes Entities) func(id string) (classInfo, bool) {
	return func(id string) (classInfo, bool) {
		snapshots := classes[id]
		if id == "" || len(snapshots) == 0 {
			return classInfo{}, false
		}
		last := snapshots[len(snapshots)-1]
		return classInfo{userKey: last.String("user_key"), scope: last.String("scope")}, true
	}
}

type engagementRow struct {
	id   string
	snap Snapshot
	rank int64
}

const ineligible = int64(-1)

// CalculatePrimaryEngagements fills primary_boolean on engagements,
// associations and it connections where the backend did not supply it.
//
// An engagement snapshot is primary when its primary_type class ranks it
// eligible and it beats every overlapping snapshot of the same user's other
// engagements (higher rank, then lower engagement uuid). The order is total,
// so at most one engagement is primary at any instant.
func CalculatePrimaryEngagements(ctx context.Context, store *Store, settings Settings) error {
	class := classLookup(store.Classes())

	configured := settings.PrimaryEngagementClasses
	rankOf := func(s Snapshot) int64 {
		if b, ok := s.Bool(FieldPrimaryBoolean); ok {
			if b {
				return math.MaxInt64
			}
			return ineligible
		}

		primaryType := s.String("primary_type")
		info, ok := class(primaryType)
		if !ok {
			return ineligible
		}

		scope, err := strconv.ParseInt(strings.TrimSpace(info.scope), 10, 64)
		if len(configured) > 0 {
			if !slices.Contains(configured, primaryType) {
				return ineligible
			}
			if err != nil || scope <= 0 {
				return 1
			}
			return scope
		}

		if err != nil || scope <= 0 {
			return ineligible
		}

		return scope
	}

	byUser := map[string][]engagementRow{}
	for id, snapshots := range store.Engagements() {
		for _, s := range snapshots {
			user := s.String("user")
			byUser[user] = append(byUser[user], engagementRow{id: id, snap: s, rank: rankOf(s)})
		}
	}

	beats := func(a, b engagementRow) bool {
		if a.rank != b.rank {
			return a.rank > b.rank
		}
		return a.id < b.id
	}

	primaries := 0
	for _, rows := range byUser {
		for _, row := range rows {
			if _, supplied := row.snap.Bool(FieldPrimaryBoolean); supplied {
				continue
			}

			primary := row.rank != ineligible
			for _, other := range rows {
				if !primary {
					break
				}
				if other.id == row.id || other.rank == ineligible || !row.snap.Overlaps(other.snap) {
					continue
				}
				primary = beats(row, other)
			}

			row.snap[FieldPrimaryBoolean] = primary
			if primary {
				primaries++
			}
		}
	}

	isPrimaryClass := func(s Snapshot) bool {
		info, ok := class(s.String("primary_type"))
		if !ok {
			return false
		}
		if info.userKey == "primary" {
			return true
		}
		scope, err := strconv.ParseInt(strings.TrimSpace(info.scope), 10, 64)
		return err == nil && scope > 0
	}

	for _, kind := range []Kind{KindAssociation, KindITConnection} {
		for _, snapshots := range store.Entities(kind) {
			for _, s := range snapshots {
				if _, supplied := s.Bool(FieldPrimaryBoolean); supplied {
					continue
				}
				s[FieldPrimaryBoolean] = isPrimaryClass(s)
			}
		}
	}

	zerolog.Ctx(ctx).Info().
		Int("users", len(byUser)).
		Int("primary_snapshots", primaries).
		Msg("primary engagements calculated")

	return nil
}

// managerRow pairs an entity uuid with one of its snapshots.
type managerRow struct {
	id   string
	snap Snapshot
}

// CalculateDerivedUnitData fills location, manager_uuid and acting_manager_uuid
// on every unit snapshot and counts the engagements valid today per unit.
//
// The direct manager of a unit is the first non-vacant manager (by manager
// uuid) valid at the reference day. With a responsibility class configured
// only managers carrying that responsibility qualify. The acting manager is
// the direct manager or, failing that, the nearest ancestor's.
func CalculateDerivedUnitData(ctx context.Context, store *Store, settings Settings, today string) error {
	logger := zerolog.Ctx(ctx)
	units := store.Units()

	byUnit := map[string][]managerRow{}
	for id, snapshots := range store.Managers() {
		for _, s := range snapshots {
			if s.String("user") == "" {
				continue
			}
			unit := s.String("unit")
			byUnit[unit] = append(byUnit[unit], managerRow{id: id, snap: s})
		}
	}
	for _, rows := range byUnit {
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].id != rows[j].id {
				return rows[i].id < rows[j].id
			}
			return rows[i].snap.FromDate() < rows[j].snap.FromDate()
		})
	}

	responsibility := settings.PrimaryManagerResponsibility
	directManager := func(unit, day string) string {
		for _, row := range byUnit[unit] {
			if !row.snap.ValidAt(day) {
				continue
			}
			if responsibility != "" && !slices.Contains(row.snap.Strings("manager_responsibility"), responsibility) {
				continue
			}
			return row.id
		}
		return ""
	}

	// ancestors walks the parent chain valid at day, nearest first.
	ancestors := func(id string, s Snapshot, day string) []managerRow {
		var chain []managerRow
		visited := map[string]bool{id: true}
		parent := s.String("parent")
		for parent != "" {
			if visited[parent] {
				logger.Warn().Str("kind", KindUnit.String()).Str("uuid", id).Msg("cycle in unit parent chain")
				break
			}
			visited[parent] = true

			p, ok := units.At(parent, day)
			if !ok {
				break
			}
			chain = append(chain, managerRow{id: parent, snap: p})
			parent = p.String("parent")
		}
		return chain
	}

	for id, snapshots := range units {
		for _, s := range snapshots {
			day := referenceDay(s, today)
			chain := ancestors(id, s, day)

			names := make([]string, 0, len(chain)+1)
			for i := len(chain) - 1; i >= 0; i-- {
				names = append(names, chain[i].snap.String("name"))
			}
			names = append(names, s.String("name"))
			s[FieldLocation] = strings.Join(names, LocationSeparator)

			manager := directManager(id, day)
			acting := manager
			for _, ancestor := range chain {
				if acting != "" {
					break
				}
				acting = directManager(ancestor.id, day)
			}

			s[FieldManagerUUID] = nilIfEmpty(manager)
			s[FieldActingManagerUUID] = nilIfEmpty(acting)
		}
	}

	counts := map[string]int{}
	for _, snapshots := range store.Engagements() {
		for _, s := range snapshots {
			if s.ValidAt(today) && s.String("unit") != "" {
				counts[s.String("unit")]++
			}
		}
	}
	store.setEngagementCounts(counts)

	logger.Info().Int("units", len(units)).Msg("derived unit data calculated")

	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}
