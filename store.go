package loracache

import (
	"sort"
	"sync"
)

// Store holds every entity map of one populate run. Kind tasks may write
// concurrently; after the derived-data pass the store is read-only.
type Store struct {
	mu       sync.RWMutex
	entities map[Kind]Entities
	counts   map[string]int
}

func NewStore() *Store {
	s := &Store{
		entities: make(map[Kind]Entities, len(PersistedKinds)),
		counts:   map[string]int{},
	}
	for _, k := range PersistedKinds {
		s.entities[k] = Entities{}
	}

	return s
}

// Add appends snapshots to id. A new id creates a new list.
func (s *Store) Add(kind Kind, id string, snapshots ...Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ents, ok := s.entities[kind]
	if !ok {
		ents = Entities{}
		s.entities[kind] = ents
	}
	ents[id] = append(ents[id], snapshots...)
}

// Set replaces the whole map of one kind.
func (s *Store) Set(kind Kind, ents Entities) {
	if ents == nil {
		ents = Entities{}
	}

	s.mu.Lock()
	s.entities[kind] = ents
	s.mu.Unlock()
}

// Entities returns the live map of kind. Callers must not mutate it after population.
func (s *Store) Entities(kind Kind) Entities {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entities[kind]
}

// MergeDAR records a resolved DAR address. Values are idempotent per uuid,
// so concurrent writers simply overwrite.
func (s *Store) MergeDAR(darUUID string, betegnelse string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[KindDAR][darUUID] = []Snapshot{{"betegnelse": betegnelse}}
}

func (s *Store) Facets() Entities        { return s.Entities(KindFacet) }
func (s *Store) Classes() Entities       { return s.Entities(KindClass) }
func (s *Store) Users() Entities         { return s.Entities(KindUser) }
func (s *Store) Units() Entities         { return s.Entities(KindUnit) }
func (s *Store) Engagements() Entities   { return s.Entities(KindEngagement) }
func (s *Store) Addresses() Entities     { return s.Entities(KindAddress) }
func (s *Store) Managers() Entities      { return s.Entities(KindManager) }
func (s *Store) Associations() Entities  { return s.Entities(KindAssociation) }
func (s *Store) Leaves() Entities        { return s.Entities(KindLeave) }
func (s *Store) Roles() Entities         { return s.Entities(KindRole) }
func (s *Store) ITSystems() Entities     { return s.Entities(KindITSystem) }
func (s *Store) ITConnections() Entities { return s.Entities(KindITConnection) }
func (s *Store) KLEs() Entities          { return s.Entities(KindKLE) }
func (s *Store) RelatedUnits() Entities  { return s.Entities(KindRelatedUnit) }
func (s *Store) DAR() Entities           { return s.Entities(KindDAR) }

// EngagementCounts returns the number of engagements valid today per unit uuid.
// It is filled by CalculateDerivedUnitData.
func (s *Store) EngagementCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counts
}

func (s *Store) setEngagementCounts(counts map[string]int) {
	s.mu.Lock()
	s.counts = counts
	s.mu.Unlock()
}

// RegisterDAR records a DAR uuid awaiting resolution. Known uuids are kept.
func (s *Store) RegisterDAR(darUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[KindDAR][darUUID]; !ok {
		s.entities[KindDAR][darUUID] = []Snapshot{{"betegnelse": nil}}
	}
}

// DARName returns the resolved text of a DAR uuid.
func (s *Store) DARName(darUUID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := s.entities[KindDAR][darUUID]
	if len(snapshots) == 0 {
		return "", false
	}

	name := snapshots[0].String("betegnelse")
	return name, name != ""
}

// UnresolvedDAR lists registered DAR uuids without text, sorted.
func (s *Store) UnresolvedDAR() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id, snapshots := range s.entities[KindDAR] {
		if len(snapshots) == 0 || snapshots[0].String("betegnelse") == "" {
			out = append(out, id)
		}
	}
	sort.Strings(out)

	return out
}
