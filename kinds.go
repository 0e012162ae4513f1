package loracache

// Kind names one entity map of the cache.
type Kind string

const (
	KindFacet        Kind = "facets"
	KindClass        Kind = "classes"
	KindUser         Kind = "users"
	KindUnit         Kind = "units"
	KindEngagement   Kind = "engagements"
	KindAddress      Kind = "addresses"
	KindManager      Kind = "managers"
	KindAssociation  Kind = "associations"
	KindLeave        Kind = "leaves"
	KindRole         Kind = "roles"
	KindITSystem     Kind = "itsystems"
	KindITConnection Kind = "it_connections"
	KindKLE          Kind = "kles"
	KindRelatedUnit  Kind = "related"

	// KindDAR is the side cache of resolved DAR addresses keyed by DAR uuid.
	KindDAR Kind = "dar_cache"
)

// Kinds lists every entity kind populated from a backend, in population order.
var Kinds = []Kind{
	KindFacet,
	KindClass,
	KindUser,
	KindUnit,
	KindEngagement,
	KindAddress,
	KindManager,
	KindAssociation,
	KindLeave,
	KindRole,
	KindITSystem,
	KindITConnection,
	KindKLE,
	KindRelatedUnit,
}

// PersistedKinds is Kinds plus the DAR side cache.
var PersistedKinds = append(append([]Kind{}, Kinds...), KindDAR)

func (k Kind) String() string {
	return string(k)
}
