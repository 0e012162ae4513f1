package loracache

import (
	"context"
	"time"
)

// Cache is the uniform interface exporters depend on. Entity maps are
// guaranteed populated only after Populate and, for derived fields, after
// the two Calculate passes.
type Cache interface {
	Populate(ctx context.Context, opts PopulateOptions) error
	CalculatePrimaryEngagements(ctx context.Context) error
	CalculateDerivedUnitData(ctx context.Context) error
	Store() *Store
	Temporal() Temporal
	// Engine names the implementation, "lora" or "graphql".
	Engine() string
}

type PopulateOptions struct {
	// ResolveDAR fills DAR address values through the geocoding collaborator.
	ResolveDAR bool
	// ReadFromCache loads a previous run's persisted blobs instead of fetching.
	ReadFromCache bool
}

// DARResolver resolves DAR uuids to address text. Unknown uuids are omitted.
type DARResolver interface {
	Resolve(ctx context.Context, darUUIDs []string) (map[string]string, error)
}

// Settings is constructed once per populate call and threaded through every
// component.
type Settings struct {
	RegistryURL string
	GraphQLURL  string
	// PageSize is the GraphQL cursor page size.
	PageSize int
	// BatchSize caps the uuids per registry detail request.
	BatchSize   int
	UseNewCache bool
	// PrimaryManagerResponsibility disambiguates units with several managers.
	PrimaryManagerResponsibility string
	// PrimaryEngagementClasses restricts which primary_type classes may win.
	PrimaryEngagementClasses []string
	Retry                    RetryPolicy
	HTTPTimeout              time.Duration
}

const (
	DefaultPageSize    = 300
	DefaultBatchSize   = 96
	DefaultHTTPTimeout = 5 * time.Minute
)

// WithDefaults fills zero values.
func (s Settings) WithDefaults() Settings {
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}

	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}

	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = DefaultHTTPTimeout
	}

	if s.Retry == (RetryPolicy{}) {
		s.Retry = DefaultRetryPolicy()
	}

	return s
}

// Provider is one persistence tier for blobs of type T addressed by keys of V.
type Provider[T, V any] interface {
	Get(ctx context.Context, key *Key[V], requiredModelVersion uint16) (*T, error)
	MGet(ctx context.Context, keys []*Key[V], requiredModelVersion uint16) (map[*Key[V]]*T, []*Key[V], error)
	MSet(ctx context.Context, values map[string]*T, ttl time.Duration) error
}

type Key[V any] struct {
	Key           string
	OriginalValue V
}

type GetFromSourceFn[T, V any] func(ctx context.Context, key []*Key[V]) (map[*Key[V]]*T, error)

// Entity is a versioned persisted value; a version mismatch is treated as a miss.
type Entity interface {
	GetCacheModelVersion() uint16
}

type missingData[T, V any] struct {
	provider    Provider[T, V]
	missingKeys []*Key[V]
}
