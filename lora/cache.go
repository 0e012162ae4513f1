package lora

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	lc "github.com/os2mo/loracache"
)

const EngineName = "lora"

// Cache populates the store from the bitemporal registry, one kind at a time.
type Cache struct {
	client      *Client
	settings    lc.Settings
	temporal    lc.Temporal
	resolver    lc.DARResolver
	persistence *lc.Persistence[lc.Blob, lc.BlobID]
	now         func() time.Time

	store     *lc.Store
	window    lc.Window
	orgUUID   string
	populated bool
}

type CacheOption func(*Cache)

func WithDARResolver(r lc.DARResolver) CacheOption {
	return func(c *Cache) {
		c.resolver = r
	}
}

func WithPersistence(p *lc.Persistence[lc.Blob, lc.BlobID]) CacheOption {
	return func(c *Cache) {
		c.persistence = p
	}
}

// WithClock overrides the instant the query window is resolved at.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(settings lc.Settings, temporal lc.Temporal, httpClient *http.Client, opts ...CacheOption) (*Cache, error) {
	settings = settings.WithDefaults()

	client, err := NewClient(settings.RegistryURL, httpClient,
		WithBatchSize(settings.BatchSize),
		WithRetryPolicy(settings.Retry),
	)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		client:   client,
		settings: settings,
		temporal: temporal,
		now:      time.Now,
		store:    lc.NewStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.window = temporal.Resolve(c.now())

	return c, nil
}

func (c *Cache) Store() *lc.Store       { return c.store }
func (c *Cache) Temporal() lc.Temporal { return c.temporal }
func (c *Cache) Engine() string        { return EngineName }

// Populate fills every kind. With ReadFromCache the persisted blobs of a
// previous run are loaded instead and no request is made.
func (c *Cache) Populate(ctx context.Context, opts lc.PopulateOptions) error {
	logger := zerolog.Ctx(ctx).With().
		Str("engine", EngineName).
		Str("configuration", c.temporal.Name()).
		Logger()
	ctx = logger.WithContext(ctx)

	c.window = c.temporal.Resolve(c.now())

	if opts.ReadFromCache {
		if c.persistence == nil {
			return errors.Wrap(lc.ErrMissingSnapshot, "no persistence configured")
		}
		store, err := lc.LoadStore(ctx, c.persistence, EngineName, c.temporal)
		if err != nil {
			return err
		}
		c.store = store
		if err := c.resolveDAR(ctx, opts); err != nil {
			return err
		}
		c.populated = true
		return nil
	}

	orgUUID, err := c.client.OrganisationUUID(ctx)
	if err != nil {
		return errors.Wrap(err, "organisation root")
	}
	c.orgUUID = orgUUID
	c.store = lc.NewStore()
	c.populated = false

	for _, kind := range lc.Kinds {
		if err := c.populateKind(ctx, kindSpecs[kind]); err != nil {
			return errors.Wrapf(err, "populate %s", kind)
		}
	}

	if opts.ResolveDAR {
		c.reuseDAR(ctx)
	}
	if err := c.resolveDAR(ctx, opts); err != nil {
		return err
	}

	c.populated = true

	if c.persistence != nil {
		if err := lc.SaveStore(ctx, c.persistence, EngineName, c.temporal, c.store); err != nil {
			logger.Error().Err(err).Msg("persisting populated store failed")
		}
	}

	return nil
}

func (c *Cache) populateKind(ctx context.Context, spec kindSpec) error {
	started := time.Now()

	params := c.window.RegistryParams()
	for k, v := range spec.params() {
		params[k] = v
	}

	objects, err := c.client.FetchAll(ctx, spec.path, params)
	if err != nil {
		return err
	}

	ents := lc.Entities{}
	for _, raw := range objects {
		id, snapshots, err := c.normalize(ctx, spec, raw)
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			continue
		}
		lc.SortByFromDate(snapshots)
		ents[id] = append(ents[id], snapshots...)
	}
	c.store.Set(spec.kind, ents)

	zerolog.Ctx(ctx).Info().
		Str("kind", spec.kind.String()).
		Int("objects", len(objects)).
		Int("entities", len(ents)).
		Int("snapshots", ents.Count()).
		Dur("took", time.Since(started)).
		Msg("kind populated")

	return nil
}

// reuseDAR takes the DAR names the previous run of this configuration
// resolved, so only new uuids reach the resolver.
func (c *Cache) reuseDAR(ctx context.Context) {
	if c.persistence == nil {
		return
	}

	logger := zerolog.Ctx(ctx)
	previous, err := lc.LoadKind(ctx, c.persistence, EngineName, lc.KindDAR, c.temporal)
	if errors.Is(err, lc.ErrMissingSnapshot) {
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("previous DAR cache unreadable")
		return
	}

	logger.Debug().Int("reused", lc.ReuseDAR(c.store, previous)).Msg("DAR names reused")
}

// resolveDAR looks up pending DAR uuids and writes the text back onto the
// referencing addresses.
func (c *Cache) resolveDAR(ctx context.Context, opts lc.PopulateOptions) error {
	if !opts.ResolveDAR {
		return nil
	}
	if c.resolver == nil {
		zerolog.Ctx(ctx).Warn().Msg("DAR resolution requested without a resolver")
		return nil
	}

	return lc.ResolveDAR(ctx, c.store, c.resolver)
}

func (c *Cache) CalculatePrimaryEngagements(ctx context.Context) error {
	if !c.populated {
		return errors.WithStack(lc.ErrNotPopulated)
	}

	return lc.CalculatePrimaryEngagements(ctx, c.store, c.settings)
}

func (c *Cache) CalculateDerivedUnitData(ctx context.Context) error {
	if !c.populated {
		return errors.WithStack(lc.ErrNotPopulated)
	}

	return lc.CalculateDerivedUnitData(ctx, c.store, c.settings, c.window.Today())
}

var _ lc.Cache = (*Cache)(nil)
