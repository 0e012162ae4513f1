package gql

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	lc "github.com/os2mo/loracache"
)

const EngineName = "graphql"

// Cache populates the store from the GraphQL endpoint with one task per kind.
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

// WithDARResolver sets a resolver for DAR uuids the server left unnamed.
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

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(settings lc.Settings, temporal lc.Temporal, httpClient *http.Client, opts ...CacheOption) (*Cache, error) {
	settings = settings.WithDefaults()

	client, err := NewClient(settings.GraphQLURL, httpClient,
		WithPageSize(settings.PageSize),
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

// Populate fetches every kind concurrently. The first failing kind cancels
// the others.
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

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range lc.Kinds {
		spec := kindSpecs[kind]
		g.Go(func() error {
			return errors.Wrapf(c.populateKind(gctx, spec), "populate %s", spec.kind)
		})
	}
	if err := g.Wait(); err != nil {
		return err
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

	objects, err := c.client.Paginate(ctx, spec.query(c.window.KeepHistory), c.window.GraphQLVariables())
	if err != nil {
		return err
	}

	ents := lc.Entities{}
	for _, object := range objects {
		id, snapshots, err := c.normalize(ctx, spec, object)
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			continue
		}
		ents[id] = append(ents[id], snapshots...)
		lc.SortByFromDate(ents[id])
	}
	c.store.Set(spec.kind, ents)

	zerolog.Ctx(ctx).Info().
		Str("kind", spec.kind.String()).
		Int("objects", len(objects)).
		Int("snapshots", ents.Count()).
		Dur("took", time.Since(started)).
		Msg("kind populated")

	return nil
}

func (c *Cache) resolveDAR(ctx context.Context, opts lc.PopulateOptions) error {
	if !opts.ResolveDAR || c.resolver == nil {
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
