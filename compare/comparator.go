package compare

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	lc "github.com/os2mo/loracache"
	"github.com/os2mo/loracache/engine"
)

// referenceEngine names the reference blobs in the run's in-process persistence.
const referenceEngine = "reference"

// Factory builds the cache of one engine for one configuration.
type Factory func(useNewCache bool, temporal lc.Temporal) (lc.Cache, error)

// Comparator populates both engines for each configuration and compares them.
type Comparator struct {
	settings lc.Settings
	policy   IgnorePolicy
	sink     Sink
	factory  Factory
	populate lc.PopulateOptions

	// reference holds the new engine's full-history store for one run;
	// referenceErr remembers a failed attempt so it is made once per run.
	reference    *lc.Persistence[lc.Blob, lc.BlobID]
	referenceErr error
	mu           sync.Mutex
}

type Option func(*Comparator)

func WithFactory(f Factory) Option {
	return func(c *Comparator) {
		c.factory = f
	}
}

func WithPopulateOptions(opts lc.PopulateOptions) Option {
	return func(c *Comparator) {
		c.populate = opts
	}
}

// NewComparator builds caches through engine.GetCache unless WithFactory is given.
func NewComparator(settings lc.Settings, policy IgnorePolicy, sink Sink, httpClient *http.Client, opts ...Option) *Comparator {
	if policy == nil {
		policy = DefaultIgnorePolicy()
	}
	if sink == nil {
		sink = NopSink()
	}

	c := &Comparator{
		settings: settings,
		policy:   policy,
		sink:     sink,
	}
	c.factory = func(useNewCache bool, temporal lc.Temporal) (lc.Cache, error) {
		s := c.settings
		s.UseNewCache = useNewCache
		return engine.GetCache(s, temporal, engine.WithHTTPClient(httpClient))
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run compares every configuration. A configuration that fails to populate
// is reported to the sink and the others still run; the failures are
// returned together. Divergence is a result, not an error.
func (c *Comparator) Run(ctx context.Context) ([]Report, error) {
	c.resetReference()

	var reports []Report
	var finalErr error
	for _, temporal := range lc.TemporalConfigurations {
		logger := zerolog.Ctx(ctx).With().Str("configuration", temporal.Name()).Logger()

		report, err := c.Compare(logger.WithContext(ctx), temporal)
		if err != nil {
			logger.Error().Err(err).Msg("comparison failed")
			finalErr = multierror.Append(finalErr, errors.Wrap(err, temporal.Name()))
			if sinkErr := c.sink.PopulateFailed(ctx, temporal.Name(), err); sinkErr != nil {
				logger.Warn().Err(sinkErr).Msg("metrics sink failed")
			}
			continue
		}

		logger.Info().
			Bool("equivalent", report.Equivalent).
			Interface("divergent", report.Divergent()).
			Msg("comparison done")
		if sinkErr := c.sink.Record(ctx, report); sinkErr != nil {
			logger.Warn().Err(sinkErr).Msg("metrics sink failed")
		}
		reports = append(reports, report)
	}

	return reports, finalErr
}

// Compare populates the legacy and new engine under temporal and compares
// the stores. The new engine's full-history store is the reference and, for
// the full-history configuration, also the compared store. When the reference
// cannot be populated only the full-history configuration fails; the others
// are compared without never-ending corrections.
func (c *Comparator) Compare(ctx context.Context, temporal lc.Temporal) (Report, error) {
	reference, err := c.referenceStore(ctx)
	if err != nil {
		if temporal == lc.FullHistory {
			return Report{}, errors.Wrap(err, "new engine")
		}
		zerolog.Ctx(ctx).Warn().Err(err).Msg("no reference store, never-ending rows stay divergent")
	}

	newer := reference
	if temporal != lc.FullHistory {
		if newer, err = c.populated(ctx, true, temporal); err != nil {
			return Report{}, errors.Wrap(err, "new engine")
		}
	}

	legacy, err := c.populated(ctx, false, temporal)
	if err != nil {
		return Report{}, errors.Wrap(err, "legacy engine")
	}

	return CompareStores(legacy, newer, reference, c.policy, temporal.Name()), nil
}

func (c *Comparator) populated(ctx context.Context, useNewCache bool, temporal lc.Temporal) (*lc.Store, error) {
	started := time.Now()

	cache, err := c.factory(useNewCache, temporal)
	if err != nil {
		return nil, err
	}

	if err := cache.Populate(ctx, c.populate); err != nil {
		return nil, err
	}
	if err := cache.CalculatePrimaryEngagements(ctx); err != nil {
		return nil, err
	}
	if err := cache.CalculateDerivedUnitData(ctx); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("engine", cache.Engine()).
		Dur("took", time.Since(started)).
		Msg("cache ready")

	return cache.Store(), nil
}

func (c *Comparator) resetReference() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reference = lc.NewPersistenceBuilder[lc.Blob, lc.BlobID](lc.ModelVersion, lc.NewLRUProvider(0, 0)).Build()
	c.referenceErr = nil
}

// referenceStore populates the new engine's full-history store once per run.
func (c *Comparator) referenceStore(ctx context.Context) (*lc.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reference == nil {
		c.reference = lc.NewPersistenceBuilder[lc.Blob, lc.BlobID](lc.ModelVersion, lc.NewLRUProvider(0, 0)).Build()
	}

	store, err := lc.LoadStore(ctx, c.reference, referenceEngine, lc.FullHistory)
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, lc.ErrMissingSnapshot) {
		return nil, err
	}

	if c.referenceErr != nil {
		return nil, c.referenceErr
	}

	store, err = c.populated(ctx, true, lc.FullHistory)
	if err != nil {
		c.referenceErr = err
		return nil, err
	}

	if err := lc.SaveStore(ctx, c.reference, referenceEngine, lc.FullHistory, store); err != nil {
		return nil, err
	}

	return store, nil
}
