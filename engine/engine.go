// Package engine selects the cache implementation exporters run against.
package engine

import (
	"net/http"
	"time"

	lc "github.com/os2mo/loracache"
	"github.com/os2mo/loracache/gql"
	"github.com/os2mo/loracache/lora"
)

type options struct {
	httpClient  *http.Client
	resolver    lc.DARResolver
	persistence *lc.Persistence[lc.Blob, lc.BlobID]
	now         func() time.Time
}

type Option func(*options)

// WithHTTPClient sets the client for backend requests. For the GraphQL
// engine it is expected to carry authentication.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func WithDARResolver(r lc.DARResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

func WithPersistence(p *lc.Persistence[lc.Blob, lc.BlobID]) Option {
	return func(o *options) {
		o.persistence = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// GetCache returns the GraphQL engine when settings.UseNewCache is set and
// the legacy registry engine otherwise.
func GetCache(settings lc.Settings, temporal lc.Temporal, opts ...Option) (lc.Cache, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if settings.UseNewCache {
		var cacheOpts []gql.CacheOption
		if o.resolver != nil {
			cacheOpts = append(cacheOpts, gql.WithDARResolver(o.resolver))
		}
		if o.persistence != nil {
			cacheOpts = append(cacheOpts, gql.WithPersistence(o.persistence))
		}
		if o.now != nil {
			cacheOpts = append(cacheOpts, gql.WithClock(o.now))
		}
		c, err := gql.NewCache(settings, temporal, o.httpClient, cacheOpts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	var cacheOpts []lora.CacheOption
	if o.resolver != nil {
		cacheOpts = append(cacheOpts, lora.WithDARResolver(o.resolver))
	}
	if o.persistence != nil {
		cacheOpts = append(cacheOpts, lora.WithPersistence(o.persistence))
	}
	if o.now != nil {
		cacheOpts = append(cacheOpts, lora.WithClock(o.now))
	}
	c, err := lora.NewCache(settings, temporal, o.httpClient, cacheOpts...)
	if err != nil {
		return nil, err
	}

	return c, nil
}
