// Package dar resolves DAR address uuids to their postal text.
package dar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/os2mo/loracache"
)

const (
	DefaultURL         = "https://api.dataforsyningen.dk"
	DefaultConcurrency = 8
	DefaultMemoSize    = 100_000
	DefaultMemoTTL     = 12 * time.Hour
)

// Address uuids are looked up first, access addresses second.
var endpoints = []string{"adresser", "adgangsadresser"}

var errNotFound = errors.New("dar: not found")

// Resolver looks up DAR uuids over HTTP and memoizes the answers.
type Resolver struct {
	baseURL     *url.URL
	httpClient  *http.Client
	retry       loracache.RetryPolicy
	concurrency int
	memo        *expirable.LRU[string, string]
}

type Option func(*Resolver)

func WithRetryPolicy(p loracache.RetryPolicy) Option {
	return func(r *Resolver) {
		r.retry = p
	}
}

func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithMemo(size int, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.memo = expirable.NewLRU[string, string](size, nil, ttl)
	}
}

func NewResolver(baseURL string, httpClient *http.Client, opts ...Option) (*Resolver, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}

	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid DAR url: %q", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	r := &Resolver{
		baseURL:     u,
		httpClient:  httpClient,
		retry:       loracache.DefaultRetryPolicy(),
		concurrency: DefaultConcurrency,
		memo:        expirable.NewLRU[string, string](DefaultMemoSize, nil, DefaultMemoTTL),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve returns the betegnelse of every uuid the service knows. Unknown and
// malformed uuids are logged and omitted.
func (r *Resolver) Resolve(ctx context.Context, darUUIDs []string) (map[string]string, error) {
	logger := zerolog.Ctx(ctx)

	var mu sync.Mutex
	out := make(map[string]string, len(darUUIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, id := range darUUIDs {
		if name, ok := r.memo.Get(id); ok {
			mu.Lock()
			out[id] = name
			mu.Unlock()
			continue
		}

		if _, err := uuid.Parse(id); err != nil {
			logger.Warn().Str("kind", loracache.KindDAR.String()).Str("uuid", id).Msg("malformed DAR uuid")
			continue
		}

		id := id
		g.Go(func() error {
			name, err := r.lookup(gctx, id)
			if errors.Is(err, errNotFound) {
				logger.Warn().Str("kind", loracache.KindDAR.String()).Str("uuid", id).Msg("DAR uuid not found")
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "dar %s", id)
			}

			r.memo.Add(id, name)
			mu.Lock()
			out[id] = name
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *Resolver) lookup(ctx context.Context, id string) (string, error) {
	for _, endpoint := range endpoints {
		name, err := r.fetch(ctx, endpoint, id)
		if errors.Is(err, errNotFound) {
			continue
		}

		return name, err
	}

	return "", errNotFound
}

type address struct {
	Betegnelse string `json:"betegnelse"`
}

func (r *Resolver) fetch(ctx context.Context, endpoint, id string) (string, error) {
	u := *r.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + endpoint + "/" + id
	u.RawQuery = url.Values{"struktur": {"mini"}}.Encode()

	return loracache.Retry(ctx, r.retry, "dar "+endpoint, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return "", loracache.Permanent(errors.WithStack(err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return "", errors.Wrap(err, "dar request")
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", errors.Wrap(err, "dar read")
		}

		if resp.StatusCode == http.StatusNotFound {
			return "", loracache.Permanent(errNotFound)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", errors.Errorf("dar %s: status=%d", endpoint, resp.StatusCode)
		}

		var a address
		if err := json.Unmarshal(body, &a); err != nil {
			return "", loracache.Permanent(errors.Wrap(err, "dar decode"))
		}
		if a.Betegnelse == "" {
			return "", loracache.Permanent(errNotFound)
		}

		return a.Betegnelse, nil
	})
}

var _ loracache.DARResolver = (*Resolver)(nil)
