package lora

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/os2mo/loracache"
)

// Client queries the bitemporal registry. Detail queries batch uuids into
// query strings of at most batchSize uuids to stay under URL length limits.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	batchSize  int
	retry      loracache.RetryPolicy
}

type Option func(*Client)

func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithRetryPolicy(p loracache.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

func NewClient(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid registry url: %q", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: loracache.DefaultHTTPTimeout}
	}

	c := &Client{
		baseURL:    u,
		httpClient: httpClient,
		batchSize:  loracache.DefaultBatchSize,
		retry:      loracache.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type response struct {
	Results [][]json.RawMessage `json:"results"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()

	return loracache.Retry(ctx, c.retry, "registry "+path, func() ([]json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, loracache.Permanent(errors.WithStack(err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "registry request")
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "registry read")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Errorf("registry %s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var out response
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, loracache.Permanent(errors.Wrapf(err, "registry %s: decode", path))
		}

		if len(out.Results) == 0 {
			return nil, nil
		}

		return out.Results[0], nil
	})
}

// ListUUIDs issues the list query (bvn=%) and returns every matching uuid.
func (c *Client) ListUUIDs(ctx context.Context, path string, params url.Values) ([]string, error) {
	query := cloneValues(params)
	query.Set("bvn", "%")

	raw, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		var id string
		if err := json.Unmarshal(r, &id); err != nil {
			return nil, errors.Wrapf(loracache.ErrUnexpectedValue, "%s: list entry %s is not a uuid", path, string(r))
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// Fetch retrieves the objects of ids in batches and concatenates the results.
func (c *Client) Fetch(ctx context.Context, path string, params url.Values, ids []string) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var objects []json.RawMessage
	for i, batch := range chunk(ids, c.batchSize) {
		query := cloneValues(params)
		for _, id := range batch {
			query.Add("uuid", id)
		}

		raw, err := c.get(ctx, path, query)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", i)
		}
		objects = append(objects, raw...)
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("uuids", len(ids)).
		Int("objects", len(objects)).
		Msg("registry fetch done")

	return objects, nil
}

// FetchAll lists the uuids of path and fetches all of them.
func (c *Client) FetchAll(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	ids, err := c.ListUUIDs(ctx, path, params)
	if err != nil {
		return nil, err
	}

	return c.Fetch(ctx, path, params, ids)
}

// OrganisationUUID returns the uuid of the single root organisation.
func (c *Client) OrganisationUUID(ctx context.Context) (string, error) {
	ids, err := c.ListUUIDs(ctx, "organisation/organisation", url.Values{})
	if err != nil {
		return "", err
	}

	if len(ids) != 1 {
		return "", errors.Wrap(loracache.ErrUnexpectedValue, fmt.Sprintf("expected one organisation, found %d", len(ids)))
	}

	return ids[0], nil
}

func chunk(items []string, size int) [][]string {
	var chunks [][]string
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}

	return append(chunks, items)
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}

	return out
}
