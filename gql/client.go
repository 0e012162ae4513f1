package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/os2mo/loracache"
)

// Client posts GraphQL documents to one endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	pageSize   int
	retry      loracache.RetryPolicy
}

type Option func(*Client)

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithRetryPolicy(p loracache.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient builds a client. httpClient carries authentication, usually an
// oauth2 client credentials client.
func NewClient(endpoint string, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid graphql url: %q", endpoint)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: loracache.DefaultHTTPTimeout}
	}

	c := &Client{
		endpoint:   u.String(),
		httpClient: httpClient,
		pageSize:   loracache.DefaultPageSize,
		retry:      loracache.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// Query executes one document and returns its data object.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return loracache.Retry(ctx, c.retry, "graphql", func() (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, loracache.Permanent(errors.WithStack(err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "graphql request")
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "graphql read")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, errors.Errorf("graphql: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		var out response
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, loracache.Permanent(errors.Wrap(err, "graphql: decode"))
		}

		if len(out.Errors) > 0 {
			messages := make([]string, 0, len(out.Errors))
			for _, e := range out.Errors {
				messages = append(messages, e.Message)
			}
			return nil, loracache.Permanent(errors.Errorf("graphql: %s", strings.Join(messages, "; ")))
		}

		return out.Data, nil
	})
}

// Paginate follows page_info.next_cursor until the server returns none and
// collects every object of data.page.objects. A cursor seen before is an
// error.
func (c *Client) Paginate(ctx context.Context, query string, variables map[string]any) ([]gjson.Result, error) {
	vars := make(map[string]any, len(variables)+2)
	for k, v := range variables {
		vars[k] = v
	}
	vars["limit"] = c.pageSize
	vars["cursor"] = nil

	var objects []gjson.Result
	seen := map[string]bool{}
	for page := 0; ; page++ {
		data, err := c.Query(ctx, query, vars)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", page)
		}

		result := gjson.ParseBytes(data)
		objects = append(objects, result.Get("page.objects").Array()...)

		next := result.Get("page.page_info.next_cursor")
		if !next.Exists() || next.Type == gjson.Null || next.String() == "" {
			zerolog.Ctx(ctx).Debug().
				Int("pages", page+1).
				Int("objects", len(objects)).
				Msg("graphql pagination done")
			return objects, nil
		}

		if seen[next.String()] {
			return nil, errors.Wrapf(loracache.ErrUnexpectedValue, "page %d repeats cursor %q", page, next.String())
		}
		seen[next.String()] = true
		vars["cursor"] = next.String()
	}
}

// OrganisationUUID returns the uuid of the root organisation.
func (c *Client) OrganisationUUID(ctx context.Context) (string, error) {
	data, err := c.Query(ctx, orgQuery, nil)
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(data, "org.uuid").String()
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.Wrapf(loracache.ErrUnexpectedValue, "organisation uuid %q", id)
	}

	return id, nil
}
