package dar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/os2mo/loracache"
)

const (
	addressUUID = "0a3f50a0-23c9-32b8-e044-0003ba298018"
	accessUUID  = "0a3f507a-b2e6-32b8-e044-0003ba298018"
	flakyUUID   = "0a3f50a1-0000-32b8-e044-0003ba298018"
	unknownUUID = "00000000-0000-0000-0000-000000000000"
)

func testRetry() loracache.RetryPolicy {
	return loracache.RetryPolicy{Multiplier: 0.001, MinWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Deadline: 200 * time.Millisecond}
}

type dawa struct {
	mu    sync.Mutex
	hits  map[string]int
	names map[string]string
}

func (d *dawa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.hits[r.URL.Path]++
	hits := d.hits[r.URL.Path]
	d.mu.Unlock()

	if r.URL.Query().Get("struktur") != "mini" {
		http.Error(w, "struktur", http.StatusBadRequest)
		return
	}

	if strings.HasSuffix(r.URL.Path, flakyUUID) && hits == 1 {
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	name, ok := d.names[strings.TrimPrefix(r.URL.Path, "/")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"id": "x", "betegnelse": name})
}

func (d *dawa) count(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits[path]
}

func newDawa(t *testing.T) (*dawa, *Resolver) {
	t.Helper()
	d := &dawa{
		hits: map[string]int{},
		names: map[string]string{
			"adresser/" + addressUUID:       "Vejen 1, 1. tv, 8000 Aarhus C",
			"adgangsadresser/" + accessUUID: "Vejen 3, 8000 Aarhus C",
			"adresser/" + flakyUUID:         "Vejen 5, 8000 Aarhus C",
		},
	}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)

	r, err := NewResolver(srv.URL, srv.Client(), WithRetryPolicy(testRetry()), WithConcurrency(2))
	require.NoError(t, err)
	return d, r
}

func TestResolve(t *testing.T) {
	d, r := newDawa(t)

	got, err := r.Resolve(context.Background(), []string{addressUUID, accessUUID, flakyUUID, unknownUUID, "not-a-uuid"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		addressUUID: "Vejen 1, 1. tv, 8000 Aarhus C",
		accessUUID:  "Vejen 3, 8000 Aarhus C",
		flakyUUID:   "Vejen 5, 8000 Aarhus C",
	}, got)

	assert.Equal(t, 1, d.count("/adresser/"+accessUUID), "address endpoint is tried first")
	assert.Equal(t, 1, d.count("/adgangsadresser/"+accessUUID))
	assert.Equal(t, 0, d.count("/adgangsadresser/"+addressUUID))
	assert.Equal(t, 2, d.count("/adresser/"+flakyUUID))
}

func TestResolveMemoizes(t *testing.T) {
	d, r := newDawa(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, []string{addressUUID})
	require.NoError(t, err)

	got, err := r.Resolve(ctx, []string{addressUUID})
	require.NoError(t, err)

	assert.Equal(t, "Vejen 1, 1. tv, 8000 Aarhus C", got[addressUUID])
	assert.Equal(t, 1, d.count("/adresser/"+addressUUID))
}

func TestResolveUnknownIsNotCached(t *testing.T) {
	d, r := newDawa(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := r.Resolve(ctx, []string{unknownUUID})
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	assert.Equal(t, 2, d.count("/adresser/"+unknownUUID))
}

func TestResolveFailsOnPersistentServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	policy := testRetry()
	policy.Deadline = 20 * time.Millisecond
	r, err := NewResolver(srv.URL, srv.Client(), WithRetryPolicy(policy))
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), []string{addressUUID})
	assert.ErrorContains(t, err, "status=500")
}

func TestNewResolverDefaults(t *testing.T) {
	r, err := NewResolver("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, r.baseURL.String())
	assert.Equal(t, DefaultConcurrency, r.concurrency)

	_, err = NewResolver("::", nil)
	assert.Error(t, err)
}
