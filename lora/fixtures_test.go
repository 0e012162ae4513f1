package lora

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lc "github.com/os2mo/loracache"
)

const (
	orgUUID      = "3b866d97-0b1f-48e0-8078-686d96f430b3"
	infinity     = "infinity"
	registryFrom = "2019-01-01 00:00:00+01"
)

type entry map[string]any

// section -> list name -> entries
type reg map[string]map[string][]entry

func with(e entry, from, to string) entry {
	e["virkning"] = map[string]any{"from": from, "to": to}
	return e
}

func always(e entry) entry {
	return with(e, registryFrom, infinity)
}

func object(t *testing.T, id string, r reg) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": id, "registreringer": []reg{r}})
	require.NoError(t, err)
	return raw
}

func activeFunction(r reg) reg {
	r["tilstande"] = map[string][]entry{
		funktionGyldighed: {always(entry{"gyldighed": "Aktiv"})},
	}
	return r
}

func testRetry() lc.RetryPolicy {
	return lc.RetryPolicy{Multiplier: 0.001, MinWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Deadline: 200 * time.Millisecond}
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

// registry serves list and detail queries from fixtures keyed by
// path and funktionsnavn.
type registry struct {
	mu       sync.Mutex
	objects  map[string]map[string]json.RawMessage
	requests []string
}

func newRegistry() *registry {
	return &registry{objects: map[string]map[string]json.RawMessage{}}
}

func registryKey(path, funktionsnavn string) string {
	return strings.Trim(path, "/") + "|" + funktionsnavn
}

func (r *registry) add(path, funktionsnavn, id string, raw json.RawMessage) {
	key := registryKey(path, funktionsnavn)
	if r.objects[key] == nil {
		r.objects[key] = map[string]json.RawMessage{}
	}
	r.objects[key][id] = raw
}

func (r *registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.requests = append(r.requests, req.URL.RequestURI())
	r.mu.Unlock()

	query := req.URL.Query()
	fixtures := r.objects[registryKey(req.URL.Path, query.Get("funktionsnavn"))]

	var results []any
	if query.Get("bvn") == "%" {
		for id := range fixtures {
			results = append(results, id)
		}
	} else {
		for _, id := range query["uuid"] {
			if raw, ok := fixtures[id]; ok {
				results = append(results, raw)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"results": [][]any{results}})
}

func newRegistryServer(t *testing.T, r *registry) *httptest.Server {
	t.Helper()
	r.add("organisation/organisation", "", orgUUID, json.RawMessage(`{}`))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}
