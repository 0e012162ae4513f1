package lora

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lc "github.com/os2mo/loracache"
)

const (
	addressID   = "4a5b5b7e-6a9d-4c7f-9f0b-7d1e1f6f5a01"
	ownerUnit   = "c1a4a2d1-7b0e-4d7b-9a39-2f0b8c0e6b11"
	addressType = "f376deb8-4743-4ca6-a047-3241de8fe9d2"
	darID       = "0a3f50a0-23c9-32b8-e044-0003ba298018"
)

func newTestCache(t *testing.T, temporal lc.Temporal, registryURL string) *Cache {
	t.Helper()
	c, err := NewCache(lc.Settings{RegistryURL: registryURL, Retry: testRetry()}, temporal, nil,
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	c.orgUUID = orgUUID
	return c
}

func address(t *testing.T, id string, owner reg, adresse entry) json.RawMessage {
	relationer := map[string][]entry{
		"organisatoriskfunktionstype": {always(entry{"uuid": addressType})},
		"adresser":                    {always(adresse)},
	}
	for name, list := range owner["relationer"] {
		relationer[name] = list
	}

	return object(t, id, activeFunction(reg{
		"attributter": {funktionEgenskaber: {always(entry{"brugervendtnoegle": "-", "funktionsnavn": "Adresse"})}},
		"relationer":  relationer,
	}))
}

func ownedByUnit() reg {
	return reg{"relationer": {"tilknyttedeenheder": {always(entry{"uuid": ownerUnit})}}}
}

func TestNormalizeEmailAddress(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := address(t, addressID, ownedByUnit(), entry{"urn": "urn:mailto:jane@example.com", "objekttype": "EMAIL"})

	id, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	require.NoError(t, err)

	assert.Equal(t, addressID, id)
	require.Len(t, rows, 1)
	assert.Equal(t, lc.Snapshot{
		"user":         nil,
		"unit":         ownerUnit,
		"adresse_type": addressType,
		"visibility":   nil,
		"scope":        "E-mail",
		"value":        "jane@example.com",
		"dar_uuid":     nil,
		"from_date":    "2019-01-01",
		"to_date":      nil,
	}, rows[0])
}

func TestNormalizeDARAddress(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := address(t, addressID, ownedByUnit(), entry{"uuid": darID, "objekttype": "DAR"})

	_, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "DAR", rows[0]["scope"])
	assert.Equal(t, darID, rows[0]["dar_uuid"])
	assert.Nil(t, rows[0]["value"], "unresolved DAR addresses carry no text")
	assert.Equal(t, []string{darID}, c.store.UnresolvedDAR())

	c.store.MergeDAR(darID, "Vejen 1, 8000 Aarhus C")
	_, rows, err = c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	require.NoError(t, err)
	assert.Equal(t, "Vejen 1, 8000 Aarhus C", rows[0]["value"])
}

func TestNormalizeUnknownScopeIsFatal(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := address(t, addressID, ownedByUnit(), entry{"urn": "urn:whatever", "objekttype": "UNKNOWN_TYPE"})

	_, _, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	assert.ErrorIs(t, err, lc.ErrUnknownScope)
}

func TestNormalizeUnknownScopeWithoutOwnerIsFatal(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := address(t, addressID, reg{}, entry{"urn": "urn:whatever", "objekttype": "UNKNOWN_TYPE"})

	_, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	assert.ErrorIs(t, err, lc.ErrUnknownScope)
	assert.Empty(t, rows)
}

func TestNormalizeDropsOwnerlessAddress(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := address(t, addressID, reg{}, entry{"urn": "urn:mailto:jane@example.com", "objekttype": "EMAIL"})

	_, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNormalizeUnitUnderRoot(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")

	_, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindUnit], renamedUnit(t))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, row := range rows {
		assert.Nil(t, row["parent"])
	}
	assert.Equal(t, "Old", rows[0]["name"])
	assert.Equal(t, "New", rows[1]["name"])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := address(t, addressID, ownedByUnit(), entry{"urn": "urn:magenta.dk:telefon:+4512345678", "objekttype": "PHONE"})

	_, first, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	require.NoError(t, err)
	_, second, err := c.normalize(context.Background(), kindSpecs[lc.KindAddress], raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizeKLEExpandsAspects(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := object(t, "kle-1", activeFunction(reg{
		"attributter": {funktionEgenskaber: {always(entry{"brugervendtnoegle": "KLE"})}},
		"relationer": {
			"tilknyttedeenheder": {always(entry{"uuid": ownerUnit})},
			"opgaver": {
				always(entry{"uuid": "kle-number", "objekttype": "klasse"}),
				always(entry{"uuid": "aspect-a", "objekttype": "aspekt"}),
				always(entry{"uuid": "aspect-b", "objekttype": "aspekt"}),
			},
		},
	}))

	_, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindKLE], raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	aspects := []any{rows[0]["kle_aspect"], rows[1]["kle_aspect"]}
	assert.ElementsMatch(t, []any{"aspect-a", "aspect-b"}, aspects)
	for _, row := range rows {
		assert.Equal(t, "kle-number", row["kle_number"])
		assert.Equal(t, ownerUnit, row["unit"])
	}
}

func TestNormalizeKLEWithoutAspects(t *testing.T) {
	c := newTestCache(t, lc.FullHistory, "http://registry.invalid")
	raw := object(t, "kle-2", activeFunction(reg{
		"attributter": {funktionEgenskaber: {always(entry{"brugervendtnoegle": "KLE"})}},
		"relationer": {
			"tilknyttedeenheder": {always(entry{"uuid": ownerUnit})},
			"opgaver":            {always(entry{"uuid": "kle-number", "objekttype": "klasse"})},
		},
	}))

	_, rows, err := c.normalize(context.Background(), kindSpecs[lc.KindKLE], raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kle-number", rows[0]["kle_number"])
	assert.Nil(t, rows[0]["kle_aspect"])
}

func TestEveryKindHasAMapping(t *testing.T) {
	for _, kind := range lc.Kinds {
		spec, ok := kindSpecs[kind]
		require.True(t, ok, kind)
		assert.Equal(t, kind, spec.kind)
		assert.Equal(t, kind, spec.mapping.Kind)
		assert.NotEmpty(t, spec.path)
	}
}
