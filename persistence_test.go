package loracache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testBlob(kind Kind, temporal Temporal, ents Entities) *Blob {
	return &Blob{
		ModelVersion: ModelVersion,
		Engine:       "lora",
		Kind:         kind,
		Temporal:     temporal,
		Entities:     ents,
	}
}

func unitEntities(name string) Entities {
	return Entities{
		"7a8e45f7-4de0-44c8-990f-43c0565ee505": {
			{"name": name, FieldFromDate: "2020-01-01", FieldToDate: nil},
		},
	}
}

// mockery --name="Provider" --case underscore --dir --output "." --with-expecter --inpackage --structname "mockProvider"
func TestPersistenceGetFromSource(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)
	key := BlobID{Engine: "lora", Kind: KindUnit, Temporal: ActualState}.Key()

	provider.EXPECT().Get(context.TODO(), key, ModelVersion).
		Return(nil, nil)

	provider.EXPECT().MSet(context.TODO(), mock.Anything, mock.Anything).
		Run(func(ctx context.Context, values map[string]*Blob, ttl time.Duration) {
			assert.Equal(t, 1, len(values))
			assert.Equal(t, KindUnit, values[key.Key].Kind)
			assert.Equal(t, 24*time.Hour, ttl)
		}).Return(nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	called := false
	result, err := p.Get(context.TODO(), key, func(ctx context.Context, key *Key[BlobID]) (*Blob, error) {
		called = true
		return testBlob(key.OriginalValue.Kind, key.OriginalValue.Temporal, unitEntities("Kommune")), nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "Kommune", result.Entities["7a8e45f7-4de0-44c8-990f-43c0565ee505"][0]["name"])
}

func TestPersistenceGetHit(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)
	key := BlobID{Engine: "lora", Kind: KindUnit, Temporal: FullHistory}.Key()

	provider.EXPECT().Get(context.TODO(), key, ModelVersion).
		Return(testBlob(KindUnit, FullHistory, unitEntities("Kommune")), nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	called := false
	result, err := p.Get(context.TODO(), key, func(ctx context.Context, key *Key[BlobID]) (*Blob, error) {
		called = true
		return nil, errors.New("should not be called")
	})

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, FullHistory, result.Temporal)
}

func TestPersistenceGetMissingWithoutSource(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)
	key := BlobID{Engine: "graphql", Kind: KindAddress, Temporal: ActualState}.Key()

	provider.EXPECT().Get(context.TODO(), key, ModelVersion).
		Return(nil, nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	_, err := p.Get(context.TODO(), key, nil)
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestPersistenceGetBackfillsEarlierTier(t *testing.T) {
	first := newMockProvider[Blob, BlobID](t)
	second := newMockProvider[Blob, BlobID](t)
	key := BlobID{Engine: "lora", Kind: KindClass, Temporal: ActualState}.Key()

	first.EXPECT().Get(context.TODO(), key, ModelVersion).Return(nil, nil)
	second.EXPECT().Get(context.TODO(), key, ModelVersion).
		Return(testBlob(KindClass, ActualState, Entities{}), nil)
	first.EXPECT().MSet(context.TODO(), mock.Anything, mock.Anything).
		Run(func(ctx context.Context, values map[string]*Blob, ttl time.Duration) {
			assert.Contains(t, values, key.Key)
		}).Return(nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, first, second).Build()

	result, err := p.Get(context.TODO(), key, nil)
	require.NoError(t, err)
	assert.Equal(t, KindClass, result.Kind)
}

func TestPersistenceMultiRecord(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)

	key := BlobID{Engine: "lora", Kind: KindUnit, Temporal: ActualState}.Key()
	key2 := BlobID{Engine: "lora", Kind: KindUser, Temporal: ActualState}.Key()
	keysArr := []*Key[BlobID]{key, key2}

	provider.EXPECT().MGet(context.TODO(), keysArr, ModelVersion).
		Return(nil, keysArr, nil)

	provider.EXPECT().MSet(context.TODO(), mock.Anything, mock.Anything).
		Run(func(ctx context.Context, values map[string]*Blob, ttl time.Duration) {
			assert.Equal(t, 2, len(values))
			assert.Equal(t, KindUnit, values[key.Key].Kind)
			assert.Equal(t, KindUser, values[key2.Key].Kind)
		}).Return(nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	called := false
	result, err := p.MGet(context.TODO(), keysArr, func(ctx context.Context, keys []*Key[BlobID]) (map[*Key[BlobID]]*Blob, error) {
		called = true
		return map[*Key[BlobID]]*Blob{
			key:  testBlob(KindUnit, ActualState, Entities{}),
			key2: testBlob(KindUser, ActualState, Entities{}),
		}, nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 2, len(result))
	assert.Equal(t, KindUnit, result[key].Kind)
}

func TestPersistenceMultiRecordWithoutDataSource(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)

	key := BlobID{Engine: "lora", Kind: KindUnit, Temporal: ActualState}.Key()
	key2 := BlobID{Engine: "lora", Kind: KindUser, Temporal: ActualState}.Key()
	keysArr := []*Key[BlobID]{key, key2}

	provider.EXPECT().MGet(context.TODO(), keysArr, ModelVersion).
		Return(map[*Key[BlobID]]*Blob{
			key:  testBlob(KindUnit, ActualState, Entities{}),
			key2: testBlob(KindUser, ActualState, Entities{}),
		}, nil, nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	called := false
	result, err := p.MGet(context.TODO(), keysArr, func(ctx context.Context, keys []*Key[BlobID]) (map[*Key[BlobID]]*Blob, error) {
		called = true
		return nil, errors.New("should not be called")
	})

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 2, len(result))
}

func TestPersistenceMultiRecordWithPartialDataSource(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)

	key := BlobID{Engine: "lora", Kind: KindUnit, Temporal: ActualState}.Key()
	key2 := BlobID{Engine: "lora", Kind: KindUser, Temporal: ActualState}.Key()
	keysArr := []*Key[BlobID]{key, key2}

	provider.EXPECT().MGet(context.TODO(), keysArr, ModelVersion).
		Return(map[*Key[BlobID]]*Blob{
			key2: testBlob(KindUser, ActualState, Entities{}),
		}, []*Key[BlobID]{key}, nil)

	provider.EXPECT().MSet(context.TODO(), mock.Anything, mock.Anything).
		Run(func(ctx context.Context, values map[string]*Blob, ttl time.Duration) {
			assert.Equal(t, 1, len(values))
			assert.Equal(t, KindUnit, values[key.Key].Kind)
		}).Return(nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	result, err := p.MGet(context.TODO(), keysArr, func(ctx context.Context, keys []*Key[BlobID]) (map[*Key[BlobID]]*Blob, error) {
		assert.Equal(t, []*Key[BlobID]{key}, keys)
		return map[*Key[BlobID]]*Blob{
			key: testBlob(KindUnit, ActualState, Entities{}),
		}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, len(result))
}

func TestPersistenceMultiRecordMissingWithoutSource(t *testing.T) {
	provider := newMockProvider[Blob, BlobID](t)

	key := BlobID{Engine: "lora", Kind: KindUnit, Temporal: ActualState}.Key()
	keysArr := []*Key[BlobID]{key}

	provider.EXPECT().MGet(context.TODO(), keysArr, ModelVersion).
		Return(nil, keysArr, nil)

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, provider).Build()

	_, err := p.MGet(context.TODO(), keysArr, nil)
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestPersistenceMSetAggregatesErrors(t *testing.T) {
	first := newMockProvider[Blob, BlobID](t)
	second := newMockProvider[Blob, BlobID](t)
	third := newMockProvider[Blob, BlobID](t)

	first.EXPECT().MSet(context.TODO(), mock.Anything, time.Hour).Return(errors.New("disk full"))
	second.EXPECT().MSet(context.TODO(), mock.Anything, time.Hour).Return(nil)
	third.EXPECT().MSet(context.TODO(), mock.Anything, time.Hour).Return(errors.New("redis down"))

	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, first, second, third).
		WithTtl(time.Hour).
		Build()

	err := p.MSet(context.TODO(), map[string]*Blob{"x": testBlob(KindUnit, ActualState, Entities{})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "redis down")
}

func TestSaveAndLoadStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lru := NewLRUProvider(0, 0)
	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, lru, NewFileProvider(dir)).Build()

	store := NewStore()
	store.Add(KindUnit, "unit-1", Snapshot{"name": "Kommune", "level": nil, FieldFromDate: "2020-01-01", FieldToDate: nil})
	store.Add(KindManager, "manager-1", Snapshot{
		"manager_responsibility": []string{"a", "b"},
		FieldFromDate:            "2020-01-01",
		FieldToDate:              "2024-01-01",
	})
	store.Add(KindEngagement, "engagement-1", Snapshot{"fraction": int64(37), "primary_boolean": true})
	store.MergeDAR("dar-1", "Testvej 1, 8000 Aarhus C")

	require.NoError(t, SaveStore(ctx, p, "lora", FullHistory, store))

	// a fresh chain over the same directory only has the files to go on
	fromDisk := NewPersistenceBuilder[Blob, BlobID](ModelVersion, NewFileProvider(dir)).Build()
	loaded, err := LoadStore(ctx, fromDisk, "lora", FullHistory)
	require.NoError(t, err)

	for _, kind := range PersistedKinds {
		assert.Equal(t, store.Entities(kind), loaded.Entities(kind), kind.String())
	}

	_, err = LoadStore(ctx, fromDisk, "lora", ActualState)
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestLoadKind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := NewStore()
	store.MergeDAR("dar-1", "Testvej 1, 8000 Aarhus C")
	require.NoError(t, SaveStore(ctx, NewPersistenceBuilder[Blob, BlobID](ModelVersion, NewFileProvider(dir)).Build(), "lora", FullHistory, store))

	// the lru tier misses and is back-filled from disk
	lru := NewLRUProvider(0, 0)
	p := NewPersistenceBuilder[Blob, BlobID](ModelVersion, lru, NewFileProvider(dir)).Build()

	dar, err := LoadKind(ctx, p, "lora", KindDAR, FullHistory)
	require.NoError(t, err)
	assert.Equal(t, store.DAR(), dar)

	key := BlobID{Engine: "lora", Kind: KindDAR, Temporal: FullHistory}.Key()
	cached, err := lru.Get(ctx, key, ModelVersion)
	require.NoError(t, err)
	require.NotNil(t, cached)

	_, err = LoadKind(ctx, p, "graphql", KindDAR, FullHistory)
	assert.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestBlobNamesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, engine := range []string{"lora", "graphql"} {
		for _, kind := range PersistedKinds {
			for _, temporal := range TemporalConfigurations {
				name := BlobID{Engine: engine, Kind: kind, Temporal: temporal}.Name()
				assert.False(t, seen[name], name)
				seen[name] = true
			}
		}
	}

	assert.Equal(t, fmt.Sprintf("lora_%s_full_history_skip_past", KindUnit), BlobID{Engine: "lora", Kind: KindUnit, Temporal: FullHistorySkipPast}.Name())
}
