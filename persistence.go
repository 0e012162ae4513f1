package loracache

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Persistence consults its providers in order. The first hit wins and every
// provider that missed is back-filled with the value.
type Persistence[T any, V any] struct {
	builder *Builder[T, V]
}

func (c *Persistence[T, V]) Get(ctx context.Context, key *Key[V], fn func(ctx context.Context, key *Key[V]) (*T, error)) (*T, error) {
	var missingIn []Provider[T, V]
	var finalValue *T

	for _, provider := range c.builder.providers {
		v, err := provider.Get(ctx, key, c.builder.modelVersion)

		if err != nil {
			zerolog.Ctx(ctx).Err(err).Str("key", key.Key).Msg("persisted snapshot unreadable")
			missingIn = append(missingIn, provider)
			continue
		}

		if v != nil {
			finalValue = v
			break
		}

		missingIn = append(missingIn, provider)
	}

	if finalValue == nil {
		if fn == nil {
			return nil, errors.Wrap(ErrMissingSnapshot, key.Key)
		}

		var err error
		finalValue, err = fn(ctx, key)

		if err != nil {
			return nil, errors.Wrap(err, "can not get from source")
		}
	}

	if len(missingIn) > 0 {
		setMap := map[string]*T{
			key.Key: finalValue,
		}
		for _, m := range missingIn {
			if err := m.MSet(ctx, setMap, c.builder.ttl); err != nil {
				zerolog.Ctx(ctx).Err(err).Str("key", key.Key).Msg("backfill failed")
			}
		}
	}

	return finalValue, nil
}

// MGet resolves keys through the providers; keys no provider holds are
// passed to fn. With a nil fn any remaining key is ErrMissingSnapshot.
func (c *Persistence[T, V]) MGet(ctx context.Context, keys []*Key[V], fn GetFromSourceFn[T, V]) (map[*Key[V]]*T, error) {
	var missingIn []missingData[T, V]

	finalResults := map[*Key[V]]*T{}
	toQuery := keys

	for _, provider := range c.builder.providers {
		found, missing, err := provider.MGet(ctx, toQuery, c.builder.modelVersion)

		if err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("persistence provider failed")
			missingIn = append(missingIn, missingData[T, V]{
				provider:    provider,
				missingKeys: toQuery,
			})
			continue
		}

		if len(missing) > 0 {
			missingIn = append(missingIn, missingData[T, V]{
				provider:    provider,
				missingKeys: missing,
			})
		}

		for k, v := range found {
			finalResults[k] = v
		}

		toQuery = missing

		if len(missing) == 0 {
			break
		}
	}

	if len(toQuery) > 0 {
		if fn == nil {
			return nil, errors.Wrapf(ErrMissingSnapshot, "%d of %d keys, first %s", len(toQuery), len(keys), toQuery[0].Key)
		}

		newValues, err := fn(ctx, toQuery)

		if err != nil {
			return nil, errors.Wrap(err, "can not get from source")
		}

		for k, v := range newValues {
			finalResults[k] = v
		}
	}

	for _, m := range missingIn {
		toSet := map[string]*T{}
		for _, k := range m.missingKeys {
			if v, ok := finalResults[k]; ok {
				toSet[k.Key] = v
			}
		}

		if len(toSet) == 0 {
			continue
		}

		if err := m.provider.MSet(ctx, toSet, c.builder.ttl); err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("backfill failed")
		}
	}

	return finalResults, nil
}

// MSet writes records to every provider and aggregates the failures.
func (c *Persistence[T, V]) MSet(ctx context.Context, records map[string]*T) error {
	var finalErr error
	for _, m := range c.builder.providers {
		if err := m.MSet(ctx, records, c.builder.ttl); err != nil {
			finalErr = multierror.Append(finalErr, err)
		}
	}

	return finalErr
}

// SaveStore persists every kind of store under engine and temporal.
func SaveStore(ctx context.Context, p *Persistence[Blob, BlobID], engine string, temporal Temporal, store *Store) error {
	records := make(map[string]*Blob, len(PersistedKinds))
	for _, kind := range PersistedKinds {
		id := BlobID{Engine: engine, Kind: kind, Temporal: temporal}
		records[id.Name()] = &Blob{
			ModelVersion: ModelVersion,
			Engine:       engine,
			Kind:         kind,
			Temporal:     temporal,
			WrittenAt:    time.Now(),
			Entities:     store.Entities(kind),
		}
	}

	return errors.Wrap(p.MSet(ctx, records), "persist store")
}

// LoadKind reads the persisted entities of one kind.
func LoadKind(ctx context.Context, p *Persistence[Blob, BlobID], engine string, kind Kind, temporal Temporal) (Entities, error) {
	blob, err := p.Get(ctx, BlobID{Engine: engine, Kind: kind, Temporal: temporal}.Key(), nil)
	if err != nil {
		return nil, err
	}

	return blob.Entities, nil
}

// LoadStore rebuilds a store from persisted blobs. Every kind must be present.
func LoadStore(ctx context.Context, p *Persistence[Blob, BlobID], engine string, temporal Temporal) (*Store, error) {
	keys := make([]*Key[BlobID], 0, len(PersistedKinds))
	for _, kind := range PersistedKinds {
		keys = append(keys, BlobID{Engine: engine, Kind: kind, Temporal: temporal}.Key())
	}

	blobs, err := p.MGet(ctx, keys, nil)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	for key, blob := range blobs {
		store.Set(key.OriginalValue.Kind, blob.Entities)
	}

	zerolog.Ctx(ctx).Info().
		Str("engine", engine).
		Str("configuration", temporal.Name()).
		Msg("store restored from persisted snapshots")

	return store, nil
}
