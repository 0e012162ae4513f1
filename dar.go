package loracache

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ResolveDAR resolves the pending DAR uuids of store and fills the value of
// every DAR address that has none yet.
func ResolveDAR(ctx context.Context, store *Store, resolver DARResolver) error {
	pending := store.UnresolvedDAR()

	var names map[string]string
	if len(pending) > 0 {
		var err error
		names, err = resolver.Resolve(ctx, pending)
		if err != nil {
			return errors.Wrap(err, "resolve DAR")
		}
	}

	for id, name := range names {
		store.MergeDAR(id, name)
	}

	filled := 0
	for _, snapshots := range store.Addresses() {
		for _, s := range snapshots {
			darUUID := s.String("dar_uuid")
			if darUUID == "" || s.String("value") != "" {
				continue
			}
			if name, ok := store.DARName(darUUID); ok {
				s["value"] = name
				filled++
			}
		}
	}

	zerolog.Ctx(ctx).Info().
		Int("pending", len(pending)).
		Int("resolved", len(names)).
		Int("addresses", filled).
		Msg("DAR addresses resolved")

	return nil
}

// ReuseDAR merges names from a previous run's DAR side cache into the DAR
// uuids of store still awaiting resolution. It returns how many were reused.
func ReuseDAR(store *Store, previous Entities) int {
	reused := 0
	for _, id := range store.UnresolvedDAR() {
		snapshots := previous[id]
		if len(snapshots) == 0 {
			continue
		}
		if name := snapshots[0].String("betegnelse"); name != "" {
			store.MergeDAR(id, name)
			reused++
		}
	}

	return reused
}
