package lora

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	lc "github.com/os2mo/loracache"
)

// Intermediate address fields, removed before a snapshot is stored.
const (
	rawURN        = "_urn"
	rawObjectType = "_objekttype"
	rawDAR        = "_dar"
)

// normalize turns one registry object into snapshots: one per effect, or
// more for kinds that expand a multi-valued relation.
func (c *Cache) normalize(ctx context.Context, spec kindSpec, raw []byte) (string, []lc.Snapshot, error) {
	id, effects, err := Effects(raw, spec.validityState, c.window)
	if err != nil {
		return "", nil, err
	}

	var out []lc.Snapshot
	for _, effect := range effects {
		rows, err := spec.mapping.ApplyBytes(effect.Registration)
		if err != nil {
			return id, nil, errors.Wrapf(err, "%s %s", spec.kind, id)
		}

		for _, row := range rows {
			row[lc.FieldFromDate] = lc.NormalizeDate(effect.From)
			row[lc.FieldToDate] = lc.NormalizeDate(effect.To)

			if spec.finish != nil {
				row, err = spec.finish(c, row)
				if errors.Is(err, lc.ErrMissingOwner) {
					zerolog.Ctx(ctx).Warn().
						Str("kind", spec.kind.String()).
						Str("uuid", id).
						Msg("dropping record without owner")
					continue
				}
				if err != nil {
					return id, nil, errors.Wrapf(err, "%s %s", spec.kind, id)
				}
			}

			if row != nil {
				out = append(out, row)
			}
		}
	}

	return id, out, nil
}

// finishUnit clears parent references to the organisation root.
func finishUnit(c *Cache, s lc.Snapshot) (lc.Snapshot, error) {
	if s.String("parent") == c.orgUUID {
		s["parent"] = nil
	}

	return s, nil
}

func finishOwned(_ *Cache, s lc.Snapshot) (lc.Snapshot, error) {
	if err := lc.CheckOwner(s); err != nil {
		return nil, err
	}

	return s, nil
}

// finishAddress decodes the urn into scope and value. DAR addresses keep the
// referenced uuid and take their value from the DAR side cache, if resolved.
// An unknown scope is fatal even when the owner is missing.
func finishAddress(c *Cache, s lc.Snapshot) (lc.Snapshot, error) {
	code, urn, darUUID := s.String(rawObjectType), s.String(rawURN), s.String(rawDAR)
	s = s.Without(rawObjectType, rawURN, rawDAR)

	label, err := lc.ScopeLabel(code)
	if err != nil {
		return nil, err
	}
	if err := lc.CheckOwner(s); err != nil {
		return nil, err
	}
	s["scope"] = label
	s["dar_uuid"] = nil
	s["value"] = nil

	if code == lc.ScopeDAR {
		if darUUID == "" {
			return nil, errors.Wrap(lc.ErrUnexpectedValue, "DAR address without uuid")
		}
		s["dar_uuid"] = darUUID
		c.store.RegisterDAR(darUUID)
		if name, ok := c.store.DARName(darUUID); ok {
			s["value"] = name
		}
		return s, nil
	}

	value, err := lc.DecodeAddressValue(code, urn)
	if err != nil {
		return nil, err
	}
	s["value"] = value

	return s, nil
}
