package gql

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	lc "github.com/os2mo/loracache"
)

// normalize maps every validity of one object. GraphQL validity ends are
// inclusive; the cache stores exclusive ends, so one day is added.
func (c *Cache) normalize(ctx context.Context, spec kindSpec, object gjson.Result) (string, []lc.Snapshot, error) {
	id := object.Get("uuid").String()
	if id == "" {
		return "", nil, errors.Wrapf(lc.ErrUnexpectedValue, "%s object without uuid", spec.kind)
	}

	var out []lc.Snapshot
	for _, validity := range object.Get("validities").Array() {
		from, err := lc.NormalizeDateString(validity.Get("validity.from").String())
		if err != nil {
			return id, nil, errors.Wrapf(err, "%s %s", spec.kind, id)
		}
		to, err := exclusiveEnd(validity.Get("validity.to").String())
		if err != nil {
			return id, nil, errors.Wrapf(err, "%s %s", spec.kind, id)
		}

		rows, err := spec.mapping.Apply(validity)
		if err != nil {
			return id, nil, errors.Wrapf(err, "%s %s", spec.kind, id)
		}

		for _, row := range rows {
			row[lc.FieldFromDate] = from
			row[lc.FieldToDate] = to

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

			out = append(out, row)
		}
	}

	return id, out, nil
}

func exclusiveEnd(value string) (any, error) {
	if value == "" {
		return nil, nil
	}

	t, err := lc.ParseDate(value)
	if err != nil {
		return nil, err
	}

	if lc.NormalizeDate(t) == nil {
		return nil, nil
	}

	return lc.NormalizeDate(t.AddDate(0, 0, 1)), nil
}

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

// finishAddress classifies the scope. For DAR addresses the server resolved
// name is the value and the raw value is the DAR uuid. The scope is
// classified before ownership is checked.
func finishAddress(c *Cache, s lc.Snapshot) (lc.Snapshot, error) {
	code, value, name := s.String(rawScope), s.String(rawValue), s.String(rawName)
	s = s.Without(rawScope, rawValue, rawName)

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

	if code != lc.ScopeDAR {
		if value != "" {
			s["value"] = value
		}
		return s, nil
	}

	if value == "" {
		return nil, errors.Wrap(lc.ErrUnexpectedValue, "DAR address without uuid")
	}
	s["dar_uuid"] = value
	c.store.RegisterDAR(value)
	if name != "" {
		s["value"] = name
		c.store.MergeDAR(value, name)
	}

	return s, nil
}
