package loracache

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// FieldType selects how a raw value is converted.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
	// TypeStrings collects a list of strings.
	TypeStrings
	// TypeDate normalizes a backend date or timestamp.
	TypeDate
)

// Field maps one gjson source path to one snapshot field.
//
// When First is set the path must resolve to a relation list; its first
// element is taken and Key read from it. When the type is TypeStrings and Key
// is set, Key is read from every element of the list instead.
type Field struct {
	Target     string
	Path       string
	First      bool
	Key        string
	Type       FieldType
	TrimPrefix string
}

// Mapping is the declarative field table of one entity kind.
type Mapping struct {
	Kind   Kind
	Fields []Field
	// Expand names a TypeStrings field that yields one snapshot per element.
	Expand string
}

func (f Field) resolve(raw gjson.Result) gjson.Result {
	v := raw.Get(f.Path)

	if f.First {
		if !v.IsArray() {
			return v
		}
		arr := v.Array()
		if len(arr) == 0 {
			return gjson.Result{}
		}
		v = arr[0]
		if f.Key != "" {
			v = v.Get(f.Key)
		}
	}

	return v
}

func (f Field) convert(v gjson.Result) (any, error) {
	if !v.Exists() || v.Type == gjson.Null {
		if f.Type == TypeStrings {
			return []string{}, nil
		}
		return nil, nil
	}

	switch f.Type {
	case TypeString:
		if v.IsObject() || v.IsArray() {
			return nil, errors.Wrapf(ErrUnexpectedValue, "%s: expected scalar at %q, got %s", f.Target, f.Path, v.Raw)
		}
		return strings.TrimPrefix(v.String(), f.TrimPrefix), nil
	case TypeInt:
		switch v.Type {
		case gjson.Number:
			return v.Int(), nil
		case gjson.String:
			if strings.TrimSpace(v.Str) == "" {
				return nil, nil
			}
			n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
			if err != nil {
				return nil, errors.Wrapf(ErrUnexpectedValue, "%s: %q is not an integer", f.Target, v.Str)
			}
			return n, nil
		}
		return nil, errors.Wrapf(ErrUnexpectedValue, "%s: %s is not an integer", f.Target, v.Raw)
	case TypeBool:
		switch v.Type {
		case gjson.True, gjson.False:
			return v.Bool(), nil
		case gjson.String:
			b, err := strconv.ParseBool(v.Str)
			if err != nil {
				return nil, errors.Wrapf(ErrUnexpectedValue, "%s: %q is not a boolean", f.Target, v.Str)
			}
			return b, nil
		}
		return nil, errors.Wrapf(ErrUnexpectedValue, "%s: %s is not a boolean", f.Target, v.Raw)
	case TypeStrings:
		out := []string{}
		items := []gjson.Result{v}
		if v.IsArray() {
			items = v.Array()
		}
		for _, item := range items {
			if f.Key != "" {
				item = item.Get(f.Key)
			}
			if item.Exists() && item.Type != gjson.Null {
				out = append(out, strings.TrimPrefix(item.String(), f.TrimPrefix))
			}
		}
		return out, nil
	case TypeDate:
		return NormalizeDateString(v.String())
	}

	return nil, errors.Wrapf(ErrUnexpectedValue, "%s: unknown field type %d", f.Target, f.Type)
}

// Apply maps one raw record into snapshots. The result has one snapshot, or
// one per element of the Expand field. An empty Expand list yields a single
// snapshot with the field set to nil.
func (m Mapping) Apply(raw gjson.Result) ([]Snapshot, error) {
	s := make(Snapshot, len(m.Fields))

	for _, f := range m.Fields {
		v, err := f.convert(f.resolve(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", m.Kind)
		}
		s[f.Target] = v
	}

	if m.Expand == "" {
		return []Snapshot{s}, nil
	}

	values := s.Strings(m.Expand)
	if len(values) == 0 {
		s[m.Expand] = nil
		return []Snapshot{s}, nil
	}

	out := make([]Snapshot, 0, len(values))
	for _, v := range values {
		row := s.Clone()
		row[m.Expand] = v
		out = append(out, row)
	}

	return out, nil
}

// ApplyBytes is Apply on a raw JSON document.
func (m Mapping) ApplyBytes(raw []byte) ([]Snapshot, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.Wrapf(ErrUnexpectedValue, "%s: invalid json", m.Kind)
	}

	return m.Apply(gjson.ParseBytes(raw))
}
