package loracache

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DateLayout = "2006-01-02"

	// Years at or beyond these bounds are sentinels for an open end.
	infinityYear    = 9999
	beginningOfTime = 1930

	// SameDateTolerance absorbs the midnight/timezone drift of the legacy engine.
	SameDateTolerance = 2 * 24 * time.Hour
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ParseDate accepts the date and timestamp shapes emitted by both backends.
// "infinity" and "-infinity" parse to the far future and far past.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "infinity":
		return time.Date(infinityYear, 12, 31, 0, 0, 0, 0, time.UTC), nil
	case "-infinity":
		return time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.Wrapf(ErrUnexpectedValue, "unparsable date %q", value)
}

func isSentinel(t time.Time) bool {
	return t.Year() >= infinityYear || t.Year() <= beginningOfTime
}

// NormalizeDate renders t as YYYY-MM-DD in its own offset, or nil for sentinels.
func NormalizeDate(t time.Time) any {
	if t.IsZero() || isSentinel(t) {
		return nil
	}

	return t.Format(DateLayout)
}

// NormalizeDateString parses and normalizes a backend date. An empty string is nil.
func NormalizeDateString(value string) (any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	t, err := ParseDate(value)
	if err != nil {
		return nil, err
	}

	return NormalizeDate(t), nil
}

// IsTechnicallyNone reports whether v means "no date": nil, empty or a sentinel year.
func IsTechnicallyNone(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		if strings.TrimSpace(val) == "" {
			return true
		}
		t, err := ParseDate(val)
		if err != nil {
			return false
		}
		return isSentinel(t)
	case time.Time:
		return val.IsZero() || isSentinel(val)
	}

	return false
}

func asTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		t, err := ParseDate(val)
		return t, err == nil
	case time.Time:
		return val, true
	}

	return time.Time{}, false
}

// IsSameDate compares two from/to dates. Both none is equal, one none is not,
// otherwise dates within SameDateTolerance of each other are equal.
// Values that do not parse are compared verbatim.
func IsSameDate(a, b any) bool {
	noneA, noneB := IsTechnicallyNone(a), IsTechnicallyNone(b)
	if noneA || noneB {
		return noneA == noneB
	}

	ta, okA := asTime(a)
	tb, okB := asTime(b)
	if !okA || !okB {
		sa, isStrA := a.(string)
		sb, isStrB := b.(string)
		return isStrA && isStrB && sa == sb
	}

	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}

	return diff <= SameDateTolerance
}
