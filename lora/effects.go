package lora

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/os2mo/loracache"
)

var activeStates = map[string]bool{
	"Aktiv":      true,
	"Publiceret": true,
}

// Effect is one interval over which a registration's content is constant.
type Effect struct {
	From time.Time
	To   time.Time
	// Registration holds the attributter, tilstande and relationer lists
	// filtered to the entries valid throughout the interval, without virkning.
	Registration json.RawMessage
}

// registration maps section (attributter, tilstande, relationer) to named lists.
type registration map[string]map[string][]map[string]any

type registryObject struct {
	ID             string         `json:"id"`
	Registreringer []registration `json:"registreringer"`
}

type virkningEntry struct {
	section string
	name    string
	value   map[string]any
	from    time.Time
	to      time.Time
}

func parseVirkning(entry map[string]any) (time.Time, time.Time, error) {
	v, ok := entry["virkning"].(map[string]any)
	if !ok {
		return time.Time{}, time.Time{}, errors.Wrap(loracache.ErrUnexpectedValue, "entry without virkning")
	}

	fromStr, _ := v["from"].(string)
	toStr, _ := v["to"].(string)

	from, err := loracache.ParseDate(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to, err := loracache.ParseDate(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	return from, to, nil
}

// Effects splits the newest registration of a registry object into intervals
// of constant content. Intervals where validityState (a tilstande list) is not
// active are skipped and adjacent intervals with equal content are merged.
// Only intervals intersecting the window are returned; outside full history
// only the interval containing window.Now is kept.
func Effects(raw json.RawMessage, validityState string, window loracache.Window) (string, []Effect, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj registryObject
	if err := dec.Decode(&obj); err != nil {
		return "", nil, errors.Wrap(loracache.ErrUnexpectedValue, err.Error())
	}

	if obj.ID == "" {
		return "", nil, errors.Wrap(loracache.ErrUnexpectedValue, "registry object without id")
	}

	if len(obj.Registreringer) == 0 {
		return obj.ID, nil, nil
	}
	newest := obj.Registreringer[0]

	var entries []virkningEntry
	// keyed by instant; one rendering per instant is chosen deterministically
	boundarySet := map[string]time.Time{}
	for section, lists := range newest {
		for name, list := range lists {
			for _, value := range list {
				from, to, err := parseVirkning(value)
				if err != nil {
					return obj.ID, nil, errors.Wrapf(err, "%s %s.%s", obj.ID, section, name)
				}
				if !from.Before(to) {
					continue
				}
				entries = append(entries, virkningEntry{section: section, name: name, value: value, from: from, to: to})
				for _, t := range []time.Time{from, to} {
					key := t.UTC().Format(time.RFC3339Nano)
					if seen, ok := boundarySet[key]; !ok || t.Format(time.RFC3339Nano) < seen.Format(time.RFC3339Nano) {
						boundarySet[key] = t
					}
				}
			}
		}
	}

	boundaries := make([]time.Time, 0, len(boundarySet))
	for _, b := range boundarySet {
		boundaries = append(boundaries, b)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })

	var effects []Effect
	var previous []byte

	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]

		filtered := registration{}
		active := validityState == ""
		for _, e := range entries {
			if e.from.After(start) || e.to.Before(end) {
				continue
			}

			stripped := make(map[string]any, len(e.value))
			for k, v := range e.value {
				if k != "virkning" {
					stripped[k] = v
				}
			}

			if filtered[e.section] == nil {
				filtered[e.section] = map[string][]map[string]any{}
			}
			filtered[e.section][e.name] = append(filtered[e.section][e.name], stripped)

			if e.section == "tilstande" && e.name == validityState {
				for _, key := range []string{"gyldighed", "publiceret"} {
					if state, ok := stripped[key].(string); ok && activeStates[state] {
						active = true
					}
				}
			}
		}

		if !active || len(filtered) == 0 {
			previous = nil
			continue
		}

		encoded, err := json.Marshal(filtered)
		if err != nil {
			return obj.ID, nil, errors.WithStack(err)
		}

		if n := len(effects); n > 0 && previous != nil && effects[n-1].To.Equal(start) && bytes.Equal(previous, encoded) {
			effects[n-1].To = end
			continue
		}

		effects = append(effects, Effect{From: start, To: end, Registration: encoded})
		previous = encoded
	}

	kept := effects[:0]
	for _, e := range effects {
		if !window.Contains(e.From, e.To) {
			continue
		}
		if !window.KeepHistory && (window.Now.Before(e.From) || !window.Now.Before(e.To)) {
			continue
		}
		kept = append(kept, e)
	}

	return obj.ID, kept, nil
}
