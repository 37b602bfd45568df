package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// DayNames indexes weekday names with Monday = 0, matching the schedule
// document keys "0".."6".
var DayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// BellEvent is a single scheduled ring. Relay 0 means the event carries no
// actuation; BellLength 0 means the configured default duration applies.
type BellEvent struct {
	Time       string `json:"time"`
	BellName   string `json:"bellname,omitempty"`
	Relay      int    `json:"relay,omitempty"`
	BellLength int    `json:"belllength,omitempty"`
}

// Schedule maps weekday index (Monday = 0) to that day's events. A missing
// day means no events. Event lists are sorted by time at ingestion; events
// sharing a time keep their document order.
type Schedule map[int][]BellEvent

// NextBell is a resolved upcoming event annotated with its weekday name.
type NextBell struct {
	Event   BellEvent
	DayName string
}

// Credentials are the stored network credentials.
type Credentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ParseSchedule decodes and validates a remote or cached schedule document.
// Malformed payloads are rejected wholesale so a bad fetch can never leave a
// partially applied schedule behind.
func ParseSchedule(data []byte) (Schedule, error) {
	var doc map[string][]BellEvent
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed schedule document: %w", err)
	}

	sched := make(Schedule, len(doc))
	for key, events := range doc {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			return nil, fmt.Errorf("schedule document has invalid weekday key %q", key)
		}
		for _, ev := range events {
			if !timePattern.MatchString(ev.Time) {
				return nil, fmt.Errorf("schedule event on %s has invalid time %q", DayNames[day], ev.Time)
			}
			if ev.Relay < 0 {
				return nil, fmt.Errorf("schedule event at %s has invalid relay %d", ev.Time, ev.Relay)
			}
			if ev.BellLength < 0 {
				return nil, fmt.Errorf("schedule event at %s has invalid belllength %d", ev.Time, ev.BellLength)
			}
		}
		sorted := make([]BellEvent, len(events))
		copy(sorted, events)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
		sched[day] = sorted
	}
	return sched, nil
}

// Encode renders the schedule back into the document shape used by the
// remote repository and the on-device cache.
func (s Schedule) Encode() ([]byte, error) {
	doc := make(map[string][]BellEvent, len(s))
	for day, events := range s {
		doc[strconv.Itoa(day)] = events
	}
	return json.Marshal(doc)
}

// ManifestEntry is one named schedule variant.
type ManifestEntry struct {
	Name string
	File string
}

// Manifest is the remote document listing the available schedule variants.
// Entry order is the manifest's own object order, which decides the fallback
// choice when the active name disappears from a new manifest.
type Manifest struct {
	BaseURL string
	Entries []ManifestEntry
}

// ParseManifest decodes and validates a manifest document. Both base_url and
// a non-empty schedules map are required; anything less is rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw struct {
		BaseURL   *string           `json:"base_url"`
		Schedules map[string]string `json:"schedules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed manifest document: %w", err)
	}
	if raw.BaseURL == nil {
		return nil, errors.New("manifest missing base_url")
	}
	if raw.Schedules == nil {
		return nil, errors.New("manifest missing schedules")
	}
	if len(raw.Schedules) == 0 {
		return nil, errors.New("manifest lists no schedules")
	}

	order, err := manifestKeyOrder(data)
	if err != nil {
		return nil, err
	}

	man := &Manifest{BaseURL: *raw.BaseURL}
	for _, name := range order {
		man.Entries = append(man.Entries, ManifestEntry{Name: name, File: raw.Schedules[name]})
	}
	return man, nil
}

// manifestKeyOrder walks the raw tokens of the schedules object, since
// decoding into a map would lose the manifest's key order.
func manifestKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		if key != "schedules" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var order []string
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, _ := nameTok.(string)
			order = append(order, name)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
		return order, nil
	}
	return nil, errors.New("manifest missing schedules")
}

// Lookup returns the filename for a named schedule variant.
func (m *Manifest) Lookup(name string) (string, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e.File, true
		}
	}
	return "", false
}

// Has reports whether the manifest carries the named variant.
func (m *Manifest) Has(name string) bool {
	_, ok := m.Lookup(name)
	return ok
}

// First returns the manifest's first entry in manifest order.
func (m *Manifest) First() ManifestEntry {
	return m.Entries[0]
}

// Names lists the variant names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		names = append(names, e.Name)
	}
	return names
}
