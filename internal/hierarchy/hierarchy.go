// Package hierarchy builds the country → state → city index used to drive
// cascading location selection.
package hierarchy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/couchcryptid/weather-alerts/internal/domain"
)

// Entry is a selectable country or state.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Collision records two distinct display names that normalize to the same identifier.
type Collision struct {
	Level   string   `json:"level"`             // "country" or "state"
	Country string   `json:"country,omitempty"` // owning country name for state collisions
	ID      string   `json:"id"`
	Names   []string `json:"names"`
}

type state struct {
	entry  Entry
	cities []string
}

type country struct {
	entry    Entry
	states   []*state
	byName   map[string]*state
	byID     map[string]*state
	stateIDs map[string][]string
}

// Hierarchy is an immutable three-level index. It is safe for concurrent reads.
type Hierarchy struct {
	countries  []*country
	byName     map[string]*country
	byID       map[string]*country
	countryIDs map[string][]string
	cityCount  int
}

// NormalizeID replaces every run of whitespace in name with a single underscore.
// Leading and trailing runs are replaced too, so " A  B" becomes "_A_B".
func NormalizeID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Empty returns a hierarchy with zero countries.
func Empty() *Hierarchy {
	return Build(nil)
}

// Build groups records by country name, then by state name, preserving the
// first-seen order of countries, of states within a country, and of cities
// within a state. When two names normalize to the same identifier, lookups by
// that identifier resolve to the one built last.
func Build(records []domain.CityRecord) *Hierarchy {
	h := &Hierarchy{
		byName:     make(map[string]*country),
		byID:       make(map[string]*country),
		countryIDs: make(map[string][]string),
	}

	for _, rec := range records {
		c, ok := h.byName[rec.CountryName]
		if !ok {
			c = &country{
				entry:    Entry{ID: NormalizeID(rec.CountryName), Name: rec.CountryName},
				byName:   make(map[string]*state),
				byID:     make(map[string]*state),
				stateIDs: make(map[string][]string),
			}
			h.byName[rec.CountryName] = c
			h.countries = append(h.countries, c)
		}

		s, ok := c.byName[rec.StateName]
		if !ok {
			s = &state{entry: Entry{ID: NormalizeID(rec.StateName), Name: rec.StateName}}
			c.byName[rec.StateName] = s
			c.states = append(c.states, s)
		}
		s.cities = append(s.cities, rec.Name)
		h.cityCount++
	}

	// Identifier maps are filled in build order so the last-built entry wins.
	for _, c := range h.countries {
		h.byID[c.entry.ID] = c
		h.countryIDs[c.entry.ID] = append(h.countryIDs[c.entry.ID], c.entry.Name)
		for _, s := range c.states {
			c.byID[s.entry.ID] = s
			c.stateIDs[s.entry.ID] = append(c.stateIDs[s.entry.ID], s.entry.Name)
		}
	}

	return h
}

// Load decodes a JSON array of city records and builds the hierarchy.
// Any read or decode failure, including data after the array, wraps
// domain.ErrDataUnavailable.
func Load(r io.Reader) (*Hierarchy, error) {
	dec := json.NewDecoder(r)
	var records []domain.CityRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode city list: %w", domain.ErrDataUnavailable, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after city array")
		}
		return nil, fmt.Errorf("%w: decode city list: %w", domain.ErrDataUnavailable, err)
	}
	return Build(records), nil
}

// LoadFile reads the city list at path.
func LoadFile(path string) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open city list: %w", domain.ErrDataUnavailable, err)
	}
	defer f.Close()
	return Load(f)
}

// ListCountries returns countries in order of first appearance.
func (h *Hierarchy) ListCountries() []Entry {
	out := make([]Entry, len(h.countries))
	for i, c := range h.countries {
		out[i] = c.entry
	}
	return out
}

// ListStates returns the states of countryID in first-seen order, or an empty
// slice when the country is unknown.
func (h *Hierarchy) ListStates(countryID string) []Entry {
	c, ok := h.byID[countryID]
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, len(c.states))
	for i, s := range c.states {
		out[i] = s.entry
	}
	return out
}

// ListCities returns the city names of the (countryID, stateID) pair in
// first-seen order, or an empty slice when the pair is unknown.
func (h *Hierarchy) ListCities(countryID, stateID string) []string {
	s, ok := h.lookupState(countryID, stateID)
	if !ok {
		return []string{}
	}
	out := make([]string, len(s.cities))
	copy(out, s.cities)
	return out
}

// Country looks up a country by identifier.
func (h *Hierarchy) Country(countryID string) (Entry, bool) {
	c, ok := h.byID[countryID]
	if !ok {
		return Entry{}, false
	}
	return c.entry, true
}

// State looks up a state by country and state identifier.
func (h *Hierarchy) State(countryID, stateID string) (Entry, bool) {
	s, ok := h.lookupState(countryID, stateID)
	if !ok {
		return Entry{}, false
	}
	return s.entry, true
}

// HasCity reports whether city is listed under the (countryID, stateID) pair.
func (h *Hierarchy) HasCity(countryID, stateID, city string) bool {
	s, ok := h.lookupState(countryID, stateID)
	if !ok {
		return false
	}
	for _, name := range s.cities {
		if name == city {
			return true
		}
	}
	return false
}

// CountryCount returns the number of distinct country names.
func (h *Hierarchy) CountryCount() int { return len(h.countries) }

// CityCount returns the number of city records indexed.
func (h *Hierarchy) CityCount() int { return h.cityCount }

// Collisions lists identifiers shared by more than one distinct name,
// countries first, then states in country order.
func (h *Hierarchy) Collisions() []Collision {
	var out []Collision
	seen := make(map[string]bool)
	for _, c := range h.countries {
		names := h.countryIDs[c.entry.ID]
		if len(names) > 1 && !seen[c.entry.ID] {
			seen[c.entry.ID] = true
			out = append(out, Collision{Level: "country", ID: c.entry.ID, Names: names})
		}
	}
	for _, c := range h.countries {
		stateSeen := make(map[string]bool)
		for _, s := range c.states {
			names := c.stateIDs[s.entry.ID]
			if len(names) > 1 && !stateSeen[s.entry.ID] {
				stateSeen[s.entry.ID] = true
				out = append(out, Collision{Level: "state", Country: c.entry.Name, ID: s.entry.ID, Names: names})
			}
		}
	}
	return out
}

func (h *Hierarchy) lookupState(countryID, stateID string) (*state, bool) {
	c, ok := h.byID[countryID]
	if !ok {
		return nil, false
	}
	s, ok := c.byID[stateID]
	return s, ok
}
