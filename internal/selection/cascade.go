package selection

import (
	"sync"

	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
)

// Choice is the current value of the three dropdowns. Empty means nothing selected.
type Choice struct {
	CountryID string `json:"country_id"`
	StateID   string `json:"state_id"`
	City      string `json:"city"`
}

// Pick is a completed dropdown selection, in display names.
type Pick struct {
	City    string
	State   string
	Country string
}

// Cascade is the country → state → city dropdown state machine. Choosing a
// level resets every level below it.
type Cascade struct {
	mu     sync.Mutex
	h      *hierarchy.Hierarchy
	choice Choice
}

// NewCascade creates a cascade over h with nothing selected.
func NewCascade(h *hierarchy.Hierarchy) *Cascade {
	if h == nil {
		h = hierarchy.Empty()
	}
	return &Cascade{h: h}
}

// Countries returns the country options.
func (c *Cascade) Countries() []hierarchy.Entry {
	return c.h.ListCountries()
}

// Choice returns the current dropdown values.
func (c *Cascade) Choice() Choice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.choice
}

// ChooseCountry selects countryID, clears state and city, and returns the state
// options. An empty or unknown id leaves the state dropdown without options.
func (c *Cascade) ChooseCountry(countryID string) []hierarchy.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.choice = Choice{CountryID: countryID}
	if countryID == "" {
		return []hierarchy.Entry{}
	}
	return c.h.ListStates(countryID)
}

// ChooseState selects stateID under the current country, clears the city, and
// returns the city options.
func (c *Cascade) ChooseState(stateID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.choice.StateID = stateID
	c.choice.City = ""
	if stateID == "" {
		return []string{}
	}
	return c.h.ListCities(c.choice.CountryID, stateID)
}

// ChooseCity selects city and returns the display-name triple. It reports false,
// leaving the choice unchanged, when the city is not listed under the current
// country and state.
func (c *Cascade) ChooseCity(city string) (Pick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if city == "" || !c.h.HasCity(c.choice.CountryID, c.choice.StateID, city) {
		return Pick{}, false
	}
	country, _ := c.h.Country(c.choice.CountryID)
	state, _ := c.h.State(c.choice.CountryID, c.choice.StateID)
	c.choice.City = city
	return Pick{City: city, State: state.Name, Country: country.Name}, true
}

// Reselect moves the dropdowns to match a resolved place, trying each country
// key in order. It selects the deepest level that matches and reports whether
// anything changed. When no country matches the choice is left untouched.
func (c *Cascade) Reselect(countryKeys []string, stateName, city string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var countryID string
	for _, key := range countryKeys {
		if key == "" {
			continue
		}
		id := hierarchy.NormalizeID(key)
		if _, ok := c.h.Country(id); ok {
			countryID = id
			break
		}
	}
	if countryID == "" {
		return false
	}

	next := Choice{CountryID: countryID}
	if stateName != "" {
		stateID := hierarchy.NormalizeID(stateName)
		if _, ok := c.h.State(countryID, stateID); ok {
			next.StateID = stateID
			if city != "" && c.h.HasCity(countryID, stateID, city) {
				next.City = city
			}
		}
	}

	if next == c.choice {
		return false
	}
	c.choice = next
	return true
}
