package main

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// phase collects the findings of one check.
type phase struct {
	name     string
	findings []string
}

func (p *phase) findingf(format string, args ...any) {
	p.findings = append(p.findings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.findings) == 0 }

func checkFields(records []domain.CityRecord) *phase {
	p := &phase{name: "Record fields"}
	for i, r := range records {
		if strings.TrimSpace(r.Name) == "" {
			p.findingf("record %d: empty city name", i)
		}
		if strings.TrimSpace(r.StateName) == "" {
			p.findingf("record %d (%s): empty state_name", i, r.Name)
		}
		if strings.TrimSpace(r.CountryName) == "" {
			p.findingf("record %d (%s): empty country_name", i, r.Name)
		}
		if r.Name != strings.TrimSpace(r.Name) {
			p.findingf("record %d: city %q has surrounding whitespace", i, r.Name)
		}
	}
	return p
}

func checkCollisions(h *hierarchy.Hierarchy) *phase {
	p := &phase{name: "Identifier collisions"}
	for _, c := range h.Collisions() {
		if c.Level == "state" {
			p.findingf("state id %q in %s is shared by %q; the last one shadows the others", c.ID, c.Country, c.Names)
			continue
		}
		p.findingf("country id %q is shared by %q; the last one shadows the others", c.ID, c.Names)
	}
	return p
}

type cityKey struct {
	country, state string
}

// checkNearDuplicates flags city names in the same state whose folded forms
// are within maxDist edits of each other. Exact repeats are reported too.
func checkNearDuplicates(records []domain.CityRecord, maxDist int) *phase {
	p := &phase{name: "Near-duplicate city names"}

	groups := make(map[cityKey][]string)
	var order []cityKey
	for _, r := range records {
		k := cityKey{r.CountryName, r.StateName}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r.Name)
	}

	for _, k := range order {
		names := groups[k]
		folded := make([]string, len(names))
		for i, n := range names {
			folded[i] = fold(n)
		}
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				if names[i] == names[j] {
					p.findingf("%s / %s: %q listed more than once", k.country, k.state, names[i])
					continue
				}
				if nearlyEqual(folded[i], folded[j], maxDist) {
					p.findingf("%s / %s: %q and %q look like the same city", k.country, k.state, names[i], names[j])
				}
			}
		}
	}
	return p
}

// nearlyEqual applies the edit-distance tolerance only to names long enough
// that a single edit is unlikely to be a different place.
func nearlyEqual(a, b string, maxDist int) bool {
	if a == b {
		return true
	}
	if maxDist <= 0 || len(a) < 5 || len(b) < 5 {
		return false
	}
	return levenshtein.ComputeDistance(a, b) <= maxDist
}

// fold lower-cases s, strips diacritics and collapses punctuation and
// whitespace so "Ọ̀yọ́" and "oyo" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case !space && b.Len() > 0:
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSuffix(b.String(), " ")
}
