package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Lagos":         "lagos",
		"Ọ̀yọ́":         "oyo",
		"Port-Harcourt": "port harcourt",
		"  Benin  City": "benin city",
		"Abéokuta":      "abeokuta",
	}
	for in, want := range tests {
		assert.Equal(t, want, fold(in), in)
	}
}

func TestCheckNearDuplicates(t *testing.T) {
	records := []domain.CityRecord{
		{Name: "Abeokuta", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Abéokuta", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Ijebu Ode", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Ijebu-Ode", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Sagamu", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Shagamu", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Ota", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Oka", StateName: "Ogun", CountryName: "Nigeria"},
		{Name: "Ikeja", StateName: "Lagos", CountryName: "Nigeria"},
		{Name: "Ikeja", StateName: "Lagos", CountryName: "Nigeria"},
		{Name: "Sagamu", StateName: "Lagos", CountryName: "Nigeria"},
	}

	p := checkNearDuplicates(records, 1)
	assert.Len(t, p.findings, 4, p.findings)
	assert.Contains(t, p.findings[0], `"Abeokuta" and "Abéokuta"`)
	assert.Contains(t, p.findings[1], `"Ijebu Ode" and "Ijebu-Ode"`)
	assert.Contains(t, p.findings[2], `"Sagamu" and "Shagamu"`)
	assert.Contains(t, p.findings[3], `"Ikeja" listed more than once`)

	assert.Len(t, checkNearDuplicates(records, 0).findings, 3, "distance 0 keeps only folded-equal names")
}

func TestCheckFields(t *testing.T) {
	p := checkFields([]domain.CityRecord{
		{Name: "Lagos", StateName: "Lagos", CountryName: "Nigeria"},
		{Name: "", StateName: "Lagos", CountryName: "Nigeria"},
		{Name: " Kano", StateName: "", CountryName: ""},
	})
	assert.Len(t, p.findings, 4)
}

func TestCheckCollisions(t *testing.T) {
	h := hierarchy.Build([]domain.CityRecord{
		{Name: "A", StateName: "Cross River", CountryName: "Nigeria"},
		{Name: "B", StateName: "Cross  River", CountryName: "Nigeria"},
	})
	p := checkCollisions(h)
	require.Len(t, p.findings, 1)
	assert.Contains(t, p.findings[0], `"Cross_River"`)
}

func writeCities(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun(t *testing.T) {
	clean := writeCities(t, `[
		{"name": "Lagos", "state_name": "Lagos", "country_name": "Nigeria"},
		{"name": "Abuja", "state_name": "Federal Capital Territory", "country_name": "Nigeria"}
	]`)
	dirty := writeCities(t, `[
		{"name": "Sagamu", "state_name": "Ogun", "country_name": "Nigeria"},
		{"name": "Shagamu", "state_name": "Ogun", "country_name": "Nigeria"}
	]`)

	var out bytes.Buffer
	assert.Equal(t, 0, run(&out, clean, true, 1))
	assert.Contains(t, out.String(), "Records: 2 cities, 1 countries")
	assert.Contains(t, out.String(), "All checks passed.")

	out.Reset()
	assert.Equal(t, 0, run(&out, dirty, false, 1))
	assert.Contains(t, out.String(), "look like the same city")

	out.Reset()
	assert.Equal(t, 1, run(&out, dirty, true, 1))

	out.Reset()
	assert.Equal(t, 1, run(&out, writeCities(t, `{not json`), false, 1))
	assert.Contains(t, out.String(), "FATAL")

	out.Reset()
	assert.Equal(t, 1, run(&out, filepath.Join(t.TempDir(), "missing.json"), false, 1))
}
