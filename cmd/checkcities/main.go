// Command checkcities runs data-quality checks over the flat city list that
// backs the country/state/city dropdowns: record fields, identifier
// collisions between distinct names, and accent-folded near-duplicate
// city names within a state.
//
// Usage:
//
//	go run ./cmd/checkcities -cities static/cities.json [-strict] [-distance 1]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/hierarchy"
)

func main() {
	citiesPath := flag.String("cities", "static/cities.json", "path to the JSON city list")
	strict := flag.Bool("strict", false, "exit non-zero on any finding, not only parse failures")
	distance := flag.Int("distance", 1, "maximum edit distance between folded names treated as near-duplicates")
	flag.Parse()

	os.Exit(run(os.Stdout, *citiesPath, *strict, *distance))
}

func run(out io.Writer, path string, strict bool, distance int) int {
	fmt.Fprintln(out, "=== City List Data Quality ===")
	fmt.Fprintln(out)

	records, err := loadRecords(path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load city list: %v\n", err)
		return 1
	}
	h := hierarchy.Build(records)

	phases := []*phase{
		checkFields(records),
		checkCollisions(h),
		checkNearDuplicates(records, distance),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[33mWARN (%d findings)\033[0m", len(p.findings))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d cities, %d countries\n", h.CityCount(), h.CountryCount())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, f := range p.findings {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, f)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll checks passed.")
		return 0
	}
	if strict {
		fmt.Fprintln(out, "\nChecks FAILED (strict).")
		return 1
	}
	fmt.Fprintln(out, "\nChecks completed with findings.")
	return 0
}

func loadRecords(path string) ([]domain.CityRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []domain.CityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
