// Package stations provides a directory of UK station CRS codes and names,
// embedded at compile time. The CLI uses it to reject unknown codes before
// any network call goes out.
package stations

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/dgoodall/trainboard/internal/domain"
)

// rawCSV contains the station list (crs,name per line), embedded so the
// binary needs no data files at runtime.
//
//go:embed stations.csv
var rawCSV string

// Station is one directory row.
type Station struct {
	CRS  string
	Name string
}

// Directory maps CRS codes to station names.
type Directory struct {
	byCRS map[string]string
	all   []Station
}

// Load parses the embedded station list. The data is validated at build
// time by the package tests, so a parse failure here is a programming error.
func Load() (*Directory, error) {
	records, err := csv.NewReader(strings.NewReader(rawCSV)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stations.Load: parse embedded csv: %w", err)
	}

	d := &Directory{byCRS: make(map[string]string, len(records))}
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) < 2 {
			continue
		}
		crs := strings.ToUpper(strings.TrimSpace(rec[0]))
		name := strings.TrimSpace(rec[1])
		d.byCRS[crs] = name
		d.all = append(d.all, Station{CRS: crs, Name: name})
	}
	sort.Slice(d.all, func(i, j int) bool { return d.all[i].CRS < d.all[j].CRS })
	return d, nil
}

// Lookup returns the station name for a CRS code (case-insensitive).
func (d *Directory) Lookup(crs string) (string, bool) {
	name, ok := d.byCRS[strings.ToUpper(strings.TrimSpace(crs))]
	return name, ok
}

// Search returns stations whose code or name contains the query,
// case-insensitively, in code order.
func (d *Directory) Search(query string) []Station {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Station
	for _, s := range d.all {
		if strings.Contains(strings.ToLower(s.CRS), q) || strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that every code is present in the directory. The returned
// error wraps domain.ErrValidation and names the first unknown code.
func (d *Directory) Validate(codes ...string) error {
	if len(codes) == 0 {
		return fmt.Errorf("%w: at least one station code is required", domain.ErrValidation)
	}
	for _, c := range codes {
		if _, ok := d.Lookup(c); !ok {
			return fmt.Errorf("%w: unknown station code %q", domain.ErrValidation, c)
		}
	}
	return nil
}
