package airports

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Placeholder identifiers. These occupy LED positions on the map but never
// reach the weather API: NULL marks an unlit gap in the string, LGND marks a
// legend light.
const (
	PlaceholderNull   = "NULL"
	PlaceholderLegend = "LGND"
)

// Info holds optional enrichment for one airport, loaded from an
// OurAirports-format CSV when one is configured.
type Info struct {
	Ident     string  `json:"ident"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Elevation int     `json:"elevation_ft,omitempty"`
}

// Catalog is the configured airport list in display order, plus whatever
// enrichment the airports database provided.
type Catalog struct {
	ids  []string
	info map[string]Info
}

// NewCatalog builds a catalog from an ordered identifier list. Identifiers are
// expected to be upper-cased already (the config layer canonicalizes them).
func NewCatalog(ids []string) *Catalog {
	out := make([]string, len(ids))
	copy(out, ids)
	return &Catalog{ids: out, info: make(map[string]Info)}
}

// IsPlaceholder reports whether the identifier is a display placeholder rather
// than a real station.
func IsPlaceholder(id string) bool {
	return id == PlaceholderNull || id == PlaceholderLegend
}

// IDs returns the full ordered list, placeholders included.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Fetchable returns the identifiers to request from the weather API:
// the configured order with placeholders removed and duplicates collapsed.
func (c *Catalog) Fetchable() []string {
	seen := make(map[string]bool, len(c.ids))
	var out []string
	for _, id := range c.ids {
		if IsPlaceholder(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Info returns the enrichment record for an identifier, if the airports
// database carried one.
func (c *Catalog) Info(id string) (Info, bool) {
	info, ok := c.info[id]
	return info, ok
}

// LoadInfoFromCSV enriches the catalog from an OurAirports-format CSV
// (ident at index 1, name at 3, latitude at 4, longitude at 5, elevation
// at 6). Rows for airports outside the catalog are skipped. Enrichment is
// optional; a missing row is not an error.
func (c *Catalog) LoadInfoFromCSV(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open airports database: %w", err)
	}
	defer file.Close()

	wanted := make(map[string]bool, len(c.ids))
	for _, id := range c.Fetchable() {
		wanted[id] = true
	}

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read airports database header: %w", err)
	}

	for {
		record, err := reader.Read()
		if err != nil {
			break // EOF or a malformed tail row; keep what we have
		}
		if len(record) < 7 {
			continue
		}
		ident := strings.ToUpper(strings.TrimSpace(record[1]))
		if !wanted[ident] {
			continue
		}

		info := Info{Ident: ident, Name: record[3]}
		if lat, err := strconv.ParseFloat(record[4], 64); err == nil {
			info.Latitude = lat
		}
		if lon, err := strconv.ParseFloat(record[5], 64); err == nil {
			info.Longitude = lon
		}
		if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
			info.Elevation = int(elev)
		}
		c.info[ident] = info
	}

	return nil
}
