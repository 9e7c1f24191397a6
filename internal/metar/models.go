package metar

import (
	"time"
)

// Category is the coarse flight-condition classification derived from
// ceiling and visibility (or supplied directly by the upstream API).
type Category string

const (
	CategoryVFR     Category = "VFR"
	CategoryMVFR    Category = "MVFR"
	CategoryIFR     Category = "IFR"
	CategoryLIFR    Category = "LIFR"
	CategoryNoWx    Category = "NOWX"    // station reported, no usable weather data
	CategoryInvalid Category = "INVALID" // rating could not be produced
)

// Rank orders categories from worst to best conditions. Higher is better.
// NOWX and INVALID sit below LIFR so sorting by severity surfaces them first.
func (c Category) Rank() int {
	switch c {
	case CategoryVFR:
		return 4
	case CategoryMVFR:
		return 3
	case CategoryIFR:
		return 2
	case CategoryLIFR:
		return 1
	default:
		return 0
	}
}

// IsFlightCategory reports whether c is one of the four real flight categories
// (as opposed to the NOWX/INVALID pseudo-ratings).
func (c Category) IsFlightCategory() bool {
	switch c {
	case CategoryVFR, CategoryMVFR, CategoryIFR, CategoryLIFR:
		return true
	}
	return false
}

// ParseCategory returns the matching flight category for a verbatim API token,
// or false when the token is not one of the four known values.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryVFR, CategoryMVFR, CategoryIFR, CategoryLIFR:
		return Category(s), true
	}
	return "", false
}

// Source identifies where a rating's category came from.
type Source string

const (
	SourceAPI        Source = "API"        // upstream-supplied flight_category used verbatim
	SourceCalculated Source = "CALCULATED" // computed locally from ceiling/visibility
	SourceFallback   Source = "FALLBACK"   // produced from an error path, no observation data
)

// Coverage codes that constitute a ceiling. FEW/SCT/CLR/SKC never do.
const (
	CoverageFewClouds = "FEW"
	CoverageScattered = "SCT"
	CoverageBroken    = "BKN"
	CoverageOvercast  = "OVC"
	CoverageObscured  = "OVX"
	CoverageClear     = "CLR"
	CoverageSkyClear  = "SKC"
)

// CloudLayer is a single reported cloud layer. Order within an observation is
// as reported; it does not affect classification but is kept for diagnostics.
// Unknown coverage codes are retained verbatim so the classifier decides
// relevance rather than the parser.
type CloudLayer struct {
	Coverage  string `json:"coverage"`
	BaseFtAGL *int   `json:"base_ft_agl,omitempty"` // nil when the layer carried no base
}

// ContributesToCeiling reports whether this layer can set the ceiling.
func (l CloudLayer) ContributesToCeiling() bool {
	switch l.Coverage {
	case CoverageBroken, CoverageOvercast, CoverageObscured:
		return l.BaseFtAGL != nil
	}
	return false
}

// Visibility is a visibility value normalized to statute miles.
type Visibility struct {
	StatuteMiles float64 `json:"statute_miles"`
	LowerBound   bool    `json:"lower_bound"` // value came from a "10+"/"P6SM" style token
	Derived      bool    `json:"derived"`     // normalized from text rather than a direct numeric field
}

// Observation is the canonical intermediate form produced by the schema
// adapter, independent of which response shape the report arrived in.
// Clouds is never nil; an empty slice means clear skies were reported.
type Observation struct {
	Airport     string
	Clouds      []CloudLayer
	Visibility  *Visibility // nil when no visibility field was present
	APICategory Category    // empty when absent or unrecognized
	ObservedAt  *time.Time

	// HasSkyData records whether the report carried any cloud or visibility
	// structure at all. A report with an empty clouds container still has sky
	// data (clear skies); a report with neither structure does not, and the
	// classifier treats that as missing input rather than clear conditions.
	HasSkyData bool

	// Diagnostics carries adapter notes (schema ambiguity, normalization
	// fallbacks). Exposed read-only downstream.
	Diagnostics map[string]string
}

// RatingRecord is the terminal per-airport output of one pipeline cycle.
// Records are superseded by the next cycle, never mutated.
type RatingRecord struct {
	Airport     string            `json:"airport"`
	Category    Category          `json:"category"`
	Source      Source            `json:"source"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// Cycle is the result of one full ingestion-and-classification pass.
type Cycle struct {
	Records   map[string]RatingRecord `json:"records"`
	StartedAt time.Time               `json:"started_at"`
	Duration  time.Duration           `json:"duration"`
}

// CountByCategory tallies the cycle's records per category, for metrics and
// the status endpoint.
func (c *Cycle) CountByCategory() map[Category]int {
	counts := make(map[Category]int)
	for _, rec := range c.Records {
		counts[rec.Category]++
	}
	return counts
}
