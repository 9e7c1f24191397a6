package metar

import (
	"fmt"
)

// Policy selects how a rating is produced. It is threaded in explicitly so
// cycles with different policies can run side by side in tests.
type Policy struct {
	// PreferAPI uses the upstream-supplied flight_category verbatim when one
	// is present instead of computing locally.
	PreferAPI bool

	// ForceCalculation always computes locally, even when the upstream
	// supplied a category. Takes precedence over PreferAPI.
	ForceCalculation bool

	// AssumeVFRWhenMissing controls the rating when a report carries neither
	// cloud nor visibility data: true yields a computed VFR (the original
	// system's lenient default), false yields INVALID with diagnostics.
	AssumeVFRWhenMissing bool
}

// Ceiling thresholds in feet AGL and visibility thresholds in statute miles.
const (
	lifrCeilingFt = 500
	ifrCeilingFt  = 1000
	mvfrCeilingFt = 3000

	lifrVisibilityMi = 1.0
	ifrVisibilityMi  = 3.0
	mvfrVisibilityMi = 5.0
)

// Ceiling returns the lowest base among layers that constitute a ceiling
// (BKN/OVC/OVX with a reported base). ok is false when no such layer exists,
// which rule evaluation treats as unlimited.
func Ceiling(clouds []CloudLayer) (ft int, ok bool) {
	for _, layer := range clouds {
		if !layer.ContributesToCeiling() {
			continue
		}
		if !ok || *layer.BaseFtAGL < ft {
			ft = *layer.BaseFtAGL
			ok = true
		}
	}
	return ft, ok
}

// Classify produces the rating record for one canonical observation.
func Classify(obs Observation, pol Policy) RatingRecord {
	rec := RatingRecord{
		Airport:     obs.Airport,
		Diagnostics: map[string]string{},
	}
	for k, v := range obs.Diagnostics {
		rec.Diagnostics[k] = v
	}

	// Source reconciliation: forced calculation beats the API category, the
	// API category beats local calculation when preferred and present.
	if !pol.ForceCalculation && pol.PreferAPI && obs.APICategory != "" {
		rec.Category = obs.APICategory
		rec.Source = SourceAPI
		return rec
	}

	ceilingFt, hasCeiling := Ceiling(obs.Clouds)

	// A report with no sky data at all is missing input, not clear skies.
	// What that means is a policy choice (the upstream config flag for this
	// was inconsistent); both behaviors are explicit here.
	if !obs.HasSkyData && obs.Visibility == nil {
		if pol.AssumeVFRWhenMissing {
			rec.Category = CategoryVFR
			rec.Source = SourceCalculated
			rec.Diagnostics["assumed_vfr"] = "no ceiling or visibility data; policy assumes VFR"
			return rec
		}
		rec.Category = CategoryInvalid
		rec.Source = SourceFallback
		rec.Diagnostics["missing_inputs"] = "report carried neither cloud nor visibility data"
		return rec
	}

	// Absent visibility is treated as unlimited: a data gap must not force a
	// worse category, and the choice is recorded so it is visible downstream.
	visibilityMi := mvfrVisibilityMi + 1
	if obs.Visibility != nil {
		visibilityMi = obs.Visibility.StatuteMiles
	} else {
		rec.Diagnostics["visibility_assumed_unlimited"] = "no visibility reported; treated as >5mi"
	}

	// No ceiling layer means unlimited for rule purposes.
	if !hasCeiling {
		ceilingFt = mvfrCeilingFt + 1
	}

	rec.Category = categoryFor(ceilingFt, visibilityMi)
	rec.Source = SourceCalculated
	rec.Diagnostics["calculation"] = fmt.Sprintf("ceiling=%dft visibility=%.2fmi", ceilingFt, visibilityMi)
	return rec
}

// categoryFor applies the rule table top-down; first match wins.
//
//	LIFR: ceiling < 500          OR visibility < 1
//	IFR:  ceiling in [500,1000)  OR visibility in [1,3)
//	MVFR: ceiling in [1000,3000] OR visibility in [3,5]
//	VFR:  ceiling > 3000         AND visibility > 5
func categoryFor(ceilingFt int, visibilityMi float64) Category {
	switch {
	case ceilingFt < lifrCeilingFt || visibilityMi < lifrVisibilityMi:
		return CategoryLIFR
	case ceilingFt < ifrCeilingFt || visibilityMi < ifrVisibilityMi:
		return CategoryIFR
	case ceilingFt <= mvfrCeilingFt || visibilityMi <= mvfrVisibilityMi:
		return CategoryMVFR
	default:
		return CategoryVFR
	}
}
