package metar

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPayload indicates a report body that could not be parsed as XML
// at all. Missing fields are never this error; absence is a valid value.
var ErrMalformedPayload = errors.New("malformed report payload")

// SchemaVariant tags which response shape a report structurally matched.
type SchemaVariant string

const (
	SchemaNested  SchemaVariant = "nested"  // <clouds><cloud .../></clouds> + <visibility><statute_mi>
	SchemaFlat    SchemaVariant = "flat"    // repeated <sky_condition .../> + <visibility_statute_mi>
	SchemaUnknown SchemaVariant = "unknown" // neither shape present
)

// RawReport is the unparsed upstream payload for a single airport. Created by
// the batch client per fetch, consumed (and discarded) by Adapt.
type RawReport struct {
	Airport string
	Payload []byte // the <METAR>...</METAR> element
}

// metarXML captures both known response shapes in one struct so variant
// detection happens once, after decoding, rather than by probing fields all
// over the classifier.
type metarXML struct {
	StationID       string `xml:"station_id"`
	ObservationTime string `xml:"observation_time"`
	FlightCategory  string `xml:"flight_category"`

	// Nested (legacy) shape.
	Clouds *struct {
		Cloud []cloudAttrXML `xml:"cloud"`
	} `xml:"clouds"`
	Visibility *struct {
		StatuteMi string `xml:"statute_mi"`
	} `xml:"visibility"`

	// Flat (2025 API) shape.
	SkyConditions       []cloudAttrXML `xml:"sky_condition"`
	VisibilityStatuteMi string         `xml:"visibility_statute_mi"`
}

type cloudAttrXML struct {
	SkyCover  string `xml:"sky_cover,attr"`
	BaseFtAGL string `xml:"cloud_base_ft_agl,attr"`
}

// detectVariant resolves the schema tag for a decoded report. Presence of
// either shape is sufficient; when both appear the nested form wins (explicit
// grouping is assumed more authoritative) and the ambiguity is surfaced as a
// diagnostic by Adapt, not an error.
func detectVariant(doc *metarXML) SchemaVariant {
	hasNested := doc.Clouds != nil || doc.Visibility != nil
	hasFlat := len(doc.SkyConditions) > 0 || doc.VisibilityStatuteMi != ""
	switch {
	case hasNested:
		return SchemaNested
	case hasFlat:
		return SchemaFlat
	default:
		return SchemaUnknown
	}
}

// Adapt converts a raw report into the canonical observation form. It fails
// only when the payload is not decodable XML (ErrMalformedPayload); every
// missing field is represented as absence in the result.
func Adapt(raw RawReport) (Observation, error) {
	var doc metarXML
	if err := xml.Unmarshal(raw.Payload, &doc); err != nil {
		return Observation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	obs := Observation{
		Airport:     raw.Airport,
		Clouds:      []CloudLayer{},
		Diagnostics: map[string]string{},
	}

	variant := detectVariant(&doc)
	obs.Diagnostics["schema"] = string(variant)

	hasNested := doc.Clouds != nil || doc.Visibility != nil
	hasFlat := len(doc.SkyConditions) > 0 || doc.VisibilityStatuteMi != ""
	if hasNested && hasFlat {
		obs.Diagnostics["schema_ambiguous"] = "report carries both nested and flat fields; using nested"
	}

	switch variant {
	case SchemaNested:
		obs.HasSkyData = true
		if doc.Clouds != nil {
			for _, c := range doc.Clouds.Cloud {
				obs.Clouds = append(obs.Clouds, adaptCloudLayer(c))
			}
		}
		if doc.Visibility != nil {
			obs.Visibility = adaptVisibility(doc.Visibility.StatuteMi, obs.Diagnostics)
		}
	case SchemaFlat:
		obs.HasSkyData = true
		for _, c := range doc.SkyConditions {
			obs.Clouds = append(obs.Clouds, adaptCloudLayer(c))
		}
		if doc.VisibilityStatuteMi != "" {
			obs.Visibility = adaptVisibility(doc.VisibilityStatuteMi, obs.Diagnostics)
		}
	case SchemaUnknown:
		// No cloud or visibility structure in either shape. The classifier
		// decides what that means; the adapter just records the fact.
	}

	if cat, ok := ParseCategory(strings.TrimSpace(doc.FlightCategory)); ok {
		obs.APICategory = cat
	} else if doc.FlightCategory != "" {
		obs.Diagnostics["api_category_ignored"] = doc.FlightCategory
	}

	if ts := strings.TrimSpace(doc.ObservationTime); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			obs.ObservedAt = &t
		} else {
			obs.Diagnostics["observation_time_unparsed"] = ts
		}
	}

	return obs, nil
}

// adaptCloudLayer converts one cloud element, keeping unknown coverage codes
// verbatim and dropping unparseable bases rather than rejecting the layer.
func adaptCloudLayer(c cloudAttrXML) CloudLayer {
	layer := CloudLayer{Coverage: strings.TrimSpace(c.SkyCover)}
	if layer.Coverage == "" {
		layer.Coverage = CoverageSkyClear
	}
	if s := strings.TrimSpace(c.BaseFtAGL); s != "" {
		if base, err := strconv.Atoi(s); err == nil && base >= 0 {
			layer.BaseFtAGL = &base
		}
	}
	return layer
}

// adaptVisibility runs the raw text through the normalizer. Normalization
// failures leave visibility absent and are noted for diagnostics; they never
// fail the whole report.
func adaptVisibility(raw string, diags map[string]string) *Visibility {
	vis, err := NormalizeVisibility(raw)
	if err != nil {
		diags["visibility_unparsed"] = fmt.Sprintf("%q: %v", raw, err)
		return nil
	}
	return &vis
}
