package display

import (
	"github.com/yegors/sectional/internal/config"
	"github.com/yegors/sectional/internal/metar"
)

// Color is an RGB triple as handed to the LED map and dashboard.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Default palette: the sectional-chart convention for the four flight
// categories, amber for stations with no weather, dim gray for invalid data.
var defaults = map[metar.Category]Color{
	metar.CategoryVFR:     {0, 255, 0},
	metar.CategoryMVFR:    {0, 0, 255},
	metar.CategoryIFR:     {255, 0, 0},
	metar.CategoryLIFR:    {255, 0, 255},
	metar.CategoryNoWx:    {242, 138, 37},
	metar.CategoryInvalid: {64, 64, 64},
}

// Palette maps every flight category to a display color.
type Palette struct {
	colors map[metar.Category]Color
}

// NewPalette builds the palette from config overrides on top of the defaults.
// The config layer has already validated that overrides are [r, g, b] triples
// in range.
func NewPalette(cfg config.DisplayConfig) *Palette {
	colors := make(map[metar.Category]Color, len(defaults))
	for category, color := range defaults {
		colors[category] = color
	}

	overrides := map[metar.Category][]int{
		metar.CategoryVFR:     cfg.ColorVFR,
		metar.CategoryMVFR:    cfg.ColorMVFR,
		metar.CategoryIFR:     cfg.ColorIFR,
		metar.CategoryLIFR:    cfg.ColorLIFR,
		metar.CategoryNoWx:    cfg.ColorNoWx,
		metar.CategoryInvalid: cfg.ColorInvalid,
	}
	for category, rgb := range overrides {
		if len(rgb) == 3 {
			colors[category] = Color{rgb[0], rgb[1], rgb[2]}
		}
	}

	return &Palette{colors: colors}
}

// ColorFor returns the color for a category. Unknown categories render as
// INVALID so the map never shows an unstyled light.
func (p *Palette) ColorFor(category metar.Category) Color {
	if color, ok := p.colors[category]; ok {
		return color
	}
	return p.colors[metar.CategoryInvalid]
}

// All returns the full category-to-color mapping keyed by category name.
func (p *Palette) All() map[string]Color {
	out := make(map[string]Color, len(p.colors))
	for category, color := range p.colors {
		out[string(category)] = color
	}
	return out
}
