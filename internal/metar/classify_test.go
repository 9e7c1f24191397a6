package metar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestCeiling(t *testing.T) {
	tests := []struct {
		name   string
		clouds []CloudLayer
		wantFt int
		wantOK bool
	}{
		{name: "no layers", clouds: nil, wantOK: false},
		{
			name:   "few and scattered never set a ceiling",
			clouds: []CloudLayer{{Coverage: CoverageFewClouds, BaseFtAGL: intPtr(400)}, {Coverage: CoverageScattered, BaseFtAGL: intPtr(800)}},
			wantOK: false,
		},
		{
			name:   "broken sets the ceiling",
			clouds: []CloudLayer{{Coverage: CoverageBroken, BaseFtAGL: intPtr(2500)}},
			wantFt: 2500, wantOK: true,
		},
		{
			name: "lowest qualifying layer wins",
			clouds: []CloudLayer{
				{Coverage: CoverageBroken, BaseFtAGL: intPtr(4000)},
				{Coverage: CoverageOvercast, BaseFtAGL: intPtr(1200)},
				{Coverage: CoverageScattered, BaseFtAGL: intPtr(600)},
			},
			wantFt: 1200, wantOK: true,
		},
		{
			name:   "obscured counts",
			clouds: []CloudLayer{{Coverage: CoverageObscured, BaseFtAGL: intPtr(300)}},
			wantFt: 300, wantOK: true,
		},
		{
			name:   "qualifying layer without a base is skipped",
			clouds: []CloudLayer{{Coverage: CoverageOvercast}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft, ok := Ceiling(tt.clouds)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantFt, ft)
			}
		})
	}
}

func TestCategoryBoundaries(t *testing.T) {
	clear := func() []CloudLayer { return []CloudLayer{} }
	withCeiling := func(ft int) []CloudLayer {
		return []CloudLayer{{Coverage: CoverageOvercast, BaseFtAGL: intPtr(ft)}}
	}

	tests := []struct {
		name       string
		clouds     []CloudLayer
		visibility float64
		want       Category
	}{
		// Ceiling boundaries, visibility unlimited.
		{name: "ceiling 499 is LIFR", clouds: withCeiling(499), visibility: 10, want: CategoryLIFR},
		{name: "ceiling 500 is IFR", clouds: withCeiling(500), visibility: 10, want: CategoryIFR},
		{name: "ceiling 999 is IFR", clouds: withCeiling(999), visibility: 10, want: CategoryIFR},
		{name: "ceiling 1000 is MVFR", clouds: withCeiling(1000), visibility: 10, want: CategoryMVFR},
		{name: "ceiling 3000 is MVFR", clouds: withCeiling(3000), visibility: 10, want: CategoryMVFR},
		{name: "ceiling 3001 is VFR", clouds: withCeiling(3001), visibility: 10, want: CategoryVFR},

		// Visibility boundaries, no ceiling.
		{name: "visibility 0.5 is LIFR", clouds: clear(), visibility: 0.5, want: CategoryLIFR},
		{name: "visibility 1 is IFR", clouds: clear(), visibility: 1, want: CategoryIFR},
		{name: "visibility 2.99 is IFR", clouds: clear(), visibility: 2.99, want: CategoryIFR},
		{name: "visibility 3 is MVFR", clouds: clear(), visibility: 3, want: CategoryMVFR},
		{name: "visibility 5 is MVFR", clouds: clear(), visibility: 5, want: CategoryMVFR},
		{name: "visibility 5.01 is VFR", clouds: clear(), visibility: 5.01, want: CategoryVFR},

		// The worse of the two dimensions wins.
		{name: "good ceiling bad visibility", clouds: withCeiling(5000), visibility: 0.5, want: CategoryLIFR},
		{name: "bad ceiling good visibility", clouds: withCeiling(400), visibility: 10, want: CategoryLIFR},
		{name: "ifr ceiling mvfr visibility", clouds: withCeiling(800), visibility: 4, want: CategoryIFR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := Observation{
				Airport:    "KTST",
				Clouds:     tt.clouds,
				Visibility: &Visibility{StatuteMiles: tt.visibility},
				HasSkyData: true,
			}
			rec := Classify(obs, Policy{})
			assert.Equal(t, tt.want, rec.Category)
			assert.Equal(t, SourceCalculated, rec.Source)
		})
	}
}

// Lowering the ceiling or visibility never improves the category.
func TestCategoryMonotonicity(t *testing.T) {
	ceilings := []int{200, 499, 500, 999, 1000, 2000, 3000, 3001, 10000}
	visibilities := []float64{0.25, 0.99, 1, 2.5, 3, 4, 5, 6, 10}

	for i := 1; i < len(ceilings); i++ {
		for _, vis := range visibilities {
			lower := Classify(observationWith(ceilings[i-1], vis), Policy{})
			higher := Classify(observationWith(ceilings[i], vis), Policy{})
			assert.LessOrEqual(t, lower.Category.Rank(), higher.Category.Rank(),
				"ceiling %d vs %d at visibility %.2f", ceilings[i-1], ceilings[i], vis)
		}
	}
	for _, ceiling := range ceilings {
		for i := 1; i < len(visibilities); i++ {
			lower := Classify(observationWith(ceiling, visibilities[i-1]), Policy{})
			higher := Classify(observationWith(ceiling, visibilities[i]), Policy{})
			assert.LessOrEqual(t, lower.Category.Rank(), higher.Category.Rank(),
				"visibility %.2f vs %.2f at ceiling %d", visibilities[i-1], visibilities[i], ceiling)
		}
	}
}

func observationWith(ceilingFt int, visibilityMi float64) Observation {
	return Observation{
		Airport:    "KTST",
		Clouds:     []CloudLayer{{Coverage: CoverageOvercast, BaseFtAGL: intPtr(ceilingFt)}},
		Visibility: &Visibility{StatuteMiles: visibilityMi},
		HasSkyData: true,
	}
}

func TestClassifyPolicyMatrix(t *testing.T) {
	// An observation whose API category disagrees with the computed one.
	obs := Observation{
		Airport:     "KTST",
		Clouds:      []CloudLayer{{Coverage: CoverageOvercast, BaseFtAGL: intPtr(800)}},
		Visibility:  &Visibility{StatuteMiles: 10},
		APICategory: CategoryVFR,
		HasSkyData:  true,
	}

	t.Run("prefer API uses the supplied category", func(t *testing.T) {
		rec := Classify(obs, Policy{PreferAPI: true})
		assert.Equal(t, CategoryVFR, rec.Category)
		assert.Equal(t, SourceAPI, rec.Source)
	})

	t.Run("force calculation overrides prefer API", func(t *testing.T) {
		rec := Classify(obs, Policy{PreferAPI: true, ForceCalculation: true})
		assert.Equal(t, CategoryIFR, rec.Category)
		assert.Equal(t, SourceCalculated, rec.Source)
	})

	t.Run("prefer API falls through when no category supplied", func(t *testing.T) {
		noAPI := obs
		noAPI.APICategory = ""
		rec := Classify(noAPI, Policy{PreferAPI: true})
		assert.Equal(t, CategoryIFR, rec.Category)
		assert.Equal(t, SourceCalculated, rec.Source)
	})

	t.Run("default policy computes locally", func(t *testing.T) {
		rec := Classify(obs, Policy{})
		assert.Equal(t, CategoryIFR, rec.Category)
		assert.Equal(t, SourceCalculated, rec.Source)
	})
}

func TestClassifyMissingInputs(t *testing.T) {
	obs := Observation{Airport: "KTST", Clouds: []CloudLayer{}, HasSkyData: false}

	t.Run("strict policy yields INVALID", func(t *testing.T) {
		rec := Classify(obs, Policy{})
		assert.Equal(t, CategoryInvalid, rec.Category)
		assert.Equal(t, SourceFallback, rec.Source)
		assert.Contains(t, rec.Diagnostics, "missing_inputs")
	})

	t.Run("lenient policy assumes VFR", func(t *testing.T) {
		rec := Classify(obs, Policy{AssumeVFRWhenMissing: true})
		assert.Equal(t, CategoryVFR, rec.Category)
		assert.Equal(t, SourceCalculated, rec.Source)
		assert.Contains(t, rec.Diagnostics, "assumed_vfr")
	})
}

func TestClassifyAbsentVisibilityTreatedAsUnlimited(t *testing.T) {
	// Clear skies reported, no visibility field at all: the gap must not
	// degrade the rating.
	obs := Observation{Airport: "KTST", Clouds: []CloudLayer{}, HasSkyData: true}
	rec := Classify(obs, Policy{})
	require.Equal(t, CategoryVFR, rec.Category)
	assert.Equal(t, SourceCalculated, rec.Source)
	assert.Contains(t, rec.Diagnostics, "visibility_assumed_unlimited")
}

func TestClassifyScenarioBrokenLayer(t *testing.T) {
	// BKN 800ft with 2.5mi visibility: both dimensions independently say IFR.
	obs := Observation{
		Airport:    "KTST",
		Clouds:     []CloudLayer{{Coverage: CoverageBroken, BaseFtAGL: intPtr(800)}},
		Visibility: &Visibility{StatuteMiles: 2.5},
		HasSkyData: true,
	}
	rec := Classify(obs, Policy{})
	assert.Equal(t, CategoryIFR, rec.Category)
	assert.Contains(t, rec.Diagnostics, "calculation")
}
