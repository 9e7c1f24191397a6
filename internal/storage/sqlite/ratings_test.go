package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/sectional/internal/metar"
	"github.com/yegors/sectional/pkg/logger"
)

func newTestStorage(t *testing.T) *RatingStorage {
	t.Helper()
	storage, err := NewRatingStorage(filepath.Join(t.TempDir(), "ratings.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func testCycle(startedAt time.Time, records ...metar.RatingRecord) *metar.Cycle {
	cycle := &metar.Cycle{
		Records:   make(map[string]metar.RatingRecord, len(records)),
		StartedAt: startedAt,
	}
	for _, r := range records {
		cycle.Records[r.Airport] = r
	}
	return cycle
}

func TestStoreAndRestore(t *testing.T) {
	storage := newTestStorage(t)

	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cycle := testCycle(startedAt,
		metar.RatingRecord{Airport: "KBOS", Category: metar.CategoryVFR, Source: metar.SourceCalculated},
		metar.RatingRecord{
			Airport:     "KPVD",
			Category:    metar.CategoryNoWx,
			Source:      metar.SourceFallback,
			Diagnostics: map[string]string{"fetch_error": "no report returned for airport"},
		},
	)
	require.NoError(t, storage.StoreCycle(cycle))

	records, newest, err := storage.GetAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, startedAt, newest)

	assert.Equal(t, metar.CategoryVFR, records["KBOS"].Category)
	assert.Equal(t, metar.SourceCalculated, records["KBOS"].Source)
	assert.Nil(t, records["KBOS"].Diagnostics)

	assert.Equal(t, metar.CategoryNoWx, records["KPVD"].Category)
	assert.Equal(t, "no report returned for airport", records["KPVD"].Diagnostics["fetch_error"])
}

func TestStoreCycleUpserts(t *testing.T) {
	storage := newTestStorage(t)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, storage.StoreCycle(testCycle(first,
		metar.RatingRecord{Airport: "KBOS", Category: metar.CategoryIFR, Source: metar.SourceAPI},
	)))

	second := first.Add(5 * time.Minute)
	require.NoError(t, storage.StoreCycle(testCycle(second,
		metar.RatingRecord{Airport: "KBOS", Category: metar.CategoryVFR, Source: metar.SourceCalculated},
	)))

	records, newest, err := storage.GetAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "only the latest record per airport is kept")
	assert.Equal(t, metar.CategoryVFR, records["KBOS"].Category)
	assert.Equal(t, second, newest)
}

func TestGetAllEmpty(t *testing.T) {
	storage := newTestStorage(t)

	records, newest, err := storage.GetAll()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, newest.IsZero())
}
