package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch/aisguard/pkg/ais"
)

func TestExtractAllValuesFinite(t *testing.T) {
	reports := append(circleTrack(1, 20, 15*time.Minute, 4), transitTrack(2, 20, 10*time.Minute, 12)...)

	e := NewExtractor(DefaultConfig(), nil)
	table := e.Extract(reports)
	require.Len(t, table.Rows, 40)

	for i, row := range table.Rows {
		for _, col := range table.Columns {
			v, ok := row.Values[col]
			require.True(t, ok, "row %d missing %s", i, col)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "row %d column %s not finite", i, col)
		}
	}
}

func TestExtractOrdersByVesselAndTime(t *testing.T) {
	// Interleave two vessels out of order.
	a := circleTrack(20, 5, 10*time.Minute, 4)
	b := transitTrack(10, 5, 10*time.Minute, 12)
	var reports []ais.PositionReport
	for i := range a {
		reports = append(reports, a[len(a)-1-i], b[i])
	}

	table := NewExtractor(DefaultConfig(), nil).Extract(reports)
	require.Len(t, table.Rows, 10)

	for i := 1; i < len(table.Rows); i++ {
		prev, cur := table.Rows[i-1].Report, table.Rows[i].Report
		if prev.MMSI == cur.MMSI {
			assert.False(t, cur.Timestamp.Before(prev.Timestamp))
		} else {
			assert.Less(t, prev.MMSI, cur.MMSI)
		}
	}
}

func TestExtractIdempotent(t *testing.T) {
	reports := append(circleTrack(1, 20, 15*time.Minute, 4), transitTrack(2, 20, 10*time.Minute, 12)...)
	cfg := DefaultConfig()
	cfg.SpatioTemporal = true

	t1 := NewExtractor(cfg, nil).Extract(reports)
	t2 := NewExtractor(cfg, nil).Extract(reports)

	require.Equal(t, len(t1.Rows), len(t2.Rows))
	for i := range t1.Rows {
		assert.Equal(t, t1.Rows[i].Values, t2.Rows[i].Values, "row %d", i)
	}
}

func TestImputationUsesVesselMean(t *testing.T) {
	// speed_std is undefined at the first record of a track; imputation
	// must fill it with the vessel mean of the defined values.
	reports := transitTrack(1, 5, 10*time.Minute, 12)
	table := NewExtractor(DefaultConfig(), nil).Extract(reports)

	first := table.Rows[0].Values["speed_std"]
	assert.False(t, math.IsNaN(first))

	var sum float64
	var n int
	for i := 1; i < 5; i++ {
		v := BehaviorAt(reports, i, DefaultBehaviorConfig())
		if !math.IsNaN(v["speed_std"]) {
			sum += v["speed_std"]
			n++
		}
	}
	require.Positive(t, n)
	assert.InDelta(t, sum/float64(n), first, 1e-9)
}

func TestMatrixNeutralDefaultForMissingColumn(t *testing.T) {
	table := &Table{
		Rows: []Row{{Values: map[string]float64{"speed_mean": 3}}},
	}

	m := table.Matrix([]string{"speed_mean", "not_computed"})
	require.Len(t, m, 1)
	assert.Equal(t, []float64{3, 0}, m[0])
}

func TestVesselRuns(t *testing.T) {
	reports := append(circleTrack(1, 3, 10*time.Minute, 4), transitTrack(2, 2, 10*time.Minute, 12)...)
	table := NewExtractor(DefaultConfig(), nil).Extract(reports)

	runs := table.VesselRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, VesselRun{MMSI: 1, Start: 0, End: 3}, runs[0])
	assert.Equal(t, VesselRun{MMSI: 2, Start: 3, End: 5}, runs[1])
}

func TestSpatioTemporalColumnsPresentOnlyWhenEnabled(t *testing.T) {
	reports := circleTrack(1, 20, 15*time.Minute, 4)

	plain := NewExtractor(DefaultConfig(), nil).Extract(reports)
	assert.NotContains(t, plain.Columns, "spatial_clusters")

	cfg := DefaultConfig()
	cfg.SpatioTemporal = true
	enriched := NewExtractor(cfg, nil).Extract(reports)
	assert.Contains(t, enriched.Columns, "spatial_clusters")
	assert.Contains(t, enriched.Rows[0].Values, "nearby_vessels")
}
