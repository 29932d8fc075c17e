package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seawatch/aisguard/pkg/ais"
)

func TestTimeGapAndFlags(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	cfg := DefaultTransmissionConfig()

	track := []ais.PositionReport{
		{MMSI: 1, Timestamp: base, Lat: 10, Lon: 75, SOG: 4, COG: 90},
		{MMSI: 1, Timestamp: base.Add(10 * time.Minute), Lat: 10.01, Lon: 75, SOG: 4, COG: 90},
		{MMSI: 1, Timestamp: base.Add(100 * time.Minute), Lat: 10.02, Lon: 75, SOG: 4, COG: 90},
		{MMSI: 1, Timestamp: base.Add(300 * time.Minute), Lat: 10.03, Lon: 75, SOG: 4, COG: 90},
	}

	v := TransmissionAt(track, 0, cfg)
	assert.True(t, math.IsNaN(v["time_gap"]), "first report has no gap")
	assert.Equal(t, 0.0, v["ais_gap"])
	assert.Equal(t, 0.0, v["disappeared"])
	assert.Equal(t, 0.0, v["position_jump"])

	v = TransmissionAt(track, 1, cfg)
	assert.InDelta(t, 10.0, v["time_gap"], 1e-9)
	assert.Equal(t, 0.0, v["ais_gap"])

	v = TransmissionAt(track, 2, cfg)
	assert.InDelta(t, 90.0, v["time_gap"], 1e-9)
	assert.Equal(t, 1.0, v["ais_gap"], "gap above 60 minutes")
	assert.Equal(t, 0.0, v["disappeared"], "gap below 120 minutes")

	v = TransmissionAt(track, 3, cfg)
	assert.Equal(t, 1.0, v["ais_gap"])
	assert.Equal(t, 1.0, v["disappeared"], "gap above 2x threshold")
	assert.InDelta(t, 2.0, v["gap_count"], 1e-9)
}

func TestPositionJump(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	cfg := DefaultTransmissionConfig()

	// 500 km displacement in a 10-minute gap: requires ~3000 km/h.
	jump := []ais.PositionReport{
		{MMSI: 1, Timestamp: base, Lat: 10, Lon: 75, SOG: 4, COG: 90},
		{MMSI: 1, Timestamp: base.Add(10 * time.Minute), Lat: 14.5, Lon: 75, SOG: 4, COG: 90},
	}
	v := TransmissionAt(jump, 1, cfg)
	assert.Equal(t, 1.0, v["position_jump"])

	// ~1 km displacement in the same gap is plausible.
	plausible := []ais.PositionReport{
		{MMSI: 1, Timestamp: base, Lat: 10, Lon: 75, SOG: 4, COG: 90},
		{MMSI: 1, Timestamp: base.Add(10 * time.Minute), Lat: 10.009, Lon: 75, SOG: 4, COG: 90},
	}
	v = TransmissionAt(plausible, 1, cfg)
	assert.Equal(t, 0.0, v["position_jump"])
}

func TestTransmissionFrequency(t *testing.T) {
	cfg := DefaultTransmissionConfig()
	track := transitTrack(1, 10, 10*time.Minute, 12)

	v := TransmissionAt(track, 9, cfg)
	assert.InDelta(t, 6.0, v["transmission_freq"], 1e-9, "10-minute cadence is 6 msgs/hour")

	// Duplicate timestamps give a zero mean gap: frequency is undefined.
	same := []ais.PositionReport{
		{MMSI: 1, Timestamp: track[0].Timestamp, Lat: 10, Lon: 75, SOG: 4, COG: 90},
		{MMSI: 1, Timestamp: track[0].Timestamp, Lat: 10, Lon: 75.001, SOG: 4, COG: 90},
	}
	v = TransmissionAt(same, 1, cfg)
	assert.True(t, math.IsNaN(v["transmission_freq"]))
}

func TestGapStatsRegularTrack(t *testing.T) {
	cfg := DefaultTransmissionConfig()
	track := transitTrack(1, 10, 10*time.Minute, 12)

	v := TransmissionAt(track, 9, cfg)
	assert.InDelta(t, 10.0, v["avg_gap_duration"], 1e-9)
	assert.InDelta(t, 0.0, v["gap_std"], 1e-9)
	assert.Equal(t, 0.0, v["gap_count"])
}
