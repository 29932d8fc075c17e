package features

import (
	"math"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// TransmissionConfig parameterises gap, disappearance and spoofing features.
type TransmissionConfig struct {
	// MaxGapMinutes is the transmission gap above which an AIS gap is
	// flagged; twice this marks a disappearance.
	MaxGapMinutes float64
	// Window is the trailing window size for gap statistics.
	Window int
	// MaxPlausibleSpeedKn bounds how far a vessel can genuinely travel
	// between two reports. Displacements beyond 1.5x this budget are
	// flagged as position jumps.
	MaxPlausibleSpeedKn float64
}

// DefaultTransmissionConfig returns the production defaults.
func DefaultTransmissionConfig() TransmissionConfig {
	return TransmissionConfig{
		MaxGapMinutes:       60,
		Window:              20,
		MaxPlausibleSpeedKn: 50,
	}
}

// TransmissionAt computes the transmission features for track[i]. The track
// must belong to a single vessel sorted by timestamp ascending; only records
// at indices <= i are read.
func TransmissionAt(track []ais.PositionReport, i int, cfg TransmissionConfig) map[string]float64 {
	values := make(map[string]float64, len(TransmissionColumns))

	start := i - cfg.Window + 1
	if start < 0 {
		start = 0
	}

	// Gap series for the trailing window. The first report of a track has
	// no gap: it stays NaN and is excluded from the rolling statistics.
	gaps := make([]float64, 0, i-start+1)
	for j := start; j <= i; j++ {
		gaps = append(gaps, gapMinutes(track, j))
	}
	gap := gaps[len(gaps)-1]
	values["time_gap"] = gap

	values["ais_gap"] = boolFlag(gap > cfg.MaxGapMinutes)
	values["disappeared"] = boolFlag(gap > 2*cfg.MaxGapMinutes)

	var gapCount float64
	for _, g := range gaps {
		if g > cfg.MaxGapMinutes {
			gapCount++
		}
	}
	values["gap_count"] = gapCount
	values["avg_gap_duration"] = meanFinite(gaps)
	values["gap_std"] = stdFinite(gaps)

	values["position_jump"] = positionJumpFlag(track, i, gap, cfg)

	// Messages per hour; undefined when the mean gap is zero.
	meanGap := meanFinite(gaps)
	if meanGap > 0 {
		values["transmission_freq"] = 60 / meanGap
	} else {
		values["transmission_freq"] = math.NaN()
	}

	return values
}

// gapMinutes is the transmission gap before track[j] in minutes, NaN for the
// first record.
func gapMinutes(track []ais.PositionReport, j int) float64 {
	if j == 0 {
		return math.NaN()
	}
	return track[j].Timestamp.Sub(track[j-1].Timestamp).Minutes()
}

// positionJumpFlag flags displacements requiring implausible sustained speed,
// the signature of spoofing or MMSI reassignment rather than genuine motion.
func positionJumpFlag(track []ais.PositionReport, i int, gap float64, cfg TransmissionConfig) float64 {
	if i == 0 || !isFinite(gap) {
		return 0
	}

	prev, cur := track[i-1], track[i]
	distanceKm := geo.HaversineKm(prev.Lat, prev.Lon, cur.Lat, cur.Lon)

	maxSpeedKmh := cfg.MaxPlausibleSpeedKn * geo.KnotsToKmh
	expectedMaxKm := maxSpeedKmh * gap / 60

	return boolFlag(distanceKm > expectedMaxKm*1.5)
}

func boolFlag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
