package features

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// BehaviorConfig parameterises speed, course and loitering features.
type BehaviorConfig struct {
	// Window is the trailing window size W for rolling statistics.
	Window int
	// LoiteringRadiusKm is the dwell radius for loitering detection.
	LoiteringRadiusKm float64
	// LoiteringTime is the minimum window time span for a loitering flag.
	LoiteringTime time.Duration
	// FishingSpeedMin and FishingSpeedMax bound the trawling-speed band in
	// knots.
	FishingSpeedMin float64
	FishingSpeedMax float64
}

// DefaultBehaviorConfig returns the production defaults.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		Window:            10,
		LoiteringRadiusKm: 5,
		LoiteringTime:     2 * time.Hour,
		FishingSpeedMin:   1,
		FishingSpeedMax:   5,
	}
}

// BehaviorAt computes the behavioral features for track[i]. The track must
// belong to a single vessel and be sorted by timestamp ascending; only
// records at indices <= i are read, so the function is safe for streaming
// use.
func BehaviorAt(track []ais.PositionReport, i int, cfg BehaviorConfig) map[string]float64 {
	values := make(map[string]float64, len(BehaviorColumns))

	start := i - cfg.Window + 1
	if start < 0 {
		start = 0
	}

	speeds := make([]float64, 0, i-start+1)
	for j := start; j <= i; j++ {
		speeds = append(speeds, track[j].SOG)
	}

	values["speed_mean"] = stat.Mean(speeds, nil)
	values["speed_std"] = stdFinite(speeds)
	values["speed_variance"] = values["speed_std"] * values["speed_std"]
	minSOG, maxSOG := speeds[0], speeds[0]
	for _, s := range speeds[1:] {
		minSOG = math.Min(minSOG, s)
		maxSOG = math.Max(maxSOG, s)
	}
	values["speed_max"] = maxSOG
	values["speed_min"] = minSOG

	// Course change between consecutive reports; undefined for the first
	// record of a track.
	courseChanges := make([]float64, 0, i-start+1)
	for j := start; j <= i; j++ {
		if j == 0 {
			courseChanges = append(courseChanges, math.NaN())
			continue
		}
		courseChanges = append(courseChanges, geo.AngularDiffDeg(track[j].COG, track[j-1].COG))
	}
	values["course_change"] = courseChanges[len(courseChanges)-1]
	values["turn_rate"] = meanFinite(courseChanges)

	if track[i].HasHeading {
		values["heading_deviation"] = geo.AngularDiffDeg(track[i].Heading, track[i].COG)
	} else {
		// Missing heading skips the feature; imputation fills it later.
		values["heading_deviation"] = math.NaN()
	}

	values["loitering"] = loiteringFlag(track, i, cfg)

	fishing := 0.0
	if track[i].SOG >= cfg.FishingSpeedMin && track[i].SOG <= cfg.FishingSpeedMax {
		fishing = 1
	}
	values["fishing_speed"] = fishing

	var fishingSum float64
	for j := start; j <= i; j++ {
		if track[j].SOG >= cfg.FishingSpeedMin && track[j].SOG <= cfg.FishingSpeedMax {
			fishingSum++
		}
	}
	values["fishing_speed_pct"] = fishingSum / float64(i-start+1)

	return values
}

// loiteringFlag is 1 when at least 80% of the trailing window lies within
// the dwell radius of the current position and the window spans at least the
// configured time. Records with fewer than Window prior points are flagged 0
// (cold-start policy).
func loiteringFlag(track []ais.PositionReport, i int, cfg BehaviorConfig) float64 {
	if i < cfg.Window {
		return 0
	}

	window := track[i-cfg.Window : i+1]
	last := window[len(window)-1]

	within := 0
	for _, p := range window {
		if geo.HaversineKm(last.Lat, last.Lon, p.Lat, p.Lon) <= cfg.LoiteringRadiusKm {
			within++
		}
	}

	span := window[len(window)-1].Timestamp.Sub(window[0].Timestamp)
	if float64(within) >= float64(len(window))*0.8 && span >= cfg.LoiteringTime {
		return 1
	}
	return 0
}
