package ais

import (
	"math"

	"go.uber.org/zap"
)

// Cleaner validates raw position reports before feature extraction.
// Bad records are dropped and counted, never fatal: a malformed report must
// not abort the pipeline.
type Cleaner struct {
	// MaxSOG is the highest plausible speed over ground in knots.
	// Fishing vessels do not exceed 50 knots.
	MaxSOG float64

	log *zap.Logger
}

// NewCleaner returns a Cleaner with the default speed bound.
func NewCleaner(log *zap.Logger) *Cleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{MaxSOG: 50, log: log}
}

// Clean drops invalid reports, removes duplicates and returns the remainder
// sorted by (MMSI, timestamp).
func (c *Cleaner) Clean(reports []PositionReport) []PositionReport {
	out := make([]PositionReport, 0, len(reports))

	var badCoord, badKinematics, badTime int
	for _, r := range reports {
		switch {
		case !validCoordinates(r.Lat, r.Lon):
			badCoord++
		case r.Timestamp.IsZero():
			badTime++
		case !validKinematics(r.SOG, r.COG, c.MaxSOG):
			badKinematics++
		default:
			out = append(out, r)
		}
	}

	SortByVesselTime(out)
	out = dedupe(out)

	if dropped := len(reports) - len(out); dropped > 0 {
		c.log.Info("cleaned position reports",
			zap.Int("input", len(reports)),
			zap.Int("kept", len(out)),
			zap.Int("bad_coordinates", badCoord),
			zap.Int("bad_kinematics", badKinematics),
			zap.Int("bad_timestamps", badTime),
		)
	}

	return out
}

func validCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	// (0, 0) is the null island default of broken transponders.
	if lat == 0 && lon == 0 {
		return false
	}
	return true
}

func validKinematics(sog, cog, maxSOG float64) bool {
	if math.IsNaN(sog) || math.IsNaN(cog) {
		return false
	}
	if sog < 0 || sog > maxSOG {
		return false
	}
	return cog >= 0 && cog <= 360
}

// dedupe removes exact repeats of (MMSI, timestamp, lat, lon). Input must be
// sorted by vessel and time.
func dedupe(reports []PositionReport) []PositionReport {
	out := reports[:0]
	for i, r := range reports {
		if i > 0 {
			p := out[len(out)-1]
			if p.MMSI == r.MMSI && p.Timestamp.Equal(r.Timestamp) && p.Lat == r.Lat && p.Lon == r.Lon {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
