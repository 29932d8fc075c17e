// Package ais defines AIS position reports and their ingestion utilities.
package ais

import (
	"sort"
	"time"
)

// PositionReport is a single AIS position message after decoding.
// Reports are immutable once ingested; extractors reference them without
// mutation.
type PositionReport struct {
	MMSI      int64     `json:"mmsi"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SOG       float64   `json:"sog"` // speed over ground, knots
	COG       float64   `json:"cog"` // course over ground, degrees [0, 360)

	// Heading is the true heading in degrees. Many transponders do not
	// report it; HasHeading distinguishes absent from zero.
	Heading    float64 `json:"heading,omitempty"`
	HasHeading bool    `json:"has_heading,omitempty"`
}

// SortByVesselTime orders reports by (MMSI, timestamp) ascending. Every
// trailing-window feature assumes this ordering; it is also what makes
// repeated extraction runs deterministic.
func SortByVesselTime(reports []PositionReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].MMSI != reports[j].MMSI {
			return reports[i].MMSI < reports[j].MMSI
		}
		return reports[i].Timestamp.Before(reports[j].Timestamp)
	})
}

// GroupByVessel splits sorted reports into per-vessel tracks. Vessel order
// follows MMSI ascending so downstream output is deterministic.
func GroupByVessel(reports []PositionReport) ([]int64, map[int64][]PositionReport) {
	tracks := make(map[int64][]PositionReport)
	var order []int64

	for _, r := range reports {
		if _, ok := tracks[r.MMSI]; !ok {
			order = append(order, r.MMSI)
		}
		tracks[r.MMSI] = append(tracks[r.MMSI], r)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order, tracks
}
