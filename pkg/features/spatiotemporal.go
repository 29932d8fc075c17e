package features

import (
	"math"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/geo"
)

// Spatio-temporal enrichment parameters. These are whole-track (and for
// proximity, cross-vessel) computations, so they never run in the streaming
// path; see Extractor.
const (
	clusterEpsDeg      = 0.05 // DBSCAN radius in degrees
	clusterMinSamples  = 3
	revisitIndexGap    = 10
	nearbyRadiusDeg    = 0.1 // ~11 km
	turningPointDeg    = 45
	entropyGridBins    = 10
	farDistanceDefault = 999 // sentinel for "no other vessel in sight"
)

// enrichSpatioTemporal adds the batch-only feature columns to the table.
// Each sub-extractor writes its own columns independently, so a degenerate
// track only loses its own columns to the neutral defaults.
func enrichSpatioTemporal(table *Table, order []int64, tracks map[int64][]ais.PositionReport) {
	// Per-vessel values are constant across the vessel's rows, mirroring
	// the whole-track nature of these features.
	rowIdx := make(map[int64]int, len(order))
	for _, run := range table.VesselRuns() {
		rowIdx[run.MMSI] = run.Start
	}

	for _, mmsi := range order {
		track := tracks[mmsi]
		start := rowIdx[mmsi]

		spatial := spatialClustering(track)
		temporal := temporalPatterns(track)
		trajectory := trajectoryComplexity(track)

		for i := range track {
			row := &table.Rows[start+i]
			for k, v := range spatial {
				row.Values[k] = v
			}
			for k, v := range temporal {
				row.Values[k] = v
			}
			for k, v := range trajectory {
				row.Values[k] = v
			}
		}
	}

	proximity(table)
}

// spatialClustering estimates distinct dwell areas via density clustering,
// a proxy for repeated fishing-ground visitation.
func spatialClustering(track []ais.PositionReport) map[string]float64 {
	out := map[string]float64{
		"spatial_clusters":   0,
		"cluster_time_ratio": 0,
		"cluster_revisits":   0,
	}
	if len(track) <= 5 {
		return out
	}

	labels := dbscan(track, clusterEpsDeg, clusterMinSamples)

	clusters := make(map[int][]int)
	inCluster := 0
	for i, label := range labels {
		if label < 0 {
			continue
		}
		clusters[label] = append(clusters[label], i)
		inCluster++
	}

	revisits := 0
	for _, indices := range clusters {
		for i := 1; i < len(indices); i++ {
			if indices[i]-indices[i-1] > revisitIndexGap {
				revisits++
			}
		}
	}

	out["spatial_clusters"] = float64(len(clusters))
	out["cluster_time_ratio"] = float64(inCluster) / float64(len(track))
	out["cluster_revisits"] = float64(revisits)
	return out
}

// dbscan labels each point with a cluster id, -1 for noise. Distances are
// euclidean in degree space to match the cluster radius definition.
func dbscan(track []ais.PositionReport, eps float64, minPts int) []int {
	n := len(track)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -2 // unvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if degDistance(track[i], track[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != -2 {
			continue
		}
		seeds := neighbors(i)
		if len(seeds) < minPts {
			labels[i] = -1
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), seeds...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == -1 {
				labels[j] = cluster
			}
			if labels[j] != -2 {
				continue
			}
			labels[j] = cluster

			jn := neighbors(j)
			if len(jn) >= minPts {
				queue = append(queue, jn...)
			}
		}
		cluster++
	}

	return labels
}

func degDistance(a, b ais.PositionReport) float64 {
	dlat := a.Lat - b.Lat
	dlon := a.Lon - b.Lon
	return math.Sqrt(dlat*dlat + dlon*dlon)
}

// temporalPatterns captures when the vessel is active: night work, hourly
// concentration, weekend share and transmission regularity.
func temporalPatterns(track []ais.PositionReport) map[string]float64 {
	n := float64(len(track))

	var night, weekend float64
	hourCounts := make(map[int]float64)
	for _, r := range track {
		hour := r.Timestamp.Hour()
		hourCounts[hour]++
		if hour >= 22 || hour <= 6 {
			night++
		}
		if wd := r.Timestamp.Weekday(); wd == 0 || wd == 6 {
			weekend++
		}
	}

	var entropy float64
	for _, count := range hourCounts {
		p := count / n
		entropy -= p * math.Log2(p+1e-10)
	}

	var gaps []float64
	for i := 1; i < len(track); i++ {
		gaps = append(gaps, track[i].Timestamp.Sub(track[i-1].Timestamp).Minutes())
	}
	regularity := stdFinite(gaps)
	if !isFinite(regularity) {
		regularity = 0
	}

	return map[string]float64{
		"night_activity_ratio":   night / n,
		"hour_entropy":           entropy,
		"weekend_activity_ratio": weekend / n,
		"time_regularity":        regularity,
	}
}

// trajectoryComplexity measures wandering-versus-transit along the full
// track: path length, straightness, turning points and 2-D spatial entropy
// over a grid of the track's bounding box.
func trajectoryComplexity(track []ais.PositionReport) map[string]float64 {
	out := map[string]float64{
		"trajectory_length":  0,
		"path_efficiency":    1,
		"turning_points":     0,
		"trajectory_entropy": 0,
	}
	if len(track) < 3 {
		return out
	}

	var total float64
	for i := 1; i < len(track); i++ {
		total += degDistance(track[i-1], track[i])
	}
	straight := degDistance(track[0], track[len(track)-1])

	out["trajectory_length"] = total
	out["path_efficiency"] = straight / (total + 1e-10)

	var turns float64
	for i := 1; i < len(track); i++ {
		if geo.AngularDiffDeg(track[i].COG, track[i-1].COG) > turningPointDeg {
			turns++
		}
	}
	out["turning_points"] = turns

	out["trajectory_entropy"] = gridEntropy(track)
	return out
}

func gridEntropy(track []ais.PositionReport) float64 {
	minLat, maxLat := track[0].Lat, track[0].Lat
	minLon, maxLon := track[0].Lon, track[0].Lon
	for _, r := range track[1:] {
		minLat = math.Min(minLat, r.Lat)
		maxLat = math.Max(maxLat, r.Lat)
		minLon = math.Min(minLon, r.Lon)
		maxLon = math.Max(maxLon, r.Lon)
	}
	if maxLat == minLat || maxLon == minLon {
		return 0
	}

	counts := make(map[int]float64)
	for _, r := range track {
		latBin := int((r.Lat - minLat) / (maxLat - minLat) * entropyGridBins)
		lonBin := int((r.Lon - minLon) / (maxLon - minLon) * entropyGridBins)
		if latBin == entropyGridBins {
			latBin--
		}
		if lonBin == entropyGridBins {
			lonBin--
		}
		counts[latBin*entropyGridBins+lonBin]++
	}

	n := float64(len(track))
	var entropy float64
	for _, count := range counts {
		p := count / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// proximity fills cross-vessel features: for each timestamp with multiple
// reporting vessels, the count of vessels within nearbyRadiusDeg plus the
// minimum and mean pairwise distances. O(n^2) per timestamp group, which is
// why this stays out of the per-record live path.
func proximity(table *Table) {
	byTime := make(map[int64][]int)
	for i, row := range table.Rows {
		key := row.Report.Timestamp.Unix()
		byTime[key] = append(byTime[key], i)
	}

	for _, indices := range byTime {
		if len(indices) < 2 {
			for _, i := range indices {
				table.Rows[i].Values["nearby_vessels"] = 0
				table.Rows[i].Values["min_vessel_distance"] = farDistanceDefault
				table.Rows[i].Values["avg_vessel_distance"] = farDistanceDefault
			}
			continue
		}

		for _, i := range indices {
			var nearby float64
			minDist := math.Inf(1)
			var sum float64
			var n int
			for _, j := range indices {
				if i == j {
					continue
				}
				d := degDistance(table.Rows[i].Report, table.Rows[j].Report)
				if d < nearbyRadiusDeg {
					nearby++
				}
				minDist = math.Min(minDist, d)
				sum += d
				n++
			}

			table.Rows[i].Values["nearby_vessels"] = nearby
			table.Rows[i].Values["min_vessel_distance"] = minDist
			table.Rows[i].Values["avg_vessel_distance"] = sum / float64(n)
		}
	}
}
