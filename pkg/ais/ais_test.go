package ais

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(mmsi int64, ts time.Time, lat, lon, sog, cog float64) PositionReport {
	return PositionReport{MMSI: mmsi, Timestamp: ts, Lat: lat, Lon: lon, SOG: sog, COG: cog}
}

func TestCleanerDropsInvalidRecords(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	reports := []PositionReport{
		report(100, base, 10, 75, 4, 120),                    // valid
		report(100, base.Add(time.Minute), 95, 75, 4, 120),   // lat out of range
		report(100, base.Add(2*time.Minute), 10, 200, 4, 12), // lon out of range
		report(100, base.Add(3*time.Minute), 0, 0, 4, 120),   // null island
		report(100, base.Add(4*time.Minute), 10, 75, 80, 90), // implausible SOG
		report(100, base.Add(5*time.Minute), 10, 75, 4, 400), // COG out of range
		report(100, time.Time{}, 10, 75, 4, 120),             // zero timestamp
		report(100, base.Add(6*time.Minute), math.NaN(), 75, 4, 120),
		report(100, base.Add(7*time.Minute), 10.1, 75.1, 5, 125), // valid
	}

	clean := NewCleaner(nil).Clean(reports)
	require.Len(t, clean, 2)
	assert.Equal(t, 10.0, clean[0].Lat)
	assert.Equal(t, 10.1, clean[1].Lat)
}

func TestCleanerSortsAndDeduplicates(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	reports := []PositionReport{
		report(200, base.Add(time.Hour), 11, 76, 3, 90),
		report(100, base.Add(time.Minute), 10, 75, 4, 120),
		report(100, base, 10, 75, 4, 120),
		report(100, base, 10, 75, 4, 120), // duplicate
		report(200, base, 11, 76, 3, 90),
	}

	clean := NewCleaner(nil).Clean(reports)
	require.Len(t, clean, 4)

	assert.Equal(t, int64(100), clean[0].MMSI)
	assert.Equal(t, base, clean[0].Timestamp)
	assert.Equal(t, base.Add(time.Minute), clean[1].Timestamp)
	assert.Equal(t, int64(200), clean[2].MMSI)
	assert.Equal(t, base, clean[2].Timestamp)
}

func TestGroupByVessel(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	reports := []PositionReport{
		report(300, base, 10, 75, 4, 120),
		report(100, base, 11, 76, 3, 90),
		report(100, base.Add(time.Minute), 11, 76, 3, 90),
	}

	order, tracks := GroupByVessel(reports)
	require.Equal(t, []int64{100, 300}, order)
	assert.Len(t, tracks[100], 2)
	assert.Len(t, tracks[300], 1)
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ais.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVReader(t *testing.T) {
	path := writeTempCSV(t, `MMSI,timestamp,lat,lon,SOG,COG,heading
219000001,2024-03-01T10:00:00Z,10.5,75.2,4.2,118,120
219000001,2024-03-01T10:10:00Z,10.51,75.21,4.0,121,
bogus,2024-03-01T10:20:00Z,10.52,75.22,4.1,119,
219000002,2024-03-01 10:00:00,11,76,12,45,44
`)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	reports, err := r.Read()
	require.NoError(t, err)
	require.Len(t, reports, 3) // bogus MMSI skipped

	assert.Equal(t, int64(219000001), reports[0].MMSI)
	assert.True(t, reports[0].HasHeading)
	assert.Equal(t, 120.0, reports[0].Heading)
	assert.False(t, reports[1].HasHeading)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), reports[2].Timestamp)
}

func TestCSVReaderMissingColumn(t *testing.T) {
	path := writeTempCSV(t, "MMSI,timestamp,lat,lon\n1,2024-03-01T10:00:00Z,1,2\n")

	_, err := NewReader(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sog")
}

func TestCSVStream(t *testing.T) {
	path := writeTempCSV(t, `MMSI,timestamp,lat,lon,SOG,COG
1,2024-03-01T10:00:00Z,10,75,4,120
2,2024-03-01T10:00:00Z,11,76,5,90
`)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Stream(context.Background())
	require.NoError(t, err)

	var got []PositionReport
	for report := range ch {
		got = append(got, report)
	}
	assert.Len(t, got, 2)
}

func TestCSVRoundTrip(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := []PositionReport{
		{MMSI: 1, Timestamp: base, Lat: 10.5, Lon: 75.25, SOG: 4.5, COG: 118, Heading: 120, HasHeading: true},
		{MMSI: 2, Timestamp: base.Add(time.Minute), Lat: 11, Lon: 76, SOG: 12, COG: 45},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, in))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	out, err := r.Read()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Lat, out[0].Lat)
	assert.True(t, out[0].HasHeading)
	assert.False(t, out[1].HasHeading)
	assert.True(t, in[1].Timestamp.Equal(out[1].Timestamp))
}
