package ais

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts accepted in AIS CSV files. Records that match none of
// these fall back to unix-seconds parsing.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Reader reads position reports from a CSV file with a header row.
// Required columns: MMSI, timestamp, lat, lon, SOG, COG. Optional: heading.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	columns map[string]int
}

// NewReader opens an AIS CSV file and resolves its header.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		file:   file,
		reader: csv.NewReader(file),
	}
	r.reader.FieldsPerRecord = -1

	header, err := r.reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	r.columns = make(map[string]int, len(header))
	for i, name := range header {
		r.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"mmsi", "timestamp", "lat", "lon", "sog", "cog"} {
		if _, ok := r.columns[required]; !ok {
			file.Close()
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	return r, nil
}

// Read returns all well-formed reports in the file. Malformed rows are
// skipped, not fatal.
func (r *Reader) Read() ([]PositionReport, error) {
	var reports []PositionReport

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		report, err := r.parseRow(record)
		if err != nil {
			continue // skip malformed rows
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// Stream returns a channel of reports for incremental processing.
func (r *Reader) Stream(ctx context.Context) (<-chan PositionReport, error) {
	out := make(chan PositionReport, 100)

	go func() {
		defer close(out)
		for {
			record, err := r.reader.Read()
			if err != nil {
				return
			}

			report, err := r.parseRow(record)
			if err != nil {
				continue
			}

			select {
			case out <- report:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func (r *Reader) parseRow(record []string) (PositionReport, error) {
	field := func(name string) (string, bool) {
		idx, ok := r.columns[name]
		if !ok || idx >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[idx]), true
	}

	var report PositionReport

	raw, _ := field("mmsi")
	mmsi, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return report, fmt.Errorf("parse mmsi: %w", err)
	}
	report.MMSI = mmsi

	raw, _ = field("timestamp")
	ts, err := parseTimestamp(raw)
	if err != nil {
		return report, err
	}
	report.Timestamp = ts

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"lat", &report.Lat},
		{"lon", &report.Lon},
		{"sog", &report.SOG},
		{"cog", &report.COG},
	} {
		raw, _ := field(f.name)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return report, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}

	if raw, ok := field("heading"); ok && raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			report.Heading = v
			report.HasHeading = true
		}
	}

	return report, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	// Unix seconds fallback used by some providers.
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, errors.New("unrecognised timestamp format")
}

// WriteCSV writes reports to a CSV file in the canonical column order.
func WriteCSV(filename string, reports []PositionReport) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"MMSI", "timestamp", "lat", "lon", "SOG", "COG", "heading"}); err != nil {
		return err
	}

	for _, r := range reports {
		heading := ""
		if r.HasHeading {
			heading = strconv.FormatFloat(r.Heading, 'f', -1, 64)
		}
		row := []string{
			strconv.FormatInt(r.MMSI, 10),
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Lat, 'f', -1, 64),
			strconv.FormatFloat(r.Lon, 'f', -1, 64),
			strconv.FormatFloat(r.SOG, 'f', -1, 64),
			strconv.FormatFloat(r.COG, 'f', -1, 64),
			heading,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
