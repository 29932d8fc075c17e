// Package export writes detection output tables to CSV and JSON files for
// downstream reporting tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/features"
	"github.com/seawatch/aisguard/pkg/realtime"
)

// ResultsCSV writes scored results with one row per position report.
func ResultsCSV(path string, results []ensemble.Result) error {
	return writeCSV(path, []string{
		"mmsi", "timestamp", "lat", "lon",
		"supervised_score", "unsupervised_score", "sequential_score",
		"ensemble_score", "is_anomaly", "risk_level",
	}, len(results), func(i int) []string {
		r := results[i]
		sequential := ""
		if r.Scores.HasSequential {
			sequential = formatFloat(r.Scores.Sequential)
		}
		return []string{
			strconv.FormatInt(r.MMSI, 10),
			r.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(r.Lat),
			formatFloat(r.Lon),
			formatFloat(r.Scores.Supervised),
			formatFloat(r.Scores.Unsupervised),
			sequential,
			formatFloat(r.EnsembleScore),
			strconv.FormatBool(r.IsAnomaly),
			r.Risk.String(),
		}
	})
}

// AlertsCSV writes the alert log in creation order.
func AlertsCSV(path string, alerts []realtime.Alert) error {
	return writeCSV(path, []string{
		"alert_id", "alert_time", "vessel_mmsi", "lat", "lon",
		"risk_level", "anomaly_score", "recommended_action",
	}, len(alerts), func(i int) []string {
		a := alerts[i]
		return []string{
			strconv.FormatInt(a.ID, 10),
			a.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(a.MMSI, 10),
			formatFloat(a.Lat),
			formatFloat(a.Lon),
			a.Risk.String(),
			formatFloat(a.Score),
			a.Action,
		}
	})
}

// FeaturesCSV writes a feature table with the report identity columns
// followed by the table's feature columns.
func FeaturesCSV(path string, table *features.Table) error {
	header := append([]string{"mmsi", "timestamp", "lat", "lon"}, table.Columns...)
	return writeCSV(path, header, len(table.Rows), func(i int) []string {
		row := table.Rows[i]
		record := make([]string, 0, len(header))
		record = append(record,
			strconv.FormatInt(row.Report.MMSI, 10),
			row.Report.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(row.Report.Lat),
			formatFloat(row.Report.Lon),
		)
		for _, col := range table.Columns {
			record = append(record, formatFloat(row.Values[col]))
		}
		return record
	})
}

// JSON writes any export table as indented JSON.
func JSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeCSV(path string, header []string, n int, record func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(record(i)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
