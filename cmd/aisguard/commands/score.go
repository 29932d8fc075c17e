package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/export"
	"github.com/seawatch/aisguard/pkg/features"
	"github.com/seawatch/aisguard/pkg/realtime"
)

var (
	scoreInput    string
	scoreBundle   string
	scoreOutput   string
	scoreJSONOut  string
	scoreAlertCSV string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score an AIS CSV file with a trained bundle",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input := scoreInput
		if input == "" {
			input = cfg.Data.AISData
		}

		engine, err := loadEngine(scoreBundle)
		if err != nil {
			return err
		}

		reports, err := loadReports(input)
		if err != nil {
			return err
		}

		featureCfg := cfg.FeatureConfig()
		featureCfg.SpatioTemporal = true
		table := features.NewExtractor(featureCfg, log).Extract(reports)

		results, err := engine.Score(table)
		if err != nil {
			return err
		}

		alerts := realtime.NewAlertManager(realtime.WithManagerLogger(log))
		anomalies := 0
		for _, r := range results {
			if r.IsAnomaly {
				anomalies++
				alerts.Record(r)
			}
		}
		log.Info("scoring complete",
			zap.Int("records", len(results)),
			zap.Int("anomalies", anomalies))

		if scoreOutput != "" {
			if err := export.ResultsCSV(scoreOutput, results); err != nil {
				return err
			}
			log.Info("results exported", zap.String("path", scoreOutput))
		}
		if scoreJSONOut != "" {
			if err := export.JSON(scoreJSONOut, results); err != nil {
				return err
			}
		}
		if scoreAlertCSV != "" {
			if err := export.AlertsCSV(scoreAlertCSV, alerts.All()); err != nil {
				return err
			}
		}

		fmt.Println(alerts.DailyReport())
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreInput, "input", "i", "",
		"AIS CSV file (default: data.ais_data from config)")
	scoreCmd.Flags().StringVarP(&scoreBundle, "bundle", "b", "",
		"trained bundle path (default: models.bundle_path from config)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "",
		"write scored results to this CSV file")
	scoreCmd.Flags().StringVar(&scoreJSONOut, "json", "",
		"write scored results to this JSON file")
	scoreCmd.Flags().StringVar(&scoreAlertCSV, "alerts", "",
		"write generated alerts to this CSV file")
}

// loadEngine loads the bundle and wraps it in a fusion engine with the
// configured weights and threshold.
func loadEngine(path string) (*ensemble.Engine, error) {
	if path == "" {
		path = cfg.Models.BundlePath
	}

	bundle, err := ensemble.LoadBundle(path)
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", path, err)
	}

	return ensemble.NewEngine(bundle,
		ensemble.WithWeights(cfg.Weights()),
		ensemble.WithThreshold(cfg.Anomaly.Threshold),
		ensemble.WithLogger(log))
}
