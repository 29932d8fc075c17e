package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/export"
	"github.com/seawatch/aisguard/pkg/features"
)

var (
	trainInput    string
	trainOutput   string
	trainFeatures string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the detector bundle from an AIS CSV file",
	Long: `Reads position reports, cleans them, extracts the full feature set
including spatio-temporal enrichment, derives rule-based training labels
and fits the supervised, unsupervised and sequential detectors. The
trained bundle is written as a single file for the score and monitor
commands.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		input := trainInput
		if input == "" {
			input = cfg.Data.AISData
		}
		output := trainOutput
		if output == "" {
			output = cfg.Models.BundlePath
		}

		reports, err := loadReports(input)
		if err != nil {
			return err
		}

		featureCfg := cfg.FeatureConfig()
		featureCfg.SpatioTemporal = true
		table := features.NewExtractor(featureCfg, log).Extract(reports)
		if len(table.Rows) == 0 {
			return fmt.Errorf("no usable reports in %s", input)
		}

		labels := ensemble.WeakLabels(table)
		log.Info("derived rule-based training labels",
			zap.Int("rows", len(labels)))

		bundle, err := ensemble.Train(table, labels, ensemble.TrainConfig{
			SeqLen: cfg.Anomaly.SequenceLength,
			Seed:   cfg.Models.IsolationForest.RandomState,
		}, log)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return err
		}
		if err := bundle.Save(output); err != nil {
			return fmt.Errorf("save bundle: %w", err)
		}
		log.Info("bundle trained", zap.String("path", output),
			zap.Int("columns", len(bundle.Columns)),
			zap.Bool("sequential", bundle.Sequential != nil))

		if trainFeatures != "" {
			if err := export.FeaturesCSV(trainFeatures, table); err != nil {
				return err
			}
			log.Info("feature table exported", zap.String("path", trainFeatures))
		}
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainInput, "input", "i", "",
		"AIS CSV file (default: data.ais_data from config)")
	trainCmd.Flags().StringVarP(&trainOutput, "output", "o", "",
		"bundle output path (default: models.bundle_path from config)")
	trainCmd.Flags().StringVar(&trainFeatures, "export-features", "",
		"also write the extracted feature table to this CSV file")
}

// loadReports reads and cleans a CSV of position reports.
func loadReports(path string) ([]ais.PositionReport, error) {
	reader, err := ais.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	raw, err := reader.Read()
	if err != nil {
		return nil, err
	}

	cleaned := ais.NewCleaner(log).Clean(raw)
	log.Info("loaded position reports",
		zap.String("path", path),
		zap.Int("raw", len(raw)),
		zap.Int("cleaned", len(cleaned)))
	return cleaned, nil
}
