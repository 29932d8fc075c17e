package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/evaluation"
	"github.com/seawatch/aisguard/pkg/export"
	"github.com/seawatch/aisguard/pkg/features"
)

var (
	evalInput  string
	evalBundle string
	evalJSON   string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a trained bundle against rule-based labels",
	Long: `Scores a labeled dataset and reports precision, recall, F1 and ROC AUC.
Ground truth comes from the rule-based flags (loitering, position jumps,
transmission silence), so the numbers measure agreement with the rules
rather than confirmed incidents.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		input := evalInput
		if input == "" {
			input = cfg.Data.AISData
		}

		engine, err := loadEngine(evalBundle)
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

		labels := ensemble.WeakLabels(table)
		predictions := make([]int, len(results))
		scores := make([]float64, len(results))
		for i, r := range results {
			if r.IsAnomaly {
				predictions[i] = 1
			}
			scores[i] = r.EnsembleScore
		}

		metrics, err := evaluation.Evaluate(labels, predictions, scores)
		if err != nil {
			return err
		}

		log.Info("evaluation complete",
			zap.Float64("f1", metrics.F1),
			zap.Float64("roc_auc", metrics.ROCAUC))
		fmt.Println(metrics.Report())

		if evalJSON != "" {
			return export.JSON(evalJSON, metrics)
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalInput, "input", "i", "",
		"AIS CSV file (default: data.ais_data from config)")
	evaluateCmd.Flags().StringVarP(&evalBundle, "bundle", "b", "",
		"trained bundle path (default: models.bundle_path from config)")
	evaluateCmd.Flags().StringVar(&evalJSON, "json", "",
		"write metrics to this JSON file")
}
