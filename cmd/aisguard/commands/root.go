// Package commands implements the aisguard CLI.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/config"
)

var (
	configPath string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "aisguard",
	Short: "IUU fishing detection from AIS vessel tracks",
	Long: `aisguard detects illegal, unreported and unregulated fishing behavior
by extracting behavioral and transmission features from AIS position
reports and fusing supervised, unsupervised and sequential anomaly
detectors into per-report risk scores.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log, err = cfg.Logging.BuildLogger()
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			log.Sync()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config file (default: config.yaml, /etc/aisguard/config.yaml)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(monitorCmd)
}
