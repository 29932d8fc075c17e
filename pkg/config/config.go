// Package config loads the detection pipeline configuration from layered
// sources: built-in defaults, an optional YAML file and AISGUARD_*
// environment variables, in ascending priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/features"
	"github.com/seawatch/aisguard/pkg/geo"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/aisguard/config.yaml",
}

// ConfigPathEnv overrides the config file path.
const ConfigPathEnv = "AISGUARD_CONFIG"

// Config is the full pipeline configuration.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Features FeaturesConfig `koanf:"features"`
	Anomaly  AnomalyConfig  `koanf:"anomaly"`
	Models   ModelsConfig   `koanf:"models"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type DataConfig struct {
	AISData   string `koanf:"ais_data"`
	OutputDir string `koanf:"output_dir"`
}

type FeaturesConfig struct {
	Behavior       BehaviorConfig     `koanf:"behavior"`
	Transmission   TransmissionConfig `koanf:"transmission"`
	SpatioTemporal bool               `koanf:"spatiotemporal"`
}

type BehaviorConfig struct {
	SpeedWindow        int     `koanf:"speed_window"`
	LoiteringRadiusKm  float64 `koanf:"loitering_radius_km"`
	LoiteringTimeHours float64 `koanf:"loitering_time_hours"`
	FishingSpeedMin    float64 `koanf:"fishing_speed_min"`
	FishingSpeedMax    float64 `koanf:"fishing_speed_max"`
}

type TransmissionConfig struct {
	MaxGapMinutes float64 `koanf:"max_gap_minutes"`
}

type AnomalyConfig struct {
	Threshold       float64       `koanf:"threshold"`
	SequenceLength  int           `koanf:"sequence_length"`
	EnsembleWeights WeightsConfig `koanf:"ensemble_weights"`
}

type WeightsConfig struct {
	Supervised   float64 `koanf:"supervised"`
	Unsupervised float64 `koanf:"unsupervised"`
	Sequential   float64 `koanf:"sequential"`
}

type ModelsConfig struct {
	BundlePath      string                `koanf:"bundle_path"`
	IsolationForest IsolationForestConfig `koanf:"isolation_forest"`
}

type IsolationForestConfig struct {
	Estimators  int   `koanf:"n_estimators"`
	RandomState int64 `koanf:"random_state"`
}

type MonitorConfig struct {
	IntervalMinutes int     `koanf:"interval_minutes"`
	LatMin          float64 `koanf:"lat_min"`
	LonMin          float64 `koanf:"lon_min"`
	LatMax          float64 `koanf:"lat_max"`
	LonMax          float64 `koanf:"lon_max"`
	AISHubUsername  string  `koanf:"aishub_username"`
	AISStreamKey    string  `koanf:"aisstream_key"`
	SampleFallback  bool    `koanf:"sample_fallback"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			AISData:   "data/raw/ais_data.csv",
			OutputDir: "outputs",
		},
		Features: FeaturesConfig{
			Behavior: BehaviorConfig{
				SpeedWindow:        10,
				LoiteringRadiusKm:  5,
				LoiteringTimeHours: 2,
				FishingSpeedMin:    1,
				FishingSpeedMax:    5,
			},
			Transmission: TransmissionConfig{
				MaxGapMinutes: 60,
			},
		},
		Anomaly: AnomalyConfig{
			Threshold:      0.7,
			SequenceLength: 50,
			EnsembleWeights: WeightsConfig{
				Supervised:   0.4,
				Unsupervised: 0.3,
				Sequential:   0.3,
			},
		},
		Models: ModelsConfig{
			BundlePath: "outputs/models/bundle.gob",
			IsolationForest: IsolationForestConfig{
				Estimators:  100,
				RandomState: 42,
			},
		},
		Monitor: MonitorConfig{
			IntervalMinutes: 15,
			LatMin:          6,
			LonMin:          68,
			LatMax:          22,
			LonMax:          88,
			AISHubUsername:  "DEMO",
			SampleFallback:  true,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, then the file at path (or the
// first default path when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("AISGUARD_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings binds AISGUARD_* variables to config paths. Unlisted
// variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"ais_data":             "data.ais_data",
	"output_dir":           "data.output_dir",
	"speed_window":         "features.behavior.speed_window",
	"loitering_radius_km":  "features.behavior.loitering_radius_km",
	"loitering_time_hours": "features.behavior.loitering_time_hours",
	"fishing_speed_min":    "features.behavior.fishing_speed_min",
	"fishing_speed_max":    "features.behavior.fishing_speed_max",
	"max_gap_minutes":      "features.transmission.max_gap_minutes",
	"spatiotemporal":       "features.spatiotemporal",
	"threshold":            "anomaly.threshold",
	"sequence_length":      "anomaly.sequence_length",
	"weight_supervised":    "anomaly.ensemble_weights.supervised",
	"weight_unsupervised":  "anomaly.ensemble_weights.unsupervised",
	"weight_sequential":    "anomaly.ensemble_weights.sequential",
	"bundle_path":          "models.bundle_path",
	"iforest_estimators":   "models.isolation_forest.n_estimators",
	"iforest_random_state": "models.isolation_forest.random_state",
	"interval_minutes":     "monitor.interval_minutes",
	"aishub_username":      "monitor.aishub_username",
	"aisstream_key":        "monitor.aisstream_key",
	"sample_fallback":      "monitor.sample_fallback",
	"http_host":            "server.host",
	"http_port":            "server.port",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "AISGUARD_"))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Features.Behavior.SpeedWindow < 2 {
		return fmt.Errorf("features.behavior.speed_window must be at least 2, got %d",
			c.Features.Behavior.SpeedWindow)
	}
	if c.Anomaly.SequenceLength < 2 {
		return fmt.Errorf("anomaly.sequence_length must be at least 2, got %d",
			c.Anomaly.SequenceLength)
	}
	if c.Anomaly.Threshold <= 0 || c.Anomaly.Threshold >= 1 {
		return fmt.Errorf("anomaly.threshold must be in (0, 1), got %g",
			c.Anomaly.Threshold)
	}
	w := c.Anomaly.EnsembleWeights
	if w.Supervised <= 0 || w.Unsupervised <= 0 || w.Sequential < 0 {
		return fmt.Errorf("ensemble weights must be positive")
	}
	if c.Monitor.IntervalMinutes <= 0 {
		return fmt.Errorf("monitor.interval_minutes must be positive, got %d",
			c.Monitor.IntervalMinutes)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// FeatureConfig converts to the extractor's configuration.
func (c *Config) FeatureConfig() features.Config {
	return features.Config{
		Behavior: features.BehaviorConfig{
			Window:            c.Features.Behavior.SpeedWindow,
			LoiteringRadiusKm: c.Features.Behavior.LoiteringRadiusKm,
			LoiteringTime:     time.Duration(c.Features.Behavior.LoiteringTimeHours * float64(time.Hour)),
			FishingSpeedMin:   c.Features.Behavior.FishingSpeedMin,
			FishingSpeedMax:   c.Features.Behavior.FishingSpeedMax,
		},
		Transmission: features.TransmissionConfig{
			MaxGapMinutes:       c.Features.Transmission.MaxGapMinutes,
			Window:              features.DefaultTransmissionConfig().Window,
			MaxPlausibleSpeedKn: features.DefaultTransmissionConfig().MaxPlausibleSpeedKn,
		},
		SpatioTemporal: c.Features.SpatioTemporal,
	}
}

// Weights converts to the fusion engine's weights.
func (c *Config) Weights() ensemble.Weights {
	return ensemble.Weights{
		Supervised:   c.Anomaly.EnsembleWeights.Supervised,
		Unsupervised: c.Anomaly.EnsembleWeights.Unsupervised,
		Sequential:   c.Anomaly.EnsembleWeights.Sequential,
	}
}

// BBox converts the monitoring region.
func (c *Config) BBox() geo.BBox {
	return geo.BBox{
		MinLat: c.Monitor.LatMin,
		MinLon: c.Monitor.LonMin,
		MaxLat: c.Monitor.LatMax,
		MaxLon: c.Monitor.LonMax,
	}
}

// Interval converts the monitoring cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitor.IntervalMinutes) * time.Minute
}

// ListenAddr formats the API listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
