// Package config provides Viper-based hierarchical configuration management.
package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// WantsLabel is one row of the wants-gauge label table. The first row whose
// UpperBound is not exceeded by the ratio wins.
type WantsLabel struct {
	UpperBound float64 `mapstructure:"upper_bound" yaml:"upper_bound"`
	Label      string  `mapstructure:"label" yaml:"label"`
}

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Server struct {
		Addr           string `mapstructure:"addr" yaml:"addr"`
		UploadMaxBytes int64  `mapstructure:"upload_max_bytes" yaml:"upload_max_bytes"`
	} `mapstructure:"server" yaml:"server"`

	Data struct {
		DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
		RulesFile    string `mapstructure:"rules_file" yaml:"rules_file"`
		BucketsFile  string `mapstructure:"buckets_file" yaml:"buckets_file"`
	} `mapstructure:"data" yaml:"data"`

	Ingest struct {
		ProgressEvery int `mapstructure:"progress_every" yaml:"progress_every"`
		Workers       int `mapstructure:"workers" yaml:"workers"`
	} `mapstructure:"ingest" yaml:"ingest"`

	Parser struct {
		SelfTransferTokens []string `mapstructure:"self_transfer_tokens" yaml:"self_transfer_tokens"`
	} `mapstructure:"parser" yaml:"parser"`

	Insights struct {
		WantsThreshold          float64      `mapstructure:"wants_threshold" yaml:"wants_threshold"`
		WantsLabels             []WantsLabel `mapstructure:"wants_labels" yaml:"wants_labels"`
		RecurringMinOccurrences int          `mapstructure:"recurring_min_occurrences" yaml:"recurring_min_occurrences"`
		RecurringCVCutoff       float64      `mapstructure:"recurring_cv_cutoff" yaml:"recurring_cv_cutoff"`
		UncategorizedAlertPct   float64      `mapstructure:"uncategorized_alert_pct" yaml:"uncategorized_alert_pct"`
		TopCategories           int          `mapstructure:"top_categories" yaml:"top_categories"`
	} `mapstructure:"insights" yaml:"insights"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then an optional config.yaml, then SPENDSENSE_* environment
// variables.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.spendsense")
	v.AddConfigPath(".spendsense")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SPENDSENSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Keep going with defaults and env vars; a broken file is not fatal.
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Insights.WantsLabels) == 0 {
		config.Insights.WantsLabels = DefaultWantsLabels()
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultWantsLabels is the ordered label table used when the config file
// does not override it. These are product parameters, not invariants.
func DefaultWantsLabels() []WantsLabel {
	return []WantsLabel{
		{UpperBound: 0.25, Label: "comfortable"},
		{UpperBound: 0.40, Label: "balanced"},
		{UpperBound: 0.60, Label: "stretched"},
		{UpperBound: 1.01, Label: "overspent"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.upload_max_bytes", 16<<20)

	v.SetDefault("data.database_path", "spendsense.db")
	v.SetDefault("data.rules_file", "database/merchants.yaml")
	v.SetDefault("data.buckets_file", "database/buckets.yaml")

	v.SetDefault("ingest.progress_every", 25)
	v.SetDefault("ingest.workers", 0) // 0 means NumCPU

	v.SetDefault("parser.self_transfer_tokens", []string{"self", "own account"})

	v.SetDefault("insights.wants_threshold", 0.4)
	v.SetDefault("insights.recurring_min_occurrences", 3)
	v.SetDefault("insights.recurring_cv_cutoff", 0.15)
	v.SetDefault("insights.uncategorized_alert_pct", 10.0)
	v.SetDefault("insights.top_categories", 5)
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Data.DatabasePath == "" {
		return fmt.Errorf("data.database_path must not be empty")
	}

	if config.Insights.WantsThreshold <= 0 || config.Insights.WantsThreshold >= 1 {
		return fmt.Errorf("insights.wants_threshold must be between 0 and 1, got: %f", config.Insights.WantsThreshold)
	}

	if config.Insights.RecurringMinOccurrences < 2 {
		return fmt.Errorf("insights.recurring_min_occurrences must be at least 2, got: %d", config.Insights.RecurringMinOccurrences)
	}

	if config.Insights.RecurringCVCutoff <= 0 || config.Insights.RecurringCVCutoff >= 1 {
		return fmt.Errorf("insights.recurring_cv_cutoff must be between 0 and 1, got: %f", config.Insights.RecurringCVCutoff)
	}

	if config.Insights.UncategorizedAlertPct < 0 || config.Insights.UncategorizedAlertPct > 100 {
		return fmt.Errorf("insights.uncategorized_alert_pct must be between 0 and 100, got: %f", config.Insights.UncategorizedAlertPct)
	}

	prev := 0.0
	for _, l := range config.Insights.WantsLabels {
		if l.UpperBound <= prev {
			return fmt.Errorf("insights.wants_labels must have strictly increasing upper bounds")
		}
		if l.Label == "" {
			return fmt.Errorf("insights.wants_labels entries must have a label")
		}
		prev = l.UpperBound
	}

	return nil
}

// ConfigureLoggingFromConfig configures a logrus logger from the Config.
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
