package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the strand configuration file (~/.config/strand/config.yaml).
// Sampling fields are pointers so "not set" is distinguishable from zero.
type Config struct {
	ModelPath     string `yaml:"model_path"`
	ParamsPath    string `yaml:"params_path"`
	TokenizerPath string `yaml:"tokenizer_path"`

	// Sampling defaults
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MaxContext  *int64   `yaml:"max_context"`
	MaxBatch    *int64   `yaml:"max_batch"`
	Steps       *int64   `yaml:"steps"`
	Seed        *int64   `yaml:"seed"`

	// Backend
	Backend string `yaml:"backend"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress     string   `yaml:"server_address"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "strand", "config.yaml")
}

// applyCommonConfig applies config file defaults to the shared model flags
// when the corresponding CLI flag was not explicitly set.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.ModelPath != "" && !c.IsSet("model") {
		modelPath = cfg.ModelPath
	}
	if cfg.ParamsPath != "" && !c.IsSet("params") {
		paramsPath = cfg.ParamsPath
	}
	if cfg.TokenizerPath != "" && !c.IsSet("tokenizer") {
		tokenizerPath = cfg.TokenizerPath
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		maxContext = *cfg.MaxContext
	}
	if cfg.MaxBatch != nil && !c.IsSet("max-batch") {
		maxBatch = *cfg.MaxBatch
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyRunConfig applies config file defaults to run command variables.
func applyRunConfig(c *cli.Command, cfg Config, temp, topP *float64, steps, seed *int64) {
	applyCommonConfig(c, cfg)
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") && !c.IsSet("t") {
		*temp = *cfg.Temperature
	}
	if cfg.TopP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") && !c.IsSet("topp") {
		*topP = *cfg.TopP
	}
	if cfg.Steps != nil && !c.IsSet("steps") {
		*steps = *cfg.Steps
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, rps *float64) {
	applyCommonConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.RequestsPerSecond != nil && !c.IsSet("rps") {
		*rps = *cfg.RequestsPerSecond
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
