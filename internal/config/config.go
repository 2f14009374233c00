package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/msr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval     = 2
	DefaultLogLevel     = "info"
	DefaultDevicePath   = msr.DefaultDevicePath
	DefaultTopologyPath = msr.DefaultTopologyPath
	DefaultMaxCPUs      = msr.DefaultMaxCPUs
	DefaultMetricsDB    = "/var/lib/amdpower/metrics.db"
	DefaultBatchSize    = 10
	DefaultBatchTimeout = 30
	DefaultRetention    = 0
	DefaultListen       = ""

	envPrefix     = "AMDPOWER"
	configEnvVar  = "AMDPOWER_CONFIG"
	configName    = "amdpower"
	configType    = "toml"
	systemConfDir = "/etc"
)

type Config struct {
	Interval            int    `mapstructure:"interval"`
	Monitor             bool   `mapstructure:"monitor"`
	LogLevel            string `mapstructure:"log_level"`
	DevicePath          string `mapstructure:"msr_path"`
	TopologyPath        string `mapstructure:"topology_path"`
	MaxCPUs             int    `mapstructure:"max_cpus"`
	Metrics             bool   `mapstructure:"metrics"`
	MetricsDB           string `mapstructure:"metrics_db"`
	MetricsBatchSize    int    `mapstructure:"metrics_batch_size"`
	MetricsBatchTimeout int    `mapstructure:"metrics_batch_timeout"`
	MetricsRetention    int    `mapstructure:"metrics_retention"`
	ListenAddress       string `mapstructure:"listen_address"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"interval":      "interval",
	"monitor":       "monitor",
	"log-level":     "log_level",
	"msr-path":      "msr_path",
	"topology-path": "topology_path",
	"max-cpus":      "max_cpus",
	"metrics":       "metrics",
	"metrics-db":    "metrics_db",
	"listen":        "listen_address",
}

// Load reads the configuration from os.Args, the environment and the config file
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with explicit command line arguments
func LoadArgs(args []string) (*Config, error) {
	errFactory := errors.New()
	v := viper.New()
	setDefaults(v)

	// Define flags
	flags := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	flags.Int("interval", DefaultInterval, "Seconds between samples in monitor mode")
	flags.Bool("monitor", false, "Sample continuously instead of printing one reading")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("msr-path", DefaultDevicePath, "MSR device path template")
	flags.String("topology-path", DefaultTopologyPath, "physical_package_id path template")
	flags.Int("max-cpus", DefaultMaxCPUs, "Maximum number of CPUs to probe")
	flags.Bool("metrics", false, "Record samples to the metrics database")
	flags.String("metrics-db", DefaultMetricsDB, "Path to the metrics database")
	flags.String("listen", DefaultListen, "Address for the Prometheus endpoint in monitor mode, empty disables it")

	// Parse flags
	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Load configuration from file
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("monitor", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("msr_path", DefaultDevicePath)
	v.SetDefault("topology_path", DefaultTopologyPath)
	v.SetDefault("max_cpus", DefaultMaxCPUs)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", DefaultMetricsDB)
	v.SetDefault("metrics_batch_size", DefaultBatchSize)
	v.SetDefault("metrics_batch_timeout", DefaultBatchTimeout)
	v.SetDefault("metrics_retention", DefaultRetention)
	v.SetDefault("listen_address", DefaultListen)
}

func readConfigFile(v *viper.Viper) error {
	errFactory := errors.New()
	v.SetConfigType(configType)

	if path := os.Getenv(configEnvVar); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(systemConfDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.MaxCPUs <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "max_cpus must be positive")
	}

	if c.DevicePath == "" || c.TopologyPath == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "msr_path and topology_path must be set")
	}

	if c.MetricsBatchSize < 0 || c.MetricsBatchTimeout < 0 || c.MetricsRetention < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "metrics batch and retention values must not be negative")
	}

	if c.Metrics && c.MetricsDB == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "metrics_db must be set when metrics are enabled")
	}

	return nil
}

func (c *Config) GetInterval() int {
	return c.Interval
}

func (c *Config) IsMonitorMode() bool {
	return c.Monitor
}

func (c *Config) GetLogLevel() string {
	return c.LogLevel
}

func (c *Config) GetDevicePath() string {
	return c.DevicePath
}

func (c *Config) GetTopologyPath() string {
	return c.TopologyPath
}

func (c *Config) GetMaxCPUs() int {
	return c.MaxCPUs
}

func (c *Config) IsMetricsEnabled() bool {
	return c.Metrics
}

func (c *Config) GetMetricsDBPath() string {
	return c.MetricsDB
}

func (c *Config) GetMetricsBatchSize() int {
	return c.MetricsBatchSize
}

func (c *Config) GetMetricsBatchTimeout() int {
	return c.MetricsBatchTimeout
}

func (c *Config) GetMetricsRetention() int {
	return c.MetricsRetention
}

func (c *Config) GetListenAddress() string {
	return c.ListenAddress
}
