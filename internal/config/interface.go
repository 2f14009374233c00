package config

// Provider defines the interface for accessing configuration values.
// All configuration values are immutable after loading.
type Provider interface {
	// GetInterval returns the monitor mode sampling interval in seconds
	GetInterval() int

	// IsMonitorMode returns whether continuous sampling is enabled
	IsMonitorMode() bool

	// GetLogLevel returns the configured logging level
	GetLogLevel() string

	// GetDevicePath returns the MSR device path template
	GetDevicePath() string

	// GetTopologyPath returns the physical_package_id path template
	GetTopologyPath() string

	// GetMaxCPUs returns the CPU enumeration ceiling
	GetMaxCPUs() int

	// IsMetricsEnabled returns whether samples are recorded
	IsMetricsEnabled() bool

	// GetMetricsDBPath returns the path to the metrics database
	GetMetricsDBPath() string

	GetMetricsBatchSize() int
	GetMetricsBatchTimeout() int

	// GetMetricsRetention returns the hours of history kept, 0 keeps everything
	GetMetricsRetention() int

	// GetListenAddress returns the Prometheus endpoint address, empty when disabled
	GetListenAddress() string
}

var _ Provider = (*Config)(nil)

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
