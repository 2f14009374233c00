package metrics

import (
	"context"
	"time"
)

// MetricsCollector defines the core domain interface
type MetricsCollector interface {
	Record(ctx context.Context, snapshot *MetricsSnapshot) error
	Close() error
}

// MetricsRepository defines the interface for metrics data storage
type MetricsRepository interface {
	Record(snapshot *MetricsSnapshot) error
	Close() error
}

// MetricsSnapshot is one power reading of the whole machine
type MetricsSnapshot struct {
	Timestamp time.Time
	Cores     []CoreMetrics
	Packages  []PackageMetrics
}

// CoreMetrics is the power of one logical CPU
type CoreMetrics struct {
	CPU       int
	PackageID uint32
	Watts     float64
}

// PackageMetrics is the power of one package run, in CPU order
type PackageMetrics struct {
	Index     int
	PackageID uint32
	Watts     float64
}
