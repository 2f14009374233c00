package exporter

import (
	"strconv"
	"sync"

	"codeberg.org/mutker/amdpower/internal/msr"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "amdpower"

// Collector exposes the most recent power snapshot. It never reads the
// registers itself; the monitor loop pushes snapshots through Update.
type Collector struct {
	mu       sync.RWMutex
	snapshot *msr.Snapshot

	coreWatts    *prometheus.Desc
	packageWatts *prometheus.Desc
	totalWatts   *prometheus.Desc
	timestamp    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector() *Collector {
	return &Collector{
		coreWatts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "core", "watts"),
			"Power consumption in watts of a single core",
			[]string{"cpu", "package_id"},
			nil,
		),
		packageWatts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "package", "watts"),
			"Power consumption in watts of a processor package",
			[]string{"index", "package_id"},
			nil,
		),
		totalWatts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "package", "total_watts"),
			"Sum of the power consumption of all packages",
			nil,
			nil,
		),
		timestamp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sample", "timestamp_seconds"),
			"Unix time at which the last snapshot was taken",
			nil,
			nil,
		),
	}
}

// Update replaces the snapshot served on the next scrape
func (c *Collector) Update(snapshot *msr.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
}

// Describe implements the prometheus.Collector interface
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.coreWatts
	ch <- c.packageWatts
	ch <- c.totalWatts
	ch <- c.timestamp
}

// Collect implements the prometheus.Collector interface
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	snapshot := c.snapshot
	c.mu.RUnlock()

	// nothing sampled yet
	if snapshot == nil {
		return
	}

	for cpu, entry := range snapshot.Entries() {
		ch <- prometheus.MustNewConstMetric(
			c.coreWatts,
			prometheus.GaugeValue,
			entry.Core,
			strconv.Itoa(cpu),
			strconv.FormatUint(uint64(entry.PackageID), 10),
		)
	}

	for i, pkg := range snapshot.PackageRuns() {
		ch <- prometheus.MustNewConstMetric(
			c.packageWatts,
			prometheus.GaugeValue,
			pkg.Watts,
			strconv.Itoa(i),
			strconv.FormatUint(uint64(pkg.PackageID), 10),
		)
	}

	ch <- prometheus.MustNewConstMetric(c.totalWatts, prometheus.GaugeValue, snapshot.TotalPackagePower())
	ch <- prometheus.MustNewConstMetric(
		c.timestamp,
		prometheus.GaugeValue,
		float64(snapshot.Timestamp().UnixNano())/1e9,
	)
}
