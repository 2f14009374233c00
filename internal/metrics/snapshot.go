package metrics

import "codeberg.org/mutker/amdpower/internal/msr"

// FromPowerSnapshot converts a sampler reading into its stored form
func FromPowerSnapshot(s *msr.Snapshot) *MetricsSnapshot {
	entries := s.Entries()
	runs := s.PackageRuns()

	snapshot := &MetricsSnapshot{
		Timestamp: s.Timestamp(),
		Cores:     make([]CoreMetrics, len(entries)),
		Packages:  make([]PackageMetrics, len(runs)),
	}

	for i, e := range entries {
		snapshot.Cores[i] = CoreMetrics{CPU: i, PackageID: e.PackageID, Watts: e.Core}
	}
	for i, r := range runs {
		snapshot.Packages[i] = PackageMetrics{Index: i, PackageID: r.PackageID, Watts: r.Watts}
	}

	return snapshot
}
