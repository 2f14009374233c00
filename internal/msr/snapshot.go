package msr

import "time"

// CorePower is the power drawn over one sampling window, in watts, as seen
// from one CPU. Package is the draw of the whole package the CPU sits on.
type CorePower struct {
	Core      float64
	Package   float64
	PackageID uint32
}

// PackagePower is the draw of one physical package, in watts.
type PackagePower struct {
	PackageID uint32
	Watts     float64
}

// Snapshot is the immutable result of one Sampler.Read. Entries are in CPU
// enumeration order.
type Snapshot struct {
	timestamp time.Time
	entries   []CorePower
}

// NewSnapshot builds a snapshot from entries in CPU order.
func NewSnapshot(timestamp time.Time, entries []CorePower) *Snapshot {
	return &Snapshot{
		timestamp: timestamp,
		entries:   append([]CorePower(nil), entries...),
	}
}

// Timestamp returns the time the second pass completed
func (s *Snapshot) Timestamp() time.Time {
	return s.timestamp
}

// Entries returns a copy of the per-CPU entries
func (s *Snapshot) Entries() []CorePower {
	return append([]CorePower(nil), s.entries...)
}

// Cores returns the core power of every CPU in enumeration order
func (s *Snapshot) Cores() []float64 {
	cores := make([]float64, len(s.entries))
	for i, e := range s.entries {
		cores[i] = e.Core
	}

	return cores
}

// PackageRuns returns one entry per run of consecutive CPUs sharing a
// package id. This matches one entry per package only when the CPUs of each
// package are numbered contiguously, which holds for the Linux numbering of
// AMD parts.
func (s *Snapshot) PackageRuns() []PackagePower {
	var runs []PackagePower
	for i, e := range s.entries {
		if i == 0 || e.PackageID != s.entries[i-1].PackageID {
			runs = append(runs, PackagePower{PackageID: e.PackageID, Watts: e.Package})
		}
	}

	return runs
}

// Packages returns the package power of every package run in order
func (s *Snapshot) Packages() []float64 {
	runs := s.PackageRuns()
	packages := make([]float64, len(runs))
	for i, r := range runs {
		packages[i] = r.Watts
	}

	return packages
}

// TotalPackagePower sums Packages
func (s *Snapshot) TotalPackagePower() float64 {
	var total float64
	for _, p := range s.Packages() {
		total += p
	}

	return total
}
