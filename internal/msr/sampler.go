package msr

import (
	"sync"
	"time"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/logger"
)

// Sampler reads core and package power from the RAPL energy accumulators of
// every CPU in the machine.
type Sampler struct {
	mu     sync.Mutex
	cores  []*Core
	units  PowerUnits
	sleep  func(time.Duration)
	now    func() time.Time
	logger logger.Logger
}

type probeResult int

const (
	probeFound probeResult = iota
	probeEnd
)

type rawSample struct {
	core      uint64
	pkg       uint64
	packageID uint32
}

// New enumerates CPUs from 0 upwards until the first CPU without a topology
// entry or register device, opens every register device found and decodes
// the power units from the first one. CPU numbers are assumed dense: a gap
// ends enumeration.
func New(opts ...Option) (*Sampler, error) {
	o := newOptions(opts...)
	errFactory := errors.New()

	cores := make([]*Core, 0, 8)
	for cpu := 0; cpu < o.maxCPUs; cpu++ {
		core, result, err := probe(cpu, o)
		if err != nil {
			closeCores(cores)
			return nil, err
		}
		if result == probeEnd {
			break
		}
		cores = append(cores, core)
	}

	if len(cores) == 0 {
		return nil, errFactory.New(ErrNoCores)
	}

	raw, err := cores[0].ReadRegister(RegPowerUnit)
	if err != nil {
		closeCores(cores)
		return nil, err
	}
	units := DecodeUnits(raw)

	o.logger.Debug().
		Int("cores", len(cores)).
		Int("packages", countPackageRuns(cores)).
		Float64("time_unit", units.TimeUnit).
		Float64("energy_unit", units.EnergyUnit).
		Float64("power_unit", units.PowerUnit).
		Msg("MSR sampler initialized")

	return &Sampler{
		cores:  cores,
		units:  units,
		sleep:  o.sleep,
		now:    o.now,
		logger: o.logger,
	}, nil
}

// probe separates "no such CPU" from a failure to open an existing one.
func probe(cpu int, o *options) (*Core, probeResult, error) {
	core, err := openCore(cpu, o)
	if err == nil {
		return core, probeFound, nil
	}
	if errors.HasCode(err, ErrCoreNotFound) {
		return nil, probeEnd, nil
	}

	return nil, probeFound, err
}

// Units returns the scaling factors decoded at construction
func (s *Sampler) Units() PowerUnits {
	return s.units
}

// NumCores returns the number of CPUs being sampled
func (s *Sampler) NumCores() int {
	return len(s.cores)
}

// Read samples every energy accumulator twice, one sampling window apart, and
// converts the deltas to watts. It blocks for at least the sampling window.
// Any read failure fails the whole call.
func (s *Sampler) Read() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.readRaw()
	if err != nil {
		return nil, err
	}

	s.sleep(sampleWindow)

	end, err := s.readRaw()
	if err != nil {
		return nil, err
	}

	entries := make([]CorePower, len(start))
	for i := range start {
		entries[i] = CorePower{
			Core:      s.power(start[i].core, end[i].core),
			Package:   s.power(start[i].pkg, end[i].pkg),
			PackageID: start[i].packageID,
		}
	}

	return NewSnapshot(s.now(), entries), nil
}

func (s *Sampler) readRaw() ([]rawSample, error) {
	samples := make([]rawSample, len(s.cores))
	for i, core := range s.cores {
		coreEnergy, err := core.ReadRegister(RegCoreEnergy)
		if err != nil {
			return nil, err
		}
		pkgEnergy, err := core.ReadRegister(RegPackageEnergy)
		if err != nil {
			return nil, err
		}
		samples[i] = rawSample{
			core:      coreEnergy,
			pkg:       pkgEnergy,
			packageID: core.PackageID(),
		}
	}

	return samples, nil
}

func (s *Sampler) power(start, end uint64) float64 {
	return float64(counterDelta(start, end)) * s.units.EnergyUnit * wattScale
}

// counterDelta returns the number of energy units accumulated between two
// readings of a 32-bit accumulator, allowing for one wrap. The accumulators
// only count up, so any decrease is taken as a wrap: a counter that was
// reset between the passes shows up as a near full-span delta.
func counterDelta(start, end uint64) uint64 {
	start &= counterMask
	end &= counterMask
	if end >= start {
		return end - start
	}

	return end + counterSpan - start
}

// Close releases every register device. The sampler must not be used after.
func (s *Sampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for _, core := range s.cores {
		if err := core.Close(); err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Int("cpu", core.CPU()).Msg("Failed to close MSR device")
		}
	}

	return lastErr
}

func closeCores(cores []*Core) {
	for _, core := range cores {
		_ = core.Close()
	}
}

func countPackageRuns(cores []*Core) int {
	n := 0
	for i, core := range cores {
		if i == 0 || core.PackageID() != cores[i-1].PackageID() {
			n++
		}
	}

	return n
}
