package msr

import "time"

// Register is the address of a model-specific register. The msr driver
// exposes it as the file offset of the register.
type Register uint32

// AMD RAPL registers (family 17h and later)
const (
	RegPowerUnit     Register = 0xC0010299
	RegCoreEnergy    Register = 0xC001029A
	RegPackageEnergy Register = 0xC001029B
)

const (
	registerSize = 8

	// Energy accumulators are 32 bits wide; the upper half is reserved.
	counterMask = 0xFFFFFFFF
	counterSpan = counterMask + 1
)

// SamplesPerSecond ties the sampling window to the watt scale: energy
// accumulated over 1/SamplesPerSecond seconds times SamplesPerSecond is
// the average power over the window.
const SamplesPerSecond = 100

const (
	sampleWindow = time.Second / SamplesPerSecond
	wattScale    = float64(SamplesPerSecond)
)

const (
	DefaultDevicePath   = "/dev/cpu/%d/msr"
	DefaultTopologyPath = "/sys/devices/system/cpu/cpu%d/topology/physical_package_id"
	DefaultMaxCPUs      = 1024
)

func (r Register) String() string {
	switch r {
	case RegPowerUnit:
		return "power_unit"
	case RegCoreEnergy:
		return "core_energy"
	case RegPackageEnergy:
		return "package_energy"
	default:
		return "unknown"
	}
}
