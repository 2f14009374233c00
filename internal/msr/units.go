package msr

import "math"

// Bit fields of the power unit register
const (
	timeUnitMask   = 0xF0000
	energyUnitMask = 0x1F00
	powerUnitMask  = 0xF

	timeUnitShift   = 16
	energyUnitShift = 8
)

// PowerUnits holds the scaling factors reported by the power unit register.
// Each factor is 1/2^n for the exponent n found in the register: seconds,
// joules and watts per least significant bit respectively.
type PowerUnits struct {
	TimeUnit   float64
	EnergyUnit float64
	PowerUnit  float64
}

// DecodeUnits extracts the time, energy and power exponents from a raw power
// unit register value.
func DecodeUnits(raw uint64) PowerUnits {
	return PowerUnits{
		TimeUnit:   math.Pow(0.5, float64((raw&timeUnitMask)>>timeUnitShift)),
		EnergyUnit: math.Pow(0.5, float64((raw&energyUnitMask)>>energyUnitShift)),
		PowerUnit:  math.Pow(0.5, float64(raw&powerUnitMask)),
	}
}
