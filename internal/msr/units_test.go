package msr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeUnits(t *testing.T) {
	tests := []struct {
		name string
		raw  uint64
		want PowerUnits
	}{
		{
			name: "zen reference value",
			raw:  0x00A2E19,
			want: PowerUnits{
				TimeUnit:   1.0 / 1024,  // 2^-10
				EnergyUnit: 1.0 / 16384, // 2^-14
				PowerUnit:  1.0 / 512,   // 2^-9
			},
		},
		{
			name: "all exponents zero",
			raw:  0,
			want: PowerUnits{TimeUnit: 1, EnergyUnit: 1, PowerUnit: 1},
		},
		{
			name: "bits outside the fields are ignored",
			raw:  0xFFFFFFFF_FFF0_E0F0 | 0x00A2E19,
			want: PowerUnits{
				TimeUnit:   math.Pow(0.5, 10),
				EnergyUnit: math.Pow(0.5, 14),
				PowerUnit:  math.Pow(0.5, 9),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeUnits(tt.raw))
		})
	}
}

func TestDecodeUnitsIsPure(t *testing.T) {
	assert.Equal(t, DecodeUnits(0x00A2E19), DecodeUnits(0x00A2E19))
}

func TestDecodeUnitsRange(t *testing.T) {
	for _, raw := range []uint64{0, 0x1, 0xF, 0x1F00, 0xF0000, 0xA2E19, math.MaxUint64} {
		units := DecodeUnits(raw)
		for _, u := range []float64{units.TimeUnit, units.EnergyUnit, units.PowerUnit} {
			assert.Greater(t, u, 0.0, "raw 0x%x", raw)
			assert.LessOrEqual(t, u, 1.0, "raw 0x%x", raw)
		}
	}
}
