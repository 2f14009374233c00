package main

// powerHistory keeps a rolling average over the last size readings
type powerHistory struct {
	size    int
	samples []float64
}

func newPowerHistory(size int) *powerHistory {
	return &powerHistory{
		size:    size,
		samples: make([]float64, 0, size),
	}
}

// Update adds a reading and returns the average of the window
func (h *powerHistory) Update(watts float64) float64 {
	h.samples = append(h.samples, watts)
	if len(h.samples) > h.size {
		h.samples = h.samples[1:]
	}

	var sum float64
	for _, w := range h.samples {
		sum += w
	}

	return sum / float64(len(h.samples))
}
