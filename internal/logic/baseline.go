package logic

// Baseline maintains a slowly-adapting estimate of the sensor's resting
// level. It follows ambient drift (daylight, temperature) but is far
// slower than a coin transient, so the difference reading-baseline stays
// meaningful during a spike.
type Baseline struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewBaseline creates a baseline tracker with the given smoothing factor.
func NewBaseline(alpha float64) *Baseline {
	return &Baseline{alpha: alpha}
}

// Update folds one reading into the estimate and returns the new value.
// The first reading seeds the estimate directly.
func (b *Baseline) Update(raw uint16) float64 {
	if !b.seeded {
		b.value = float64(raw)
		b.seeded = true
		return b.value
	}
	b.value += b.alpha * (float64(raw) - b.value)
	return b.value
}

// Value returns the current estimate, 0 before the first Update.
func (b *Baseline) Value() float64 {
	return b.value
}

// Seeded reports whether at least one reading has been folded in.
func (b *Baseline) Seeded() bool {
	return b.seeded
}
