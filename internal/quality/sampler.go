package quality

import "math/rand"

// Sampler decides whether one answered question gets scored.
type Sampler interface {
	Sample() bool
}

// RateSampler samples with a fixed probability. A rate of 0 never samples and
// a rate of 1 always does.
type RateSampler struct {
	rate  float64
	float func() float64
}

// NewRateSampler creates a sampler for rate, clamped to [0,1].
func NewRateSampler(rate float64) *RateSampler {
	r, ok := Clamp(rate)
	if !ok {
		r = 0
	}
	return &RateSampler{rate: r, float: rand.Float64}
}

// Rate returns the effective sampling rate.
func (s *RateSampler) Rate() float64 {
	return s.rate
}

// Sample reports whether to score.
func (s *RateSampler) Sample() bool {
	switch {
	case s.rate <= 0:
		return false
	case s.rate >= 1:
		return true
	default:
		return s.float() < s.rate
	}
}
