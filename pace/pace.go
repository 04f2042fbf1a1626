// Package pace produces human-plausible delays for browser interaction.
//
// Uniform jitter looks robotic in aggregate: real people cluster around a
// typical rhythm with occasional fast and slow outliers. Between draws from
// a gaussian centered on the midpoint of the configured range and clamps to
// the bounds, so every delay is within [min, max] but most land near the
// middle.
package pace

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Gaussian returns a normally distributed sample (Box-Muller) with the given
// mean and standard deviation, floored at zero.
func Gaussian(mean, stddev float64) float64 {
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	v := rand.Float64()
	n := math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
	return math.Max(0, n*stddev+mean)
}

// Between returns a delay in [min, max], gaussian-shaped around the midpoint
// with stddev (max-min)/6 so the clamp rarely fires. If max <= min it
// returns min.
func Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	mean := float64(min+max) / 2
	stddev := float64(max-min) / 6
	d := time.Duration(Gaussian(mean, stddev))
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// Uniform returns a uniformly distributed delay in [min, max).
func Uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// Returns ctx.Err() on cancellation so callers can halt promptly.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Keystroke returns the delay before the next typed character. Base delay is
// uniform in [min, max]; roughly one keystroke in twenty-five gets a longer
// "thinking" pause, and punctuation gets a short rhythm pause.
func Keystroke(min, max time.Duration, prev rune) time.Duration {
	d := Uniform(min, max)
	if rand.Float64() < 0.04 {
		d += time.Duration(Gaussian(float64(300*time.Millisecond), float64(100*time.Millisecond)))
	}
	switch prev {
	case '.', '!', '?', ',', ';', ':':
		d += time.Duration(Gaussian(float64(150*time.Millisecond), float64(50*time.Millisecond)))
	}
	return d
}
