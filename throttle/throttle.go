// Package throttle paces the bot adaptively based on recent outcomes.
package throttle

import (
	"math/rand"
	"time"
)

const (
	minMultiplier = 1.0
	maxMultiplier = 4.0
	growthFactor  = 1.35
	decayFactor   = 0.85
)

// Throttle scales human-pacing delays up under sustained failure and back
// down under sustained success. It is session-scoped and must only be
// driven by a single sequential caller.
type Throttle struct {
	multiplier float64
	rng        *rand.Rand
}

func New() *Throttle {
	return &Throttle{
		multiplier: minMultiplier,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Multiplier returns the current delay multiplier, always >= 1.0.
func (t *Throttle) Multiplier() float64 {
	return t.multiplier
}

// Record feeds one attempt outcome into the controller.
func (t *Throttle) Record(success bool) {
	if success {
		t.multiplier *= decayFactor
		if t.multiplier < minMultiplier {
			t.multiplier = minMultiplier
		}
		return
	}
	t.multiplier *= growthFactor
	if t.multiplier > maxMultiplier {
		t.multiplier = maxMultiplier
	}
}

// Delay returns a randomized wait in [base, base+jitter) scaled by the
// current multiplier.
func (t *Throttle) Delay(base, jitter time.Duration) time.Duration {
	d := base
	if jitter > 0 {
		d += time.Duration(t.rng.Int63n(int64(jitter)))
	}
	return time.Duration(float64(d) * t.multiplier)
}

// Pause sleeps for a randomized, multiplier-scaled window.
func (t *Throttle) Pause(base, jitter time.Duration) {
	time.Sleep(t.Delay(base, jitter))
}
