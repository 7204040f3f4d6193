package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultBase           = 100 * time.Millisecond
	DefaultFactor         = 2.0
	DefaultMax            = 60 * time.Second
	DefaultMaxRetries     = 3
	DefaultJitterFraction = 0.25
)

// Policy computes capped exponential backoff with additive jitter:
//
//	delay(n) = min(Max, Base*Factor^n) + U[0, min(Max, Base*Factor^n)*JitterFraction]
//
// A Policy holds configuration only and is safe for concurrent use.
type Policy struct {
	Base           time.Duration
	Factor         float64
	Max            time.Duration
	MaxRetries     int
	JitterFraction float64

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

func DefaultPolicy() Policy {
	return Policy{
		Base:           DefaultBase,
		Factor:         DefaultFactor,
		Max:            DefaultMax,
		MaxRetries:     DefaultMaxRetries,
		JitterFraction: DefaultJitterFraction,
	}
}

// Decision is the outcome of consulting the policy after a failed attempt.
type Decision struct {
	GiveUp bool
	Delay  time.Duration
}

// Decide is called with the 0-based index of the attempt that just failed.
// Attempts 0..MaxRetries-1 earn a wait; attempt MaxRetries is the last one,
// so a job is tried MaxRetries+1 times in total.
func (p Policy) Decide(attempt int) Decision {
	if attempt >= p.MaxRetries {
		return Decision{GiveUp: true}
	}
	return Decision{Delay: p.Delay(attempt)}
}

// Capped is the deterministic part of the delay for attempt n.
func (p Policy) Capped(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	raw := float64(p.Base) * math.Pow(factor, float64(n))
	if p.Max > 0 && (raw > float64(p.Max) || math.IsInf(raw, 0) || math.IsNaN(raw)) {
		return p.Max
	}
	return time.Duration(raw)
}

func (p Policy) Delay(n int) time.Duration {
	capped := p.Capped(n)
	if p.JitterFraction <= 0 || capped <= 0 {
		return capped
	}
	r := p.Rand
	if r == nil {
		r = rand.Float64
	}
	return capped + time.Duration(float64(capped)*p.JitterFraction*r())
}

// Upper is the largest delay Delay can return for any attempt.
func (p Policy) Upper() time.Duration {
	return p.Max + time.Duration(float64(p.Max)*max(p.JitterFraction, 0))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
