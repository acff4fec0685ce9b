package throttle

import (
	"context"
	"math/rand/v2"
	"time"

	"discarch/internal/metrics"
)

// Config tunes the smoothing delay applied between bulk items: a base delay
// with uniform jitter, scaled up at fixed intervals so long runs back off
// before the remote API ever answers 429.
type Config struct {
	BaseDelay   time.Duration `json:"base_delay"`
	Jitter      time.Duration `json:"jitter"`
	MediumEvery int           `json:"medium_every"`
	HeavyEvery  int           `json:"heavy_every"`
}

// DefaultConfig returns the smoothing defaults: 500ms base, up to 300ms
// jitter, 1.5x every 50th item and 2x every 100th.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   500 * time.Millisecond,
		Jitter:      300 * time.Millisecond,
		MediumEvery: 50,
		HeavyEvery:  100,
	}
}

// Pacer applies a proactive, jittered per-item delay across a bulk
// iteration. It is not safe for concurrent use; the bulk loop it serves is
// strictly sequential.
type Pacer struct {
	config Config
	count  int
}

// NewPacer creates a pacer with the given configuration. Zero-valued fields
// fall back to the defaults.
func NewPacer(config Config) *Pacer {
	def := DefaultConfig()
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if config.Jitter < 0 {
		config.Jitter = def.Jitter
	}
	if config.MediumEvery <= 0 {
		config.MediumEvery = def.MediumEvery
	}
	if config.HeavyEvery <= 0 {
		config.HeavyEvery = def.HeavyEvery
	}
	return &Pacer{config: config}
}

// Wait sleeps the smoothing delay for the next processed item. It returns
// early with the context error if the context is cancelled mid-sleep.
func (p *Pacer) Wait(ctx context.Context) error {
	p.count++
	delay := p.delayFor(p.count)
	metrics.RecordTimer(metrics.ThrottleDelay, delay, nil, "smoothing delay applied between bulk items")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Processed returns how many items the pacer has seen.
func (p *Pacer) Processed() int {
	return p.count
}

// delayFor computes the delay for the n-th item (1-based). The heavy
// multiplier wins when both intervals coincide.
func (p *Pacer) delayFor(n int) time.Duration {
	delay := p.config.BaseDelay
	if p.config.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(p.config.Jitter)))
	}

	switch {
	case n%p.config.HeavyEvery == 0:
		delay *= 2
	case n%p.config.MediumEvery == 0:
		delay = delay * 3 / 2
	}

	return delay
}
