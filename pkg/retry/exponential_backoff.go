package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

type Retryer interface {
	Do(ctx context.Context, fn func() error) error
}

type ExponentialBackoffConfig struct {
	InitialInterval     time.Duration `yaml:"initial_interval" validate:"min=0"`
	MaxInterval         time.Duration `yaml:"max_interval" validate:"min=0"`
	MaxElapsedTime      time.Duration `yaml:"max_elapsed_time" validate:"min=0"`
	Multiplier          float64       `yaml:"multiplier" validate:"min=0"`
	RandomizationFactor float64       `yaml:"randomization_factor" validate:"min=0,max=1"`
	MaxRetries          int           `yaml:"max_retries" validate:"min=0,max=10"`
}

func DefaultExponentialBackoffConfig() ExponentialBackoffConfig {
	return ExponentialBackoffConfig{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      15 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
		MaxRetries:          2,
	}
}

type ExponentialBackoff struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxRetries          int

	// ShouldRetry decides whether a failed attempt is repeated. A nil
	// ShouldRetry retries every error.
	ShouldRetry func(error) bool
}

func NewExponentialBackoff(config ExponentialBackoffConfig) *ExponentialBackoff {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &ExponentialBackoff{
		InitialInterval:     config.InitialInterval,
		MaxInterval:         config.MaxInterval,
		MaxElapsedTime:      config.MaxElapsedTime,
		Multiplier:          config.Multiplier,
		RandomizationFactor: config.RandomizationFactor,
		MaxRetries:          config.MaxRetries,
	}
}

// WithShouldRetry returns a copy of eb that consults fn before each retry.
func (eb *ExponentialBackoff) WithShouldRetry(fn func(error) bool) *ExponentialBackoff {
	cp := *eb
	cp.ShouldRetry = fn
	return &cp
}

func (eb *ExponentialBackoff) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	currentInterval := eb.InitialInterval
	startTime := time.Now()

	for attempt := 0; attempt <= eb.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == eb.MaxRetries {
			break
		}

		if eb.ShouldRetry != nil && !eb.ShouldRetry(lastErr) {
			break
		}

		if eb.MaxElapsedTime > 0 && time.Since(startTime) >= eb.MaxElapsedTime {
			break
		}

		if eb.MaxInterval > 0 && currentInterval > eb.MaxInterval {
			currentInterval = eb.MaxInterval
		}

		jitter := eb.getJitter(currentInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter):
		}

		currentInterval = time.Duration(float64(currentInterval) * eb.Multiplier)
	}

	return lastErr
}

func (eb *ExponentialBackoff) getJitter(interval time.Duration) time.Duration {
	if eb.RandomizationFactor == 0 {
		return interval
	}

	delta := eb.RandomizationFactor * float64(interval)
	minInterval := float64(interval) - delta
	maxInterval := float64(interval) + delta

	jitter := minInterval + (rand.Float64() * (maxInterval - minInterval))

	return time.Duration(math.Max(0, jitter))
}
