package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/dataupgrader/internal/common"
)

// Config controls how transient store errors are retried
type Config struct {
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay    time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffFactor   float64       `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	RetryableErrors []string      `mapstructure:"retryable_errors" yaml:"retryable_errors"`
}

// DefaultRetryConfig returns the retry settings used for batch fetches
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"deadlock",
			"database is locked",
			"sqlite_busy",
			"too many clients",
			"the database system is starting up",
			"broken pipe",
		},
	}
}

// withDefaults fills zero fields from DefaultRetryConfig.
func (rc *Config) withDefaults() *Config {
	def := DefaultRetryConfig()
	if rc == nil {
		return def
	}
	out := *rc
	if out.InitialDelay <= 0 {
		out.InitialDelay = def.InitialDelay
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = def.MaxDelay
	}
	if out.BackoffFactor < 1 {
		out.BackoffFactor = def.BackoffFactor
	}
	if len(out.RetryableErrors) == 0 {
		out.RetryableErrors = def.RetryableErrors
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	return &out
}

// IsRetryable reports whether err looks transient
func (rc *Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range rc.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// delay returns the exponential backoff for the given attempt
func (rc *Config) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}
	d := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.BackoffFactor, float64(attempt)))
	if d > rc.MaxDelay {
		d = rc.MaxDelay
	}
	return d
}

// WithRetry runs op until it succeeds, fails with a non-retryable error,
// or exhausts cfg.MaxRetries. A nil cfg uses DefaultRetryConfig.
func WithRetry(ctx context.Context, cfg *Config, op func() error) error {
	_, err := Do(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Do is WithRetry for operations that return a value.
func Do[T any](ctx context.Context, cfg *Config, op func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	logger := common.GetLogger().WithComponent("store-retry")

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			if attempt > 0 {
				logger.Info("store operation succeeded after retry", "attempt", attempt+1)
			}
			return v, nil
		}
		lastErr = err

		if !cfg.IsRetryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := cfg.delay(attempt)
		logger.Warn("store operation failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"retry_delay", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
		case <-t.C:
		}
	}

	logger.Error("store operation failed after all retry attempts", "error", lastErr, "attempts", cfg.MaxRetries+1)
	return zero, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
