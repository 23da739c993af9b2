package scheduler

import (
	"fmt"
	"math"
	"time"
)

// MaxIntervalSeconds is the longest interval that still fits in a time.Duration.
const MaxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// Config holds configuration for the synchronization schedule.
type Config struct {
	// IntervalSeconds is the fixed period between the starts of two passes.
	IntervalSeconds int `mapstructure:"interval" default:"60"`
}

// Validate rejects intervals that are not positive or overflow a time.Duration.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 || int64(c.IntervalSeconds) > MaxIntervalSeconds {
		return fmt.Errorf("interval %d: %w", c.IntervalSeconds, ErrInvalidInterval)
	}
	return nil
}

// Interval returns the configured period as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
