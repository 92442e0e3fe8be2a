package upgrade

import (
	"time"

	"github.com/loykin/dataupgrader/internal/common"
)

const (
	// PausedSleep is the poll interval while upgrades are disabled.
	PausedSleep = time.Minute
	// MaxSleep caps the sleep between two batches.
	MaxSleep = time.Minute
	// MinSleep is the lowest sleep between two batches.
	MinSleep = time.Second
	// DefaultInitialTimeout seeds the backoff for every upgrade and cleanup loop.
	DefaultInitialTimeout = 10 * time.Second

	// batches should take roughly a tenth of wall-clock time
	activeShare = 10
)

// NextTimeout returns how long to sleep before the next batch.
//
// The sleep is ten times the last batch duration, capped at MaxSleep. It
// shrinks by at most 10% per batch and never drops below MinSleep, so a
// struggling store gets relief quickly and load ramps back up slowly.
func NextTimeout(start, end time.Time, previous time.Duration, enabled bool) time.Duration {
	d, _ := nextTimeout(start, end, previous, enabled)
	return d
}

type timeoutReason int

const (
	reasonPaused timeoutReason = iota
	reasonCapped
	reasonRaised
	reasonObserved
)

func nextTimeout(start, end time.Time, previous time.Duration, enabled bool) (time.Duration, timeoutReason) {
	if !enabled {
		return PausedSleep, reasonPaused
	}

	observed := end.Sub(start) * activeShare
	if observed > MaxSleep {
		return MaxSleep, reasonCapped
	}

	floor := time.Duration(previous.Milliseconds()*9/10) * time.Millisecond
	if floor < MinSleep {
		floor = MinSleep
	}
	if observed < floor {
		return floor, reasonRaised
	}
	return observed, reasonObserved
}

// logTimeout is NextTimeout with the decision logged.
func logTimeout(logger *common.Logger, start, end time.Time, previous time.Duration, enabled bool) time.Duration {
	d, reason := nextTimeout(start, end, previous, enabled)
	switch reason {
	case reasonPaused:
		logger.Debug("not running data upgrades so long sleep", "timeout", d)
	case reasonCapped:
		logger.Warn("data upgrade sleep capped", "timeout", d, "previous_batch_duration", end.Sub(start))
	case reasonRaised:
		logger.Info("data upgrade sleep raised", "timeout", d)
	default:
		logger.Info("sleep until next data upgrade batch", "timeout", d)
	}
	return d
}
