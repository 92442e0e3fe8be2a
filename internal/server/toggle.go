package server

import "sync/atomic"

// Toggle is the live run-data-upgrades switch read by the runner before every batch.
type Toggle struct {
	enabled atomic.Bool
}

func NewToggle(enabled bool) *Toggle {
	t := &Toggle{}
	t.enabled.Store(enabled)
	return t
}

func (t *Toggle) Enabled() bool { return t.enabled.Load() }

func (t *Toggle) Set(enabled bool) { t.enabled.Store(enabled) }
