// Package metrics records scoring desk activity.
package metrics

import "time"

// Recorder is implemented by Prometheus and Nop.
type Recorder interface {
	// RecordSave counts one save attempt that reached the backend.
	RecordSave(kind string, ok bool, d time.Duration)
	// AddRows counts rows written by op ("upsert" or "delete").
	AddRows(op string, n int)
	// RecordBlocked counts a save refused before any request (reason:
	// "in_progress", "validation", "no_selection", "nothing_to_save").
	RecordBlocked(kind, reason string)
	SetOpenSessions(n int)
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func NewNop() Nop { return Nop{} }

func (Nop) RecordSave(string, bool, time.Duration) {}
func (Nop) AddRows(string, int)                    {}
func (Nop) RecordBlocked(string, string)           {}
func (Nop) SetOpenSessions(int)                    {}
