package search

import "sync/atomic"

// Session is the per-connection search state. It is owned by exactly
// one connection; the cancellation flag is the only field another
// goroutine touches, which is why it is atomic. Cancellation is
// cooperative: the scan consults the flag between files and between
// lines, it never interrupts an in-flight read.
type Session struct {
	cancelled atomic.Bool
}

// NewSession creates a session with the cancellation flag cleared.
func NewSession() *Session {
	return &Session{}
}

// Cancel marks the session cancelled. Safe to call from any goroutine
// and more than once.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}
