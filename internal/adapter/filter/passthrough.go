// Package filter provides the ports.Filter implementations this repo
// ships: a no-op passthrough, an authenticated-encryption filter, and a
// telnet option-negotiation filter (spec.md §6).
package filter

import (
	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/internal/core/ports"
)

// Passthrough is the explicit "no filter" (genio's own filter_ul_write/
// filter_ll_write fall straight through to handler when no filter is
// installed; this repo always installs one, so Passthrough gives the
// engine one code path instead of a nil check everywhere).
type Passthrough struct{}

// NewPassthrough returns a Passthrough filter, ready to use.
func NewPassthrough() *Passthrough { return &Passthrough{} }

func (*Passthrough) Setup() error { return nil }
func (*Passthrough) Cleanup()     {}

func (*Passthrough) ULReadPending() bool  { return false }
func (*Passthrough) LLWritePending() bool { return false }
func (*Passthrough) LLReadNeeded() bool   { return false }

func (*Passthrough) CheckOpenDone() error { return nil }

func (*Passthrough) TryConnect() domain.ConnectResult    { return domain.Done() }
func (*Passthrough) TryDisconnect() domain.ConnectResult { return domain.Done() }

func (*Passthrough) ULWrite(handler ports.ULHandler, buf []byte) (int, error) {
	return handler(buf)
}

func (*Passthrough) LLWrite(handler ports.LLHandler, buf []byte) (int, error) {
	return handler(buf)
}

func (*Passthrough) LLUrgent() {}

func (*Passthrough) HasTimeout() bool { return false }
func (*Passthrough) Timeout()         {}

func (*Passthrough) SetCallbacks(ports.FilterCallbacks) {}

var _ ports.Filter = (*Passthrough)(nil)
