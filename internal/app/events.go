package app

import (
	"time"

	"github.com/thushan/conduit/internal/core/domain"
	"github.com/thushan/conduit/pkg/eventbus"
)

// LifecycleEvent is published whenever one of the application's
// endpoints changes state (open/close/error), so the TUI dashboard and
// the structured logger can both observe it without the endpoint
// engine itself knowing either exists.
type LifecycleEvent struct {
	Name      string
	Direction string // "listener" or "dialer"
	RemoteID  string
	State     domain.State
	Err       error
	At        time.Time
}

func newEventBus() *eventbus.EventBus[LifecycleEvent] {
	return eventbus.New[LifecycleEvent]()
}
