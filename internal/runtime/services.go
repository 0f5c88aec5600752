package runtime

import "github.com/thushan/conduit/internal/core/ports"

// Services is the default ports.HostServices: every Endpoint built by
// this repo is given one of these (or a fake, in tests).
type Services struct{}

func NewServices() Services { return Services{} }

func (Services) NewLock() ports.Lock     { return NewLock() }
func (Services) NewTimer() ports.Timer   { return NewTimer() }
func (Services) NewRunner() ports.Runner { return NewRunner() }

var (
	_ ports.HostServices = Services{}
	_ ports.Lock         = (*Lock)(nil)
	_ ports.Timer        = (*Timer)(nil)
	_ ports.Runner       = (*Runner)(nil)
)
