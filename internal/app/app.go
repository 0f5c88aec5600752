// Package app wires conduit's ambient stack (config, logging, host
// services) to the endpoint engine: it turns a config.Config into a
// running set of listeners and dialers, and tears them down again on
// Stop.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thushan/conduit/internal/config"
	"github.com/thushan/conduit/internal/core/ports"
	"github.com/thushan/conduit/internal/logger"
	"github.com/thushan/conduit/internal/runtime"
	"github.com/thushan/conduit/pkg/container"
	"github.com/thushan/conduit/pkg/eventbus"
)

// Application owns every listener and dialer built from a config.Config
// and the host services they share.
type Application struct {
	cfg    *config.Config
	logger *logger.StyledLogger
	host   ports.HostServices
	bus    *eventbus.EventBus[LifecycleEvent]

	acceptLimiter *AcceptLimiter

	mu        sync.Mutex
	endpoints map[string]ports.StreamEndpoint
	listeners map[string]*activeListener

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs an Application from a loaded config. It does not open
// any sockets yet; call Start for that.
func New(cfg *config.Config, log *logger.StyledLogger) (*Application, error) {
	eng := cfg.Engineering
	return &Application{
		cfg:    cfg,
		logger: log,
		host:   runtime.NewServices(),
		bus:    newEventBus(),
		acceptLimiter: NewAcceptLimiter(
			eng.AcceptRateGlobalPerMinute,
			eng.AcceptRatePerIPPerMinute,
			eng.AcceptRateBurst,
			log,
		),
		endpoints: make(map[string]ports.StreamEndpoint),
		listeners: make(map[string]*activeListener),
	}, nil
}

// Start opens every configured listener and fires off every configured
// dialer. It returns once all listeners are accepting (dialers connect
// in the background, since a remote peer may not be up yet).
func (a *Application) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	a.group = group

	if container.IsContainerised() {
		a.logger.Info("running inside a container")
	}

	for i := range a.cfg.Listeners {
		lc := a.cfg.Listeners[i]
		al, err := a.startListener(groupCtx, lc)
		if err != nil {
			cancel()
			return fmt.Errorf("starting listener %q: %w", lc.Name, err)
		}
		a.mu.Lock()
		a.listeners[lc.Name] = al
		a.mu.Unlock()
	}

	for i := range a.cfg.Dialers {
		dc := a.cfg.Dialers[i]
		if err := a.startDialer(groupCtx, dc); err != nil {
			a.logger.Error("dialer failed to start", "name", dc.Name, "error", err)
		}
	}

	a.logger.Info("conduit started", "listeners", len(a.cfg.Listeners), "dialers", len(a.cfg.Dialers))
	return nil
}

// Stop closes every listener and dialer endpoint, waiting up to 10s
// for each to finish. A listener's ShutdownTimeout setting is not
// consulted.
func (a *Application) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	listeners := make([]*activeListener, 0, len(a.listeners))
	for _, al := range a.listeners {
		listeners = append(listeners, al)
	}
	endpoints := make(map[string]ports.StreamEndpoint, len(a.endpoints))
	for k, v := range a.endpoints {
		endpoints[k] = v
	}
	a.mu.Unlock()

	for _, al := range listeners {
		_ = al.listener.Close()
	}

	var wg sync.WaitGroup
	for name, ep := range endpoints {
		wg.Add(1)
		go func(name string, ep ports.StreamEndpoint) {
			defer wg.Done()
			done := make(chan struct{})
			if err := ep.Close(func() { close(done) }); err != nil {
				a.logger.Warn("endpoint close rejected", "name", name, "error", err)
				return
			}
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				a.logger.Warn("endpoint close timed out", "name", name)
			}
		}(name, ep)
	}
	wg.Wait()

	if a.group != nil {
		_ = a.group.Wait()
	}
	a.bus.Shutdown()
	a.acceptLimiter.Stop()

	a.logger.Info("conduit stopped")
	return nil
}

// Subscribe exposes the application's lifecycle event stream (used by
// the TUI dashboard).
func (a *Application) Subscribe(ctx context.Context) (<-chan LifecycleEvent, func()) {
	return a.bus.Subscribe(ctx)
}

func (a *Application) registerEndpoint(name string, ep ports.StreamEndpoint) {
	a.mu.Lock()
	a.endpoints[name] = ep
	a.mu.Unlock()
}

func (a *Application) publish(name, direction string, state ports.StreamEndpoint, err error) {
	a.bus.Publish(LifecycleEvent{
		Name:      name,
		Direction: direction,
		RemoteID:  state.RemoteID(),
		State:     state.State(),
		Err:       err,
		At:        time.Now(),
	})
}
