package app

import (
	"context"
	"fmt"
	"time"

	"github.com/thushan/conduit/internal/adapter/endpoint"
	"github.com/thushan/conduit/internal/adapter/transport"
	"github.com/thushan/conduit/internal/config"
	"github.com/thushan/conduit/internal/core/ports"
	"github.com/thushan/conduit/internal/util"
)

const (
	dialBackoffBase   = 250 * time.Millisecond
	dialBackoffMax    = 30 * time.Second
	dialBackoffJitter = 0.2
)

// startDialer builds one client endpoint for dc and opens it. Opening
// is asynchronous (transport.DialTCP/DialTLS connect in the
// background); startDialer returns as soon as the endpoint has been
// constructed and Open has been called.
func (a *Application) startDialer(ctx context.Context, dc config.DialerConfig) error {
	flt, err := buildFilter(dc.Filter, dc.SecretboxKeyHex, dc.TelnetOptions)
	if err != nil {
		return err
	}

	var stream *transport.Stream
	switch dc.Network {
	case "tcp", "":
		stream = transport.DialTCP(dc.Address)
	case "tls":
		stream = transport.DialTLS(dc.Address, buildClientTLSConfig(dc.TLS))
	default:
		return fmt.Errorf("dialer %q: unknown network %q", dc.Name, dc.Network)
	}

	var ep ports.StreamEndpoint
	ep = endpoint.New(a.host, stream, flt, ports.Callbacks{
		Read: func(err error, buf []byte) int {
			if err != nil {
				a.publish(dc.Name, "dialer", ep, err)
				return 0
			}
			return len(buf)
		},
	})

	a.registerEndpoint(dc.Name, ep)

	attempt := 0
	var onOpenDone func(err error)
	onOpenDone = func(err error) {
		a.publish(dc.Name, "dialer", ep, err)
		if err == nil {
			attempt = 0
			a.logger.Info("dialer connected", "name", dc.Name, "address", dc.Address)
			return
		}
		attempt++
		delay := util.CalculateExponentialBackoff(attempt, dialBackoffBase, dialBackoffMax, dialBackoffJitter)
		a.logger.Warn("dialer open failed, retrying", "name", dc.Name, "error", err, "attempt", attempt, "retry_in", delay)
		a.scheduleRedial(ctx, delay, func() {
			if reopenErr := ep.Open(onOpenDone); reopenErr != nil {
				a.logger.Warn("dialer reopen rejected", "name", dc.Name, "error", reopenErr)
			}
		})
	}

	if err := ep.Open(onOpenDone); err != nil {
		return err
	}

	a.publish(dc.Name, "dialer", ep, nil)
	return nil
}

// scheduleRedial runs fn after delay unless ctx is cancelled first.
func (a *Application) scheduleRedial(ctx context.Context, delay time.Duration, fn func()) {
	timer := a.host.NewTimer()
	timer.Start(delay, func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn()
		}
	})
}
