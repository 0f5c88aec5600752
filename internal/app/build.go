package app

import (
	"crypto/tls"
	"encoding/hex"
	"fmt"

	"github.com/thushan/conduit/internal/adapter/filter"
	"github.com/thushan/conduit/internal/config"
	"github.com/thushan/conduit/internal/core/ports"
)

// buildFilter selects a filter implementation by name, grounded in
// internal/adapter/filter's three constructors. secretboxKeyHex must
// decode to exactly 32 bytes when filterName is "secretbox".
func buildFilter(filterName, secretboxKeyHex string, telnetOptions []int) (ports.Filter, error) {
	switch filterName {
	case "", "passthrough":
		return filter.NewPassthrough(), nil
	case "secretbox":
		raw, err := hex.DecodeString(secretboxKeyHex)
		if err != nil {
			return nil, fmt.Errorf("decoding secretbox_key_hex: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("secretbox_key_hex must decode to 32 bytes, got %d", len(raw))
		}
		var key [32]byte
		copy(key[:], raw)
		return filter.NewSecretbox(key), nil
	case "telnet":
		opts := make([]byte, len(telnetOptions))
		for i, o := range telnetOptions {
			opts[i] = byte(o)
		}
		return filter.NewTelnet(opts...), nil
	default:
		return nil, fmt.Errorf("unknown filter %q", filterName)
	}
}

// buildServerTLSConfig turns a TLSConfig into a *tls.Config suitable
// for a listener; nil (no TLS) if cfg is disabled.
func buildServerTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// buildClientTLSConfig turns a TLSConfig into a *tls.Config suitable
// for a dialer.
func buildClientTLSConfig(cfg config.TLSConfig) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in, not a default
		MinVersion:         tls.VersionTLS12,
	}
}
