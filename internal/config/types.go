package config

import "time"

// Config holds all configuration for conduit.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Listeners   []ListenerConfig  `yaml:"listeners"`
	Dialers     []DialerConfig    `yaml:"dialers"`
	Engineering EngineeringConfig `yaml:"engineering"`
}

// ListenerConfig describes one accept-side endpoint: a network address
// to listen on, the LL transport it speaks, and the filter stacked on
// top of it.
type ListenerConfig struct {
	Name            string        `yaml:"name"`
	Network         string        `yaml:"network"` // "tcp" or "tls"
	Address         string        `yaml:"address"`
	Filter          string        `yaml:"filter"` // "passthrough", "secretbox", "telnet"
	TLS             TLSConfig     `yaml:"tls"`
	SecretboxKeyHex string        `yaml:"secretbox_key_hex"`
	TelnetOptions   []int         `yaml:"telnet_options"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DialerConfig describes one client-side endpoint: an address to dial,
// the LL transport, and the filter stacked on top of it.
type DialerConfig struct {
	Name            string        `yaml:"name"`
	Network         string        `yaml:"network"` // "tcp" or "tls"
	Address         string        `yaml:"address"`
	Filter          string        `yaml:"filter"`
	TLS             TLSConfig     `yaml:"tls"`
	SecretboxKeyHex string        `yaml:"secretbox_key_hex"`
	TelnetOptions   []int         `yaml:"telnet_options"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// TLSConfig configures the optional crypto/tls LL transport.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	CAFile             string `yaml:"ca_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	Theme  string `yaml:"theme"`
}

// EngineeringConfig holds development/debugging configuration.
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats"`

	// AcceptRateGlobalPerMinute/AcceptRatePerIPPerMinute cap inbound
	// connection acceptance; 0 disables the respective bucket.
	AcceptRateGlobalPerMinute int `yaml:"accept_rate_global_per_minute"`
	AcceptRatePerIPPerMinute  int `yaml:"accept_rate_per_ip_per_minute"`
	AcceptRateBurst           int `yaml:"accept_rate_burst"`
}
