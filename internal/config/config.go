package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultConnectTimeout  = 10 * time.Second

	DefaultFileWriteDelay = 150 * time.Millisecond // Small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults: no
// listeners or dialers configured, a passthrough-friendly logging
// setup.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			Theme:  "default",
		},
		Listeners: []ListenerConfig{},
		Dialers:   []DialerConfig{},
		Engineering: EngineeringConfig{
			AcceptRateBurst: 100,
		},
	}
}

// Load loads configuration from file and environment variables,
// registering onConfigChange to fire (after a debounce) when the
// config file is edited on disk.
func Load(onConfigChange func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("CONDUIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// AutomaticEnv only overrides keys viper already knows about, so
	// register the defaults' keys for Unmarshal to see env values.
	viper.SetDefault("logging.level", config.Logging.Level)
	viper.SetDefault("logging.format", config.Logging.Format)
	viper.SetDefault("logging.output", config.Logging.Output)
	viper.SetDefault("logging.theme", config.Logging.Theme)
	viper.SetDefault("engineering.shownerdstats", config.Engineering.ShowNerdStats)
	viper.SetDefault("engineering.acceptrateglobalperminute", config.Engineering.AcceptRateGlobalPerMinute)
	viper.SetDefault("engineering.acceptrateperipperminute", config.Engineering.AcceptRatePerIPPerMinute)
	viper.SetDefault("engineering.acceptrateburst", config.Engineering.AcceptRateBurst)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("CONDUIT_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			// lame debounce to avoid rapid-fire reloads
			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // Ignore miultiple rapid changes
			}
			lastReload = now

			// looks like on windows this event is triggered
			// before the file is fully written, not sure why
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return config, nil
}
