// Package conf handles loading and access of application settings.
package conf

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Log rotation types
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // Path to log file
	Rotation RotationType // Log rotation type
	MaxSize  int64        // Max size in bytes for RotationSize
}

// MainSettings contains process-wide settings
type MainSettings struct {
	Name  string    // name of this node, can be used to identify source of notes
	Debug bool      // Enable debug mode
	Log   LogConfig // Main log configuration
}

// FetchSettings contains the audio fetch service configuration
type FetchSettings struct {
	BaseURL    string        // Base URL of the audio content endpoint
	Timeout    time.Duration // Per-request timeout
	MaxRetries int           // Retry attempts for transient failures
	UserAgent  string        // User-Agent header for outbound requests
}

// CacheSettings contains the in-memory buffer cache configuration
type CacheSettings struct {
	TTL             time.Duration // How long decoded buffers stay cached
	CleanupInterval time.Duration // How often expired entries are purged
}

// SentrySettings contains telemetry reporting configuration
type SentrySettings struct {
	Enabled bool   // true to enable Sentry error telemetry
	DSN     string // Sentry DSN, empty uses the project default
	Debug   bool   // Enable Sentry SDK debug logging
}

// Settings contains all runtime settings
type Settings struct {
	Main   MainSettings
	Fetch  FetchSettings
	Cache  CacheSettings
	Sentry SentrySettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into the global settings instance.
// It is safe to call multiple times; the file is only read once.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	initViper()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets up viper with config file search paths, env binding and defaults
func initViper() {
	viper.SetConfigName("audioload")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/audioload")
	viper.AddConfigPath("/etc/audioload")

	viper.SetEnvPrefix("AUDIOLOAD")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("error reading config file: %v", err)
		}
		// Missing config file is fine, defaults apply
	}
}

// Setting returns the current settings instance, loading defaults if needed.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetSettings returns the current settings instance without forcing a load.
// Returns nil if Load has not been called.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the global settings instance. Intended for tests.
func SetSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
