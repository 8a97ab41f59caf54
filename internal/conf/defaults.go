package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for all settings
func setDefaultConfig() {
	// Main defaults
	viper.SetDefault("main.name", "audioload")
	viper.SetDefault("main.debug", false)
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/audioload.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	// Fetch service defaults
	viper.SetDefault("fetch.baseurl", "http://localhost:8090/audio")
	viper.SetDefault("fetch.timeout", 30*time.Second)
	viper.SetDefault("fetch.maxretries", 3)
	viper.SetDefault("fetch.useragent", "audioload")

	// Buffer cache defaults
	viper.SetDefault("cache.ttl", 15*time.Minute)
	viper.SetDefault("cache.cleanupinterval", 30*time.Minute)

	// Sentry telemetry defaults, disabled unless explicitly opted in
	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)
}
