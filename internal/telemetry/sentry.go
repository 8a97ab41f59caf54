// Package telemetry provides privacy-compliant error tracking and telemetry
package telemetry

import (
	"log"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/tphakala/audioload/internal/buildinfo"
	"github.com/tphakala/audioload/internal/conf"
)

// PlatformInfo holds privacy-safe platform information for telemetry
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

// collectPlatformInfo gathers privacy-safe platform information for telemetry
func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK with privacy-compliant settings.
// It only initializes Sentry if explicitly enabled by the user (opt-in).
func InitSentry(settings *conf.Settings) error {
	if !settings.Sentry.Enabled {
		log.Println("Sentry telemetry is disabled (opt-in required)")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		Release:          buildinfo.Version,
		SampleRate:       1.0,
		Debug:            settings.Sentry.Debug,
		AttachStacktrace: false, // Stack traces may contain file paths
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Strip server identity, keep platform facts only
			event.ServerName = ""
			event.User = sentry.User{}
			for i := range event.Exception {
				event.Exception[i].Value = ScrubMessage(event.Exception[i].Value)
			}
			event.Message = ScrubMessage(event.Message)
			return event
		},
	})
	if err != nil {
		return err
	}

	configureSentryScope(settings)

	log.Printf("Sentry telemetry initialized (node: %s)", settings.Main.Name)
	return nil
}

// configureSentryScope adds privacy-safe platform context to the global scope
func configureSentryScope(settings *conf.Settings) {
	info := collectPlatformInfo()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("node_name", settings.Main.Name)
		scope.SetContext("platform", map[string]any{
			"os":         info.OS,
			"arch":       info.Architecture,
			"num_cpu":    info.NumCPU,
			"go_version": info.GoVersion,
		})
	})
}

// Flush waits for buffered telemetry events to be sent, up to the timeout.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
