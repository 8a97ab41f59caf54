// Package telemetry - integration with the error handling system
package telemetry

import (
	"github.com/tphakala/audioload/internal/conf"
	"github.com/tphakala/audioload/internal/errors"
)

// InitializeErrorIntegration sets up the error package to use telemetry when enabled
func InitializeErrorIntegration() {
	settings := conf.GetSettings()
	enabled := settings != nil && settings.Sentry.Enabled

	reporter := errors.NewSentryReporter(enabled)
	errors.SetTelemetryReporter(reporter)

	errors.SetPrivacyScrubber(ScrubMessage)
}

// UpdateErrorIntegration updates the error integration when telemetry settings change
func UpdateErrorIntegration(enabled bool) {
	reporter := errors.NewSentryReporter(enabled)
	errors.SetTelemetryReporter(reporter)
}
