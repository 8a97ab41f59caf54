package telemetry

import (
	"regexp"
)

var (
	// URLs with query strings may carry signed tokens
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	// Bearer tokens and API keys in message text
	tokenPattern = regexp.MustCompile(`(?i)(api[_-]?key|token|auth|secret)[=:]\S+`)
	// Long hex strings are likely keys or session identifiers
	hexPattern = regexp.MustCompile(`[0-9a-fA-F]{32,}`)
)

// ScrubMessage removes URLs with query parameters, tokens and key-like hex
// strings from telemetry messages before they leave the process.
func ScrubMessage(message string) string {
	scrubbed := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = tokenPattern.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	scrubbed = hexPattern.ReplaceAllString(scrubbed, "[REDACTED]")
	return scrubbed
}
