// Package loader coordinates turning a content identifier into a decoded,
// in-memory audio buffer. It checks the buffer cache synchronously, issues
// asynchronous fetches on misses, cancels superseded requests and suppresses
// their stale results, and exposes a small observable state machine
// (idle/loading/loaded/errored) to its caller.
package loader

import (
	"context"
	"log/slog"

	"github.com/tphakala/audioload/internal/errors"
	"github.com/tphakala/audioload/internal/media"
	"github.com/tphakala/audioload/internal/observability/metrics"
)

// Cache is the synchronous buffer cache the coordinator reads from.
// Lookup must be non-blocking and side-effect-free; population is the
// fetch service's responsibility.
type Cache interface {
	Lookup(contentID string) (*media.Buffer, bool)
}

// Fetcher asynchronously retrieves and decodes audio content. It must honor
// ctx cancellation by aborting promptly and returning an error wrapping
// context.Canceled.
type Fetcher interface {
	Fetch(ctx context.Context, contentID string, forceRefresh bool) (*media.Buffer, error)
}

// FailureReporter is a fire-and-forget telemetry sink for fetch failures.
// Implementations must never block or panic into the caller.
type FailureReporter interface {
	ReportFailure(err error, component, identifier string)
}

// Phase is the coordinator's observable load state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseErrored
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Snapshot is the observable coordinator state. Buffer holds the last known
// good buffer; it stays available during an in-flight reload and is cleared
// only by a failed fetch or a cleared identifier.
type Snapshot struct {
	ContentID string
	Phase     Phase
	Buffer    *media.Buffer
	Err       error
}

// Loading reports whether a fetch is in flight.
func (s Snapshot) Loading() bool {
	return s.Phase == PhaseLoading
}

// Config holds the coordinator's injected collaborators.
type Config struct {
	Cache     Cache                  // required
	Fetcher   Fetcher                // required
	Reporter  FailureReporter        // optional telemetry sink
	Metrics   *metrics.LoaderMetrics // optional
	Logger    *slog.Logger           // optional
	Component string                 // telemetry component tag, defaults to "loader"

	// OnTransition, if set, is invoked after every observable state change
	// with the new snapshot. Called outside the coordinator lock.
	OnTransition func(Snapshot)
}

// validate checks that required collaborators are present.
func (c *Config) validate() error {
	if c.Cache == nil {
		return errors.Newf("loader requires a buffer cache").
			Category(errors.CategoryConfiguration).
			Component("loader").
			Build()
	}
	if c.Fetcher == nil {
		return errors.Newf("loader requires a fetch service").
			Category(errors.CategoryConfiguration).
			Component("loader").
			Build()
	}
	return nil
}
