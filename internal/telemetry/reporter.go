package telemetry

import (
	"log/slog"

	"github.com/tphakala/audioload/internal/errors"
)

// Reporter forwards load failures to the error telemetry pipeline. It
// satisfies the loader package's FailureReporter interface.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter creates a telemetry failure reporter. logger may be nil.
func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// ReportFailure reports a load failure tagged with the originating component
// and the content identifier. It is fire-and-forget: a panic in the
// telemetry pipeline is swallowed and must never affect the caller.
func (r *Reporter) ReportFailure(err error, component, identifier string) {
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Error("telemetry sink panicked", "panic", rec)
		}
	}()

	if err == nil {
		return
	}

	// Already-enhanced errors were reported when they were built
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		if enhanced.IsReported() {
			return
		}
		if reporter := errors.GetTelemetryReporter(); reporter != nil {
			reporter.ReportError(enhanced)
		}
		return
	}

	errors.New(err).
		Component(component).
		Context("content_id", identifier).
		Build()
}
