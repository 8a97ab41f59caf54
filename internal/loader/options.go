package loader

import "github.com/tphakala/audioload/internal/media"

// resolveOptions holds per-Resolve behavior. Defaults: enabled, no forced
// refresh, previously stored callbacks retained.
type resolveOptions struct {
	enabled      bool
	forceRefresh bool
	onSuccess    func(*media.Buffer)
	onError      func(error)
}

// ResolveOption customizes a single Resolve call.
type ResolveOption func(*resolveOptions)

func defaultResolveOptions() resolveOptions {
	return resolveOptions{enabled: true}
}

// WithForceRefresh skips the cache lookup and always calls the fetch service.
func WithForceRefresh() ResolveOption {
	return func(o *resolveOptions) { o.forceRefresh = true }
}

// WithDisabled makes the Resolve call a no-op: no cache check, no fetch,
// state stays whatever it was.
func WithDisabled() ResolveOption {
	return func(o *resolveOptions) { o.enabled = false }
}

// WithCallbacks stores completion callbacks invoked on the next loaded or
// errored transition. They replace previously stored callbacks and are
// reused by Reload. Either may be nil to keep the stored one.
func WithCallbacks(onSuccess func(*media.Buffer), onError func(error)) ResolveOption {
	return func(o *resolveOptions) {
		o.onSuccess = onSuccess
		o.onError = onError
	}
}
