package loader

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/audioload/internal/media"
)

// Coordinator is the audio-buffer load coordinator. At most one load request
// is active at any time; the active request is always the most recently
// issued one and is the only one allowed to mutate observable state.
// Superseded requests are cancelled immediately and their eventual results
// discarded, so last-writer-wins follows issuance order, not completion
// order. Safe for concurrent use.
type Coordinator struct {
	cfg       Config
	component string

	mu        sync.Mutex
	phase     Phase
	buffer    *media.Buffer
	err       error
	contentID string

	// token identifies the active request; a completion handler holding an
	// older token must discard its result. cancel is the exclusively owned
	// cancellation handle of the active request, nil when none is in flight.
	token  uint64
	cancel context.CancelFunc

	onSuccess func(*media.Buffer)
	onError   func(error)

	disposed bool
	inflight sync.WaitGroup
}

// New creates a load coordinator in the idle state.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	component := cfg.Component
	if component == "" {
		component = "loader"
	}
	return &Coordinator{
		cfg:       cfg,
		component: component,
		phase:     PhaseIdle,
	}, nil
}

// Resolve begins resolving a content identifier to an audio buffer.
//
// An empty identifier clears the coordinator: any outstanding request is
// cancelled and state transitions to idle. Otherwise the cache is checked
// synchronously first (unless WithForceRefresh is given); a hit resolves
// directly to loaded without passing through loading. On a miss a fetch is
// issued asynchronously, cancelling any previously outstanding request.
// Resolve on a disposed coordinator is a no-op.
func (c *Coordinator) Resolve(contentID string, opts ...ResolveOption) {
	o := defaultResolveOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c.resolve(contentID, &o)
}

func (c *Coordinator) resolve(contentID string, o *resolveOptions) {
	c.mu.Lock()

	if c.disposed {
		c.mu.Unlock()
		return
	}

	if contentID == "" {
		c.supersedeLocked()
		c.contentID = ""
		c.phase = PhaseIdle
		c.buffer = nil
		c.err = nil
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notifyTransition(snap)
		return
	}

	if !o.enabled {
		c.mu.Unlock()
		return
	}

	if o.onSuccess != nil {
		c.onSuccess = o.onSuccess
	}
	if o.onError != nil {
		c.onError = o.onError
	}
	c.contentID = contentID

	if !o.forceRefresh {
		if buf, ok := c.cfg.Cache.Lookup(contentID); ok {
			// Synchronous cache hit resolves directly to loaded, never
			// passing through loading.
			c.supersedeLocked()
			c.phase = PhaseLoaded
			c.buffer = buf
			c.err = nil
			onSuccess := c.onSuccess
			snap := c.snapshotLocked()
			c.mu.Unlock()

			if c.cfg.Metrics != nil {
				c.cfg.Metrics.IncrementCacheHits()
			}
			if c.cfg.Logger != nil {
				c.cfg.Logger.Debug("buffer cache hit", "content_id", contentID)
			}
			if onSuccess != nil {
				onSuccess(buf)
			}
			c.notifyTransition(snap)
			return
		}
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.IncrementCacheMisses()
		}
	}

	// Fetch path: the previous request loses ownership before the new one
	// is issued.
	token := c.supersedeLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.phase = PhaseLoading
	c.err = nil
	// Last known good buffer stays available during the fetch.
	snap := c.snapshotLocked()

	c.inflight.Add(1)
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.IncrementFetchStarts()
	}
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug("fetch started",
			"content_id", contentID,
			"force_refresh", o.forceRefresh)
	}
	c.notifyTransition(snap)

	go c.run(ctx, cancel, token, contentID, o.forceRefresh)
}

// run executes one load request and reconciles its outcome against the
// coordinator's current state. It runs in its own goroutine.
func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, token uint64, contentID string, forceRefresh bool) {
	defer c.inflight.Done()
	// Releases the context once the request is settled; harmless if the
	// coordinator already cancelled through its owned handle.
	defer cancel()

	start := time.Now()
	buf, err := c.cfg.Fetcher.Fetch(ctx, contentID, forceRefresh)
	elapsed := time.Since(start)

	c.mu.Lock()

	if c.disposed || c.token != token {
		// Superseded: the result is discarded without side effects,
		// whatever it was.
		c.mu.Unlock()
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.IncrementSupersessions()
		}
		if c.cfg.Logger != nil {
			c.cfg.Logger.Debug("stale fetch result discarded",
				"content_id", contentID,
				"err", err)
		}
		return
	}

	// This request is still active; its handle is spent. Every cancel the
	// coordinator issues advances the token first, so a token match means
	// this request was never cancelled and any error it carries is a real
	// failure, even one wrapping context.Canceled.
	c.cancel = nil

	if err != nil {
		c.phase = PhaseErrored
		c.err = err
		c.buffer = nil
		onError := c.onError
		snap := c.snapshotLocked()
		c.mu.Unlock()

		if c.cfg.Metrics != nil {
			c.cfg.Metrics.IncrementFetchErrors()
		}
		if c.cfg.Logger != nil {
			c.cfg.Logger.Error("fetch failed",
				"content_id", contentID,
				"error", err,
				"duration_ms", elapsed.Milliseconds())
		}
		if onError != nil {
			onError(err)
		}
		if c.cfg.Reporter != nil {
			c.cfg.Reporter.ReportFailure(err, c.component, contentID)
		}
		c.notifyTransition(snap)
		return
	}

	c.phase = PhaseLoaded
	c.buffer = buf
	c.err = nil
	onSuccess := c.onSuccess
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveFetchDuration(elapsed.Seconds())
	}
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug("fetch completed",
			"content_id", contentID,
			"duration_ms", elapsed.Milliseconds())
	}
	if onSuccess != nil {
		onSuccess(buf)
	}
	c.notifyTransition(snap)
}

// Reload re-resolves the current identifier with a forced refresh, reusing
// the stored callbacks. It is a no-op if no identifier is set.
func (c *Coordinator) Reload() {
	c.mu.Lock()
	if c.disposed || c.contentID == "" {
		c.mu.Unlock()
		return
	}
	contentID := c.contentID
	c.mu.Unlock()

	o := defaultResolveOptions()
	o.forceRefresh = true
	c.resolve(contentID, &o)
}

// Dispose cancels any outstanding request and makes the coordinator inert.
// The fetch service receives the cancellation signal so it can abort
// promptly and release transport resources. Dispose is idempotent.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.supersedeLocked()
	c.mu.Unlock()
}

// State returns the current observable state.
func (c *Coordinator) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// supersedeLocked cancels and discards the active request's cancellation
// handle, then advances the token so any in-flight completion goes stale.
// Returns the new token. Callers must hold c.mu.
func (c *Coordinator) supersedeLocked() uint64 {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.IncrementCancellations()
		}
	}
	c.token++
	return c.token
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		ContentID: c.contentID,
		Phase:     c.phase,
		Buffer:    c.buffer,
		Err:       c.err,
	}
}

func (c *Coordinator) notifyTransition(snap Snapshot) {
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(snap)
	}
}
