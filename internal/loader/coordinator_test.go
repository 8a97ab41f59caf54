package loader

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audioload/internal/media"
	"github.com/tphakala/audioload/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testTimeout = 5 * time.Second

// fakeCache is a map-backed Cache with a call counter.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*media.Buffer
	lookups int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*media.Buffer)}
}

func (c *fakeCache) Lookup(contentID string) (*media.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	buf, ok := c.entries[contentID]
	return buf, ok
}

func (c *fakeCache) put(contentID string, buf *media.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contentID] = buf
}

// fetchResult is what a test feeds back to an in-flight fake fetch.
type fetchResult struct {
	buf *media.Buffer
	err error
}

// fetchCall is one recorded invocation of the fake fetcher. The fetch blocks
// until the test responds or the request context is cancelled.
type fetchCall struct {
	contentID    string
	forceRefresh bool
	ctx          context.Context
	respond      chan fetchResult
}

// fakeFetcher records calls and lets tests control completion order.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan *fetchCall
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{started: make(chan *fetchCall, 16)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, contentID string, forceRefresh bool) (*media.Buffer, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	call := &fetchCall{
		contentID:    contentID,
		forceRefresh: forceRefresh,
		ctx:          ctx,
		respond:      make(chan fetchResult, 1),
	}
	f.started <- call

	select {
	case res := <-call.respond:
		return res.buf, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch aborted for %q: %w", contentID, ctx.Err())
	}
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// awaitCall waits for the fetcher to receive a call.
func (f *fakeFetcher) awaitCall(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case call := <-f.started:
		return call
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for fetch call")
		return nil
	}
}

// recordingReporter captures telemetry sink invocations.
type recordingReporter struct {
	mu      sync.Mutex
	reports []reportedFailure
}

type reportedFailure struct {
	err        error
	component  string
	identifier string
}

func (r *recordingReporter) ReportFailure(err error, component, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, reportedFailure{err, component, identifier})
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// callbackRecorder tracks onSuccess/onError invocations.
type callbackRecorder struct {
	mu        sync.Mutex
	successes []*media.Buffer
	errors    []error
}

func (r *callbackRecorder) onSuccess(buf *media.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, buf)
}

func (r *callbackRecorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *callbackRecorder) successCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes)
}

func (r *callbackRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func testBuffer(contentID string) *media.Buffer {
	return &media.Buffer{
		ContentID:   contentID,
		Data:        make([]float32, 4800),
		SampleRate:  48000,
		NumChannels: 1,
		BitDepth:    16,
		DecodedAt:   time.Now(),
	}
}

type testFixture struct {
	cache    *fakeCache
	fetcher  *fakeFetcher
	reporter *recordingReporter
	recorder *callbackRecorder
	coord    *Coordinator
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		cache:    newFakeCache(),
		fetcher:  newFakeFetcher(),
		reporter: &recordingReporter{},
		recorder: &callbackRecorder{},
	}
	coord, err := New(Config{
		Cache:    f.cache,
		Fetcher:  f.fetcher,
		Reporter: f.reporter,
	})
	require.NoError(t, err)
	f.coord = coord
	t.Cleanup(func() {
		coord.Dispose()
		coord.inflight.Wait()
	})
	return f
}

func (f *testFixture) callbacks() ResolveOption {
	return WithCallbacks(f.recorder.onSuccess, f.recorder.onError)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Fetcher: newFakeFetcher()})
	require.Error(t, err)

	_, err = New(Config{Cache: newFakeCache()})
	require.Error(t, err)

	coord, err := New(Config{Cache: newFakeCache(), Fetcher: newFakeFetcher()})
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, coord.State().Phase)
}

func TestResolve_CacheHitShortCircuits(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	buf := testBuffer("x1")
	f.cache.put("x1", buf)

	f.coord.Resolve("x1", f.callbacks())

	// Resolved synchronously: loaded, never loading, no fetch call
	snap := f.coord.State()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.False(t, snap.Loading())
	assert.Same(t, buf, snap.Buffer)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 0, f.fetcher.callCount())
	assert.Equal(t, 1, f.recorder.successCount())
	assert.Equal(t, 0, f.recorder.errorCount())
}

func TestResolve_CacheHitNeverObservesLoading(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.cache.put("x1", testBuffer("x1"))

	var observedLoading bool
	coord, err := New(Config{
		Cache:   f.cache,
		Fetcher: f.fetcher,
		OnTransition: func(snap Snapshot) {
			if snap.Loading() {
				observedLoading = true
			}
		},
	})
	require.NoError(t, err)
	defer coord.Dispose()

	coord.Resolve("x1")

	assert.False(t, observedLoading)
	assert.Equal(t, PhaseLoaded, coord.State().Phase)
}

func TestResolve_CacheMissFetches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x2", f.callbacks())

	snap := f.coord.State()
	assert.Equal(t, PhaseLoading, snap.Phase)
	assert.True(t, snap.Loading())

	call := f.fetcher.awaitCall(t)
	assert.Equal(t, "x2", call.contentID)
	assert.False(t, call.forceRefresh)

	buf := testBuffer("x2")
	call.respond <- fetchResult{buf: buf}
	f.coord.inflight.Wait()

	snap = f.coord.State()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Same(t, buf, snap.Buffer)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 1, f.recorder.successCount())
	assert.Equal(t, 0, f.recorder.errorCount())
}

func TestResolve_SupersededResultDiscarded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("a", f.callbacks())
	callA := f.fetcher.awaitCall(t)

	f.coord.Resolve("b")
	callB := f.fetcher.awaitCall(t)

	// The superseded request was cancelled, not merely ignored
	select {
	case <-callA.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("superseded request context was not cancelled")
	}

	bufB := testBuffer("b")
	callB.respond <- fetchResult{buf: bufB}

	// The slow stale request completes successfully afterwards
	bufA := testBuffer("a")
	callA.respond <- fetchResult{buf: bufA}
	f.coord.inflight.Wait()

	snap := f.coord.State()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Same(t, bufB, snap.Buffer, "stale result must not overwrite the fresh one")
	assert.Equal(t, "b", snap.ContentID)
}

func TestResolve_CompletionOrderDoesNotWin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("a")
	callA := f.fetcher.awaitCall(t)
	f.coord.Resolve("b")
	callB := f.fetcher.awaitCall(t)

	// Old request finishes first, new one later: issuance order still wins
	callA.respond <- fetchResult{buf: testBuffer("a")}
	bufB := testBuffer("b")
	callB.respond <- fetchResult{buf: bufB}
	f.coord.inflight.Wait()

	assert.Same(t, bufB, f.coord.State().Buffer)
}

func TestResolve_CancellationIsSilent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x3", f.callbacks())
	call := f.fetcher.awaitCall(t)

	// Clearing the identifier cancels the outstanding request
	f.coord.Resolve("")

	select {
	case <-call.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("outstanding request context was not cancelled")
	}
	f.coord.inflight.Wait()

	snap := f.coord.State()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 0, f.recorder.errorCount())
	assert.Equal(t, 0, f.reporter.count(), "cancellation must not reach telemetry")
}

func TestResolve_ForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.cache.put("x4", testBuffer("x4"))

	f.coord.Resolve("x4", WithForceRefresh())

	call := f.fetcher.awaitCall(t)
	assert.True(t, call.forceRefresh)
	assert.Equal(t, PhaseLoading, f.coord.State().Phase)

	call.respond <- fetchResult{buf: testBuffer("x4")}
	f.coord.inflight.Wait()
	assert.Equal(t, PhaseLoaded, f.coord.State().Phase)
}

func TestResolve_AbsentIdentifierClearsState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.cache.put("x1", testBuffer("x1"))
	f.coord.Resolve("x1")
	require.Equal(t, PhaseLoaded, f.coord.State().Phase)

	f.coord.Resolve("")

	snap := f.coord.State()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Buffer)
	assert.NoError(t, snap.Err)
	assert.Empty(t, snap.ContentID)
}

func TestResolve_DisabledDoesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.cache.put("x1", testBuffer("x1"))
	f.coord.Resolve("x1")
	require.Equal(t, PhaseLoaded, f.coord.State().Phase)

	f.coord.Resolve("x9", WithDisabled())

	// No cache check, no fetch, state untouched
	snap := f.coord.State()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Equal(t, "x1", snap.ContentID)
	assert.Equal(t, 0, f.fetcher.callCount())
}

func TestResolve_FetchFailureReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x5", f.callbacks())
	call := f.fetcher.awaitCall(t)

	fetchErr := fmt.Errorf("network error")
	call.respond <- fetchResult{err: fetchErr}
	f.coord.inflight.Wait()

	snap := f.coord.State()
	assert.Equal(t, PhaseErrored, snap.Phase)
	require.Error(t, snap.Err)
	assert.Contains(t, snap.Err.Error(), "network error")
	assert.Nil(t, snap.Buffer)

	require.Equal(t, 1, f.recorder.errorCount())
	require.Equal(t, 1, f.reporter.count())
	report := f.reporter.reports[0]
	assert.Equal(t, "loader", report.component)
	assert.Equal(t, "x5", report.identifier)
}

func TestResolve_StaleErrorDiscarded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("a", f.callbacks())
	callA := f.fetcher.awaitCall(t)
	f.coord.Resolve("b")
	callB := f.fetcher.awaitCall(t)

	bufB := testBuffer("b")
	callB.respond <- fetchResult{buf: bufB}
	callA.respond <- fetchResult{err: fmt.Errorf("too late")}
	f.coord.inflight.Wait()

	snap := f.coord.State()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Same(t, bufB, snap.Buffer)
	assert.Equal(t, 0, f.recorder.errorCount())
	assert.Equal(t, 0, f.reporter.count())
}

func TestReload_ForcesFetchAndSupersedes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x6", f.callbacks())
	first := f.fetcher.awaitCall(t)

	// Cache fills in the meantime; reload must still hit the fetch service
	f.cache.put("x6", testBuffer("x6"))

	f.coord.Reload()
	second := f.fetcher.awaitCall(t)
	assert.True(t, second.forceRefresh)

	select {
	case <-first.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("first request was not cancelled by reload")
	}

	buf := testBuffer("x6")
	second.respond <- fetchResult{buf: buf}
	f.coord.inflight.Wait()

	snap := f.coord.State()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Same(t, buf, snap.Buffer)
	// Stored callbacks were reused by Reload
	assert.Equal(t, 1, f.recorder.successCount())
}

func TestReload_NoIdentifierIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Reload()

	assert.Equal(t, PhaseIdle, f.coord.State().Phase)
	assert.Equal(t, 0, f.fetcher.callCount())
}

func TestReload_KeepsLastGoodBufferWhileLoading(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	buf := testBuffer("x7")
	f.cache.put("x7", buf)
	f.coord.Resolve("x7")
	require.Same(t, buf, f.coord.State().Buffer)

	f.coord.Reload()
	call := f.fetcher.awaitCall(t)

	// In-flight reload does not clear the previously loaded buffer
	snap := f.coord.State()
	assert.Equal(t, PhaseLoading, snap.Phase)
	assert.Same(t, buf, snap.Buffer)

	// A failed fetch does clear it
	call.respond <- fetchResult{err: fmt.Errorf("gone")}
	f.coord.inflight.Wait()
	snap = f.coord.State()
	assert.Equal(t, PhaseErrored, snap.Phase)
	assert.Nil(t, snap.Buffer)
}

func TestDispose_CancelsOutstanding(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x8", f.callbacks())
	call := f.fetcher.awaitCall(t)

	f.coord.Dispose()

	select {
	case <-call.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("dispose did not cancel the outstanding request")
	}
	f.coord.inflight.Wait()

	assert.Equal(t, 0, f.recorder.errorCount())
	assert.Equal(t, 0, f.reporter.count())
}

func TestDispose_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x8")
	call := f.fetcher.awaitCall(t)

	f.coord.Dispose()
	f.coord.Dispose()

	<-call.ctx.Done()
	f.coord.inflight.Wait()

	// No outstanding cancellation handle remains
	f.coord.mu.Lock()
	assert.Nil(t, f.coord.cancel)
	f.coord.mu.Unlock()
}

func TestResolve_AfterDisposeIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Dispose()
	f.coord.Resolve("x9")

	assert.Equal(t, 0, f.fetcher.callCount())
	assert.Equal(t, PhaseIdle, f.coord.State().Phase)
}

func TestResolve_CanceledErrorWhileActiveIsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x11", f.callbacks())
	call := f.fetcher.awaitCall(t)

	// The fetcher aborts on its own with an error wrapping context.Canceled
	// while the coordinator never cancelled anything. That is a real
	// failure, not a cancellation, and must surface like any other error.
	call.respond <- fetchResult{err: fmt.Errorf("fetch aborted for %q: %w", "x11", context.Canceled)}
	f.coord.inflight.Wait()

	snap := f.coord.State()
	assert.Equal(t, PhaseErrored, snap.Phase)
	require.Error(t, snap.Err)
	assert.Equal(t, 1, f.recorder.errorCount())
	assert.Equal(t, 1, f.reporter.count())
}

func TestMetrics_CancellationsCountedAtSupersede(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewLoaderMetrics(registry)
	require.NoError(t, err)

	cache := newFakeCache()
	fetcher := newFakeFetcher()
	coord, err := New(Config{Cache: cache, Fetcher: fetcher, Metrics: m})
	require.NoError(t, err)

	coord.Resolve("a")
	call := fetcher.awaitCall(t)

	// Clearing the identifier cancels the in-flight request
	coord.Resolve("")
	select {
	case <-call.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("in-flight request was not cancelled")
	}
	coord.inflight.Wait()

	assert.InDelta(t, 1, testutil.ToFloat64(m.Cancellations), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Supersessions), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FetchStarts), 0)

	// Dispose with nothing in flight adds no cancellation
	coord.Dispose()
	coord.Dispose()
	assert.InDelta(t, 1, testutil.ToFloat64(m.Cancellations), 0)
}

func TestResolve_SameIdentifierNotDeduplicated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.coord.Resolve("x10")
	first := f.fetcher.awaitCall(t)

	// A second resolve for the same identifier starts a fresh request
	f.coord.Resolve("x10")
	second := f.fetcher.awaitCall(t)

	select {
	case <-first.ctx.Done():
	case <-time.After(testTimeout):
		t.Fatal("first request was not cancelled")
	}

	buf := testBuffer("x10")
	second.respond <- fetchResult{buf: buf}
	f.coord.inflight.Wait()

	assert.Same(t, buf, f.coord.State().Buffer)
	assert.Equal(t, 2, f.fetcher.callCount())
}
