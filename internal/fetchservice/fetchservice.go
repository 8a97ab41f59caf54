// Package fetchservice retrieves and decodes audio content over HTTP.
package fetchservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tphakala/audioload/internal/buffercache"
	"github.com/tphakala/audioload/internal/errors"
	"github.com/tphakala/audioload/internal/httpclient"
	"github.com/tphakala/audioload/internal/media"
)

// maxBodySize caps how many encoded bytes a single fetch may read.
const maxBodySize = 256 * 1024 * 1024

// retryBackoffBase is the per-attempt backoff unit for transient failures.
const retryBackoffBase = 500 * time.Millisecond

// Config holds fetch service configuration.
type Config struct {
	BaseURL    string        // Base URL of the audio content endpoint
	Timeout    time.Duration // Per-request timeout
	MaxRetries int           // Retry attempts for transient failures
	UserAgent  string        // User-Agent for outbound requests
}

// Service fetches encoded audio by content identifier, decodes it and
// populates the buffer cache on success. Cancellation is cooperative via
// the request context: a cancelled fetch aborts the HTTP transfer and
// returns an error wrapping context.Canceled.
type Service struct {
	config    Config
	client    *httpclient.Client
	cache     *buffercache.Store
	logger    *slog.Logger
	retryBase time.Duration
}

// New creates a fetch service. cache may be nil to skip cache population;
// logger may be nil.
func New(cfg Config, cache *buffercache.Store, logger *slog.Logger) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Newf("fetch service base URL is required").
			Category(errors.CategoryConfiguration).
			Component("fetchservice").
			Build()
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Newf("invalid fetch service base URL: %w", err).
			Category(errors.CategoryConfiguration).
			Component("fetchservice").
			Build()
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	client := httpclient.New(&httpclient.Config{
		DefaultTimeout: cfg.Timeout,
		UserAgent:      cfg.UserAgent,
	})

	return &Service{
		config:    cfg,
		client:    client,
		cache:     cache,
		logger:    logger,
		retryBase: retryBackoffBase,
	}, nil
}

// Fetch retrieves and decodes the audio content for a content identifier.
// forceRefresh adds Cache-Control: no-cache so intermediary caches are
// bypassed as well. The decoded buffer is stored in the cache before return.
func (s *Service) Fetch(ctx context.Context, contentID string, forceRefresh bool) (*media.Buffer, error) {
	if contentID == "" {
		return nil, errors.Newf("content identifier is required").
			Category(errors.CategoryValidation).
			Component("fetchservice").
			Build()
	}

	start := time.Now()

	data, err := s.downloadWithRetry(ctx, contentID, forceRefresh)
	if err != nil {
		return nil, err
	}

	buf, err := media.DecodeWAV(contentID, data)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(contentID, buf)
	}

	if s.logger != nil {
		s.logger.Debug("audio content fetched",
			"content_id", contentID,
			"bytes", len(data),
			"samples", buf.Samples(),
			"duration_ms", time.Since(start).Milliseconds(),
			"force_refresh", forceRefresh)
	}

	return buf, nil
}

// downloadWithRetry wraps download with retry logic for transient failures.
// Decode errors never reach here; they are deterministic and not retryable.
func (s *Service) downloadWithRetry(ctx context.Context, contentID string, forceRefresh bool) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * s.retryBase
			if s.logger != nil {
				s.logger.Warn("audio fetch failed, retrying",
					"content_id", contentID,
					"attempt", attempt,
					"max_retries", s.config.MaxRetries,
					"delay_ms", delay.Milliseconds(),
					"error", lastErr)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch aborted for %q: %w", contentID, ctx.Err())
			}
		}

		data, err := s.download(ctx, contentID, forceRefresh)
		if err == nil {
			return data, nil
		}
		if !isRetryable(ctx, err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// isRetryable reports whether a download failure is worth another attempt.
// Cancellation, missing content and client-side errors are final.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		switch enhanced.Category {
		case errors.CategoryNotFound, errors.CategoryValidation, errors.CategoryConfiguration:
			return false
		}
		if code, ok := enhanced.Context["status_code"].(int); ok {
			if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
				return false
			}
		}
	}

	return true
}

// download performs the HTTP transfer for a content identifier.
func (s *Service) download(ctx context.Context, contentID string, forceRefresh bool) ([]byte, error) {
	fetchURL := s.contentURL(contentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create fetch request: %w", err).
			Category(errors.CategoryNetwork).
			Component("fetchservice").
			Context("content_id", contentID).
			Build()
	}
	req.Header.Set("Accept", "audio/wav, audio/x-wav")
	if forceRefresh {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		// Cancellation is expected control flow, keep it distinguishable
		// and out of telemetry.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch aborted for %q: %w", contentID, ctxErr)
		}
		return nil, errors.Newf("fetch request failed: %w", err).
			Category(errors.CategoryNetwork).
			Component("fetchservice").
			Context("content_id", contentID).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && s.logger != nil {
			s.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("audio content fetch returned status %d", resp.StatusCode).
			Category(statusCategory(resp.StatusCode)).
			Component("fetchservice").
			Context("content_id", contentID).
			Context("status_code", resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch aborted for %q: %w", contentID, ctxErr)
		}
		return nil, errors.Newf("failed to read audio content: %w", err).
			Category(errors.CategoryNetwork).
			Component("fetchservice").
			Context("content_id", contentID).
			Build()
	}
	if len(data) > maxBodySize {
		return nil, errors.Newf("audio content exceeds %d byte limit", maxBodySize).
			Category(errors.CategoryValidation).
			Component("fetchservice").
			Context("content_id", contentID).
			Build()
	}

	return data, nil
}

// contentURL builds the fetch URL for a content identifier.
func (s *Service) contentURL(contentID string) string {
	base := strings.TrimRight(s.config.BaseURL, "/")
	return base + "/" + url.PathEscape(contentID)
}

// Close releases idle transport connections.
func (s *Service) Close() {
	s.client.Close()
}

// statusCategory maps an HTTP status code to an error category.
func statusCategory(statusCode int) errors.ErrorCategory {
	switch {
	case statusCode == http.StatusNotFound:
		return errors.CategoryNotFound
	case statusCode >= 500:
		return errors.CategoryNetwork
	default:
		return errors.CategoryAudioFetch
	}
}
