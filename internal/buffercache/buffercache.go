// Package buffercache provides the in-memory store for decoded audio buffers.
package buffercache

import (
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/audioload/internal/media"
)

// Store maps a content identifier to a previously decoded audio buffer.
// Lookup is synchronous and non-blocking; population happens as a side
// effect of successful fetches performed by the fetch service.
type Store struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// Config holds buffer cache configuration.
type Config struct {
	TTL             time.Duration // How long entries stay cached
	CleanupInterval time.Duration // How often expired entries are purged
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:             15 * time.Minute,
		CleanupInterval: 30 * time.Minute,
	}
}

// New creates a buffer cache store. logger may be nil.
func New(cfg Config, logger *slog.Logger) *Store {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &Store{
		cache:  cache.New(cfg.TTL, cfg.CleanupInterval),
		logger: logger,
	}
}

// Lookup returns the cached buffer for a content identifier, if present.
// It is synchronous, non-blocking and side-effect-free.
func (s *Store) Lookup(contentID string) (*media.Buffer, bool) {
	if contentID == "" {
		return nil, false
	}
	cached, found := s.cache.Get(contentID)
	if !found {
		return nil, false
	}
	buf, ok := cached.(*media.Buffer)
	if !ok {
		// Foreign value under our key, treat as a miss
		s.cache.Delete(contentID)
		return nil, false
	}
	return buf, true
}

// Put stores a decoded buffer under its content identifier with the default TTL.
func (s *Store) Put(contentID string, buf *media.Buffer) {
	if contentID == "" || buf == nil {
		return
	}
	s.cache.Set(contentID, buf, cache.DefaultExpiration)
	if s.logger != nil {
		s.logger.Debug("buffer cached",
			"content_id", contentID,
			"samples", buf.Samples(),
			"sample_rate", buf.SampleRate)
	}
}

// Delete removes a cached buffer.
func (s *Store) Delete(contentID string) {
	s.cache.Delete(contentID)
}

// Flush removes all cached buffers.
func (s *Store) Flush() {
	s.cache.Flush()
}

// ItemCount returns the number of entries, including not yet purged expired ones.
func (s *Store) ItemCount() int {
	return s.cache.ItemCount()
}

// MemoryUsage returns the approximate memory held by cached buffers in bytes.
func (s *Store) MemoryUsage() int {
	total := 0
	for _, item := range s.cache.Items() {
		if buf, ok := item.Object.(*media.Buffer); ok {
			total += buf.EstimateSize()
		}
	}
	return total
}
