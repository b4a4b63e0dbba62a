package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
	"github.com/devhid/stackoverflow-clone-sub000/internal/metrics"
)

// objectStore is the gateway's typed view over the object cache. Cache
// failures are soft: lookups degrade to misses and writes are logged and
// dropped, so a flaky cache slows dispatches down instead of failing them.
type objectStore struct {
	cache   cache.ObjectCache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func newObjectStore(c cache.ObjectCache, ttl time.Duration, logger *slog.Logger, rec *metrics.Recorder) *objectStore {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &objectStore{cache: c, ttl: ttl, logger: logger, metrics: rec}
}

// lookup fetches and decodes one cached document into dst. A decode failure
// is treated as a miss and the corrupt entry is dropped.
func (s *objectStore) lookup(ctx context.Context, key string, dst any) bool {
	start := time.Now()
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.ObserveCacheLookup(metrics.CacheLookupError, time.Since(start))
		s.logger.WarnContext(ctx, "cache lookup failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if !ok {
		s.metrics.ObserveCacheLookup(metrics.CacheLookupMiss, time.Since(start))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.metrics.ObserveCacheLookup(metrics.CacheLookupError, time.Since(start))
		s.logger.WarnContext(ctx, "cache entry undecodable, dropping", slog.String("key", key), slog.Any("error", err))
		s.remove(ctx, key)
		return false
	}
	s.metrics.ObserveCacheLookup(metrics.CacheLookupHit, time.Since(start))
	return true
}

func (s *objectStore) question(ctx context.Context, key string) *Question {
	var q Question
	if !s.lookup(ctx, key, &q) {
		return nil
	}
	return &q
}

func (s *objectStore) answer(ctx context.Context, key string) *Answer {
	var a Answer
	if !s.lookup(ctx, key, &a) {
		return nil
	}
	return &a
}

func (s *objectStore) answers(ctx context.Context, key string) ([]Answer, bool) {
	var list []Answer
	if !s.lookup(ctx, key, &list) {
		return nil, false
	}
	return list, true
}

func (s *objectStore) views(ctx context.Context, key string) *ViewSet {
	var v ViewSet
	if !s.lookup(ctx, key, &v) {
		return nil
	}
	return &v
}

func (s *objectStore) reply(ctx context.Context, key string) *CachedReply {
	var r CachedReply
	if !s.lookup(ctx, key, &r) {
		return nil
	}
	return &r
}

// put encodes and stores one document under key with the store's TTL.
func (s *objectStore) put(ctx context.Context, key string, doc any) {
	raw, err := json.Marshal(doc)
	if err != nil {
		s.logger.ErrorContext(ctx, "cache value unencodable", slog.String("key", key), slog.Any("error", err))
		return
	}
	start := time.Now()
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.metrics.ObserveCacheWrite(metrics.CacheOperationStore, metrics.CacheWriteError, time.Since(start))
		s.logger.WarnContext(ctx, "cache store failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	s.metrics.ObserveCacheWrite(metrics.CacheOperationStore, metrics.CacheWriteApplied, time.Since(start))
}

func (s *objectStore) remove(ctx context.Context, key string) {
	start := time.Now()
	if err := s.cache.Remove(ctx, key); err != nil {
		s.metrics.ObserveCacheWrite(metrics.CacheOperationRemove, metrics.CacheWriteError, time.Since(start))
		s.logger.WarnContext(ctx, "cache remove failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	s.metrics.ObserveCacheWrite(metrics.CacheOperationRemove, metrics.CacheWriteApplied, time.Since(start))
}

// touch extends the lifetime of a key that was just read.
func (s *objectStore) touch(ctx context.Context, key string) {
	start := time.Now()
	if err := s.cache.Touch(ctx, key, s.ttl); err != nil {
		s.metrics.ObserveCacheWrite(metrics.CacheOperationTouch, metrics.CacheWriteError, time.Since(start))
		s.logger.WarnContext(ctx, "cache touch failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	s.metrics.ObserveCacheWrite(metrics.CacheOperationTouch, metrics.CacheWriteApplied, time.Since(start))
}
