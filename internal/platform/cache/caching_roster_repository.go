// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

// RosterStore is the roster read side that the decorator wraps.
// Both the recognition client and the hosted-model matcher read through it.
type RosterStore interface {
	usecase.RosterRepository
	ListWithReferencePhotos(ctx context.Context, tenantID string) ([]entity.Student, error)
}

// CachingRosterRepository decorates a RosterStore with Redis caching.
// The roster is read-only in this service, so entries simply expire after ttl.
type CachingRosterRepository struct {
	inner     RosterStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// CachingRosterRepositoryがRosterStoreを実装していることをコンパイル時に検証します。
var _ RosterStore = (*CachingRosterRepository)(nil)

// NewCachingRosterRepository decorates a RosterStore with Redis caching.
// If ttl is 0, it defaults to 1 minute. If namespace is empty, it uses "roster".
func NewCachingRosterRepository(rdb *redis.Client, ttl time.Duration, inner RosterStore, namespace string) *CachingRosterRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if namespace == "" {
		namespace = "roster"
	}
	return &CachingRosterRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// CountWithReferencePhotos returns the cached count, falling back to the database.
func (c *CachingRosterRepository) CountWithReferencePhotos(ctx context.Context, tenantID string) (int64, error) {
	if c.rdb == nil {
		return c.inner.CountWithReferencePhotos(ctx, tenantID)
	}

	var out int64
	key := c.cacheKey(tenantID, "count")
	if c.get(ctx, key, &out) {
		return out, nil
	}

	out, err := c.inner.CountWithReferencePhotos(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, out)
	return out, nil
}

// ListWithReferencePhotos returns the cached student list, falling back to the database.
func (c *CachingRosterRepository) ListWithReferencePhotos(ctx context.Context, tenantID string) ([]entity.Student, error) {
	if c.rdb == nil {
		return c.inner.ListWithReferencePhotos(ctx, tenantID)
	}

	var out []entity.Student
	key := c.cacheKey(tenantID, "list")
	if c.get(ctx, key, &out) {
		return out, nil
	}

	out, err := c.inner.ListWithReferencePhotos(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, out)
	return out, nil
}

// FindByIDs is not cached: the id set differs per recognition.
func (c *CachingRosterRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]entity.Student, error) {
	return c.inner.FindByIDs(ctx, tenantID, ids)
}

// get reads key into dst. A corrupted entry is deleted and reported as a miss.
func (c *CachingRosterRepository) get(ctx context.Context, key string, dst any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil || len(b) == 0 {
		return false
	}
	if err := json.Unmarshal(b, dst); err == nil {
		return true
	}
	// Delete corrupted cache entry
	_ = c.rdb.Del(ctx, key).Err()
	return false
}

// set stores v under key (best effort).
func (c *CachingRosterRepository) set(ctx context.Context, key string, v any) {
	if b, err := json.Marshal(v); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
}

// cacheKey generates a cache key for a tenant query.
func (c *CachingRosterRepository) cacheKey(tenantID, query string) string {
	return fmt.Sprintf("%s:%s:%s", c.namespace, safe(tenantID), query)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
