package di

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	attendanceadapters "academy_backend/internal/feature/attendance/adapters"
	"academy_backend/internal/feature/attendance/usecase"
	"academy_backend/internal/platform/cache"
	"academy_backend/internal/platform/idempotency"
)

// NewRosterRepository creates the roster reader, wrapped with Redis caching when rdb is not nil.
func NewRosterRepository(rdb *redis.Client, db *gorm.DB, ttl time.Duration) *cache.CachingRosterRepository {
	return cache.NewCachingRosterRepository(rdb, ttl, attendanceadapters.NewRosterGorm(db), "roster")
}

// NewAttendanceRepository creates the attendance record store for backend.
func NewAttendanceRepository(backend string, db *gorm.DB) (usecase.AttendanceRepository, error) {
	switch backend {
	case BackendDB:
		return attendanceadapters.NewAttendanceGorm(db), nil
	case BackendEdge:
		client, err := NewEdgeClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown attendance backend %q", backend)
}

// NewCommitGuard creates a CommitGuard implementation.
// If Redis is available, it returns a Redis-backed implementation shared by all instances.
// Otherwise, it falls back to an in-process guard.
func NewCommitGuard(rdb *redis.Client) usecase.CommitGuard {
	if rdb != nil {
		return idempotency.NewRedisCommitGuard(rdb, "")
	}
	return idempotency.NewMemoryCommitGuard()
}
