package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const timetableCachePrefix = CacheNamespaceTimetable + ":"

type timetableRepository interface {
	FindByKey(ctx context.Context, key string) (*models.Timetable, error)
	ListOccupying(ctx context.Context, day, slot, excludeKey string) ([]models.Timetable, error)
	Upsert(ctx context.Context, timetable *models.Timetable) error
}

// TimetableStore persists timetables with Redis as a fast tier in front of
// Postgres. Writes update the cache optimistically and roll it back when the
// durable write fails.
type TimetableStore struct {
	repo   timetableRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewTimetableStore builds the store. cache may be nil.
func NewTimetableStore(repo timetableRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *TimetableStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableStore{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func timetableCacheKey(key string) string {
	return timetableCachePrefix + key
}

// Load returns the timetable stored under key.
func (s *TimetableStore) Load(ctx context.Context, key string) (*models.Timetable, error) {
	var cached models.Timetable
	if hit, _ := s.cache.Get(ctx, timetableCacheKey(key), &cached); hit {
		return &cached, nil
	}

	timetable, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load timetable")
	}
	_ = s.cache.Set(ctx, timetableCacheKey(key), timetable, s.ttl)
	return timetable, nil
}

// Save writes timetable and refreshes its ID, version and timestamps.
func (s *TimetableStore) Save(ctx context.Context, timetable *models.Timetable) error {
	if timetable == nil || !timetable.Complete() {
		return appErrors.Clone(appErrors.ErrValidation, "semester, branch, batch and type are required to save")
	}
	timetable.Key = timetable.TimetableIdentity.Key()
	cacheKey := timetableCacheKey(timetable.Key)

	var previous models.Timetable
	hadPrevious, _ := s.cache.Get(ctx, cacheKey, &previous)
	_ = s.cache.Set(ctx, cacheKey, timetable, s.ttl)

	if err := s.repo.Upsert(ctx, timetable); err != nil {
		s.rollback(ctx, cacheKey, hadPrevious, &previous)
		s.logger.Error("timetable save failed", zap.String("key", timetable.Key), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to save timetable")
	}

	_ = s.cache.Set(ctx, cacheKey, timetable, s.ttl)
	return nil
}

func (s *TimetableStore) rollback(ctx context.Context, cacheKey string, hadPrevious bool, previous *models.Timetable) {
	if hadPrevious {
		_ = s.cache.Set(ctx, cacheKey, previous, s.ttl)
		return
	}
	_ = s.cache.Delete(ctx, cacheKey)
}

// ListOccupying reads straight from Postgres; the cache holds single keys only.
func (s *TimetableStore) ListOccupying(ctx context.Context, day, slot, excludeKey string) ([]models.Timetable, error) {
	timetables, err := s.repo.ListOccupying(ctx, day, slot, excludeKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to query timetables")
	}
	return timetables, nil
}
