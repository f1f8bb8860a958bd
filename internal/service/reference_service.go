package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const referenceCacheKey = CacheNamespaceReference + ":snapshot"

type referenceRepository interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListFaculty(ctx context.Context) ([]models.Faculty, error)
	ListBatches(ctx context.Context) ([]models.Batch, error)
	ListCourses(ctx context.Context) ([]models.CourseBlock, error)
}

// ReferenceSnapshot is the read-only reference data used to build and
// validate assignments.
type ReferenceSnapshot struct {
	Rooms   []models.Room        `json:"rooms"`
	Faculty []models.Faculty     `json:"faculty"`
	Batches []models.Batch       `json:"batches"`
	Courses []models.CourseBlock `json:"courses"`
}

// Room looks up a room by id.
func (r *ReferenceSnapshot) Room(id string) (*models.Room, bool) {
	for i := range r.Rooms {
		if r.Rooms[i].ID == id {
			return &r.Rooms[i], true
		}
	}
	return nil, false
}

// FacultyMember looks up a faculty member by id.
func (r *ReferenceSnapshot) FacultyMember(id string) (*models.Faculty, bool) {
	for i := range r.Faculty {
		if r.Faculty[i].ID == id {
			return &r.Faculty[i], true
		}
	}
	return nil, false
}

// Batch looks up a batch by id.
func (r *ReferenceSnapshot) Batch(id string) (*models.Batch, bool) {
	for i := range r.Batches {
		if r.Batches[i].ID == id {
			return &r.Batches[i], true
		}
	}
	return nil, false
}

// Course looks up a course block by code.
func (r *ReferenceSnapshot) Course(code string) (*models.CourseBlock, bool) {
	for i := range r.Courses {
		if strings.EqualFold(r.Courses[i].Code, code) {
			return &r.Courses[i], true
		}
	}
	return nil, false
}

// FacultyFor returns the faculty eligible to teach course. When the course
// lists no faculty every member is eligible.
func (r *ReferenceSnapshot) FacultyFor(code string) []models.Faculty {
	course, ok := r.Course(code)
	if !ok || len(course.FacultyIDs) == 0 {
		return r.Faculty
	}
	var out []models.Faculty
	for _, f := range r.Faculty {
		if course.TeachableBy(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// ResolvedPlacement is a placement request turned into a canonical
// assignment plus the room and batch used by resource validation.
type ResolvedPlacement struct {
	Day        scheduler.Day
	Slot       scheduler.TimeSlot
	Assignment *scheduler.Assignment
	Room       *models.Room
	Batch      *models.Batch
}

// ReferenceService serves rooms, faculty, batches and course blocks.
type ReferenceService struct {
	repo      referenceRepository
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	snapshot *ReferenceSnapshot
	loadedAt time.Time
}

// NewReferenceService builds the service.
func NewReferenceService(repo referenceRepository, cache *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *ReferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ReferenceService{repo: repo, cache: cache, ttl: ttl, validator: validate, logger: logger, now: time.Now}
}

// Snapshot returns the reference data, loading it when the in-memory copy
// has expired.
func (s *ReferenceService) Snapshot(ctx context.Context) (*ReferenceSnapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Sub(s.loadedAt) < s.ttl {
		snap := s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	var cached ReferenceSnapshot
	if hit, _ := s.cache.Get(ctx, referenceCacheKey, &cached); hit {
		s.store(&cached)
		return &cached, nil
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load reference data")
	}
	_ = s.cache.Set(ctx, referenceCacheKey, snap, s.ttl)
	s.store(snap)
	return snap, nil
}

// Invalidate drops the in-memory snapshot and every reference entry in
// Redis, so the next Snapshot reads Postgres.
func (s *ReferenceService) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
	if err := s.cache.InvalidateNamespace(ctx, CacheNamespaceReference); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "reference cache unavailable")
	}
	return nil
}

func (s *ReferenceService) store(snap *ReferenceSnapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.loadedAt = s.now()
	s.mu.Unlock()
}

func (s *ReferenceService) load(ctx context.Context) (*ReferenceSnapshot, error) {
	snap := &ReferenceSnapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Rooms, err = s.repo.ListRooms(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Faculty, err = s.repo.ListFaculty(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Batches, err = s.repo.ListBatches(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Courses, err = s.repo.ListCourses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Resolve validates req against the reference data and builds the canonical
// assignment. Unknown ids are validation errors.
func (s *ReferenceService) Resolve(ctx context.Context, req dto.PlacementRequest) (*ResolvedPlacement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid placement payload")
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	course, ok := snap.Course(req.CourseCode)
	if !ok {
		return nil, unknownReference("course", req.CourseCode)
	}
	faculty, ok := snap.FacultyMember(req.FacultyID)
	if !ok {
		return nil, unknownReference("faculty", req.FacultyID)
	}
	room, ok := snap.Room(req.RoomID)
	if !ok {
		return nil, unknownReference("room", req.RoomID)
	}
	batch, ok := snap.Batch(req.BatchID)
	if !ok {
		return nil, unknownReference("batch", req.BatchID)
	}

	sessionType := scheduler.SessionType(req.SessionType)
	if sessionType == "" {
		sessionType = scheduler.SessionLecture
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 1
	}
	return &ResolvedPlacement{
		Day:        scheduler.Day(req.Day),
		Slot:       scheduler.TimeSlot(req.Slot),
		Assignment: scheduler.NewAssignment(*course, *faculty, *room, *batch, sessionType, duration),
		Room:       room,
		Batch:      batch,
	}, nil
}

func unknownReference(kind, id string) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s %q", kind, id)),
		map[string]any{"field": kind, "value": id},
	)
}
