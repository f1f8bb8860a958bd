package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	testMonday  = "Monday"
	testTuesday = "Tuesday"
	testSlot7   = "7:00-7:55"
	testSlot8   = "8:00-8:55"
	testSlot9   = "9:00-9:55"
)

// memCacheRepo is an in-memory stand-in for the Redis cache repository.
type memCacheRepo struct {
	mu      sync.Mutex
	items   map[string][]byte
	setErr  error
	deletes []string
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{items: make(map[string][]byte)}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memCacheRepo) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	m.deletes = append(m.deletes, key)
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *memCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// timetableRepoStub backs TimetableStore tests.
type timetableRepoStub struct {
	items     map[string]*models.Timetable
	occupying []models.Timetable
	findErr   error
	listErr   error
	upsertErr error
	finds     int
	upserts   int
}

func (r *timetableRepoStub) FindByKey(ctx context.Context, key string) (*models.Timetable, error) {
	r.finds++
	if r.findErr != nil {
		return nil, r.findErr
	}
	item, ok := r.items[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (r *timetableRepoStub) ListOccupying(ctx context.Context, day, slot, excludeKey string) ([]models.Timetable, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Timetable
	for _, tt := range r.occupying {
		if tt.Key != excludeKey {
			out = append(out, tt)
		}
	}
	return out, nil
}

func (r *timetableRepoStub) Upsert(ctx context.Context, timetable *models.Timetable) error {
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if timetable.ID == "" {
		timetable.ID = "tt-" + timetable.Key
	}
	timetable.Version++
	if r.items == nil {
		r.items = make(map[string]*models.Timetable)
	}
	cp := *timetable
	r.items[timetable.Key] = &cp
	return nil
}

// referenceRepoStub serves a fixed reference snapshot.
type referenceRepoStub struct {
	snapshot *ReferenceSnapshot
	err      error
	calls    int
	mu       sync.Mutex
}

func (r *referenceRepoStub) hit() error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.err
}

func (r *referenceRepoStub) ListRooms(ctx context.Context) ([]models.Room, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	return r.snapshot.Rooms, nil
}

func (r *referenceRepoStub) ListFaculty(ctx context.Context) ([]models.Faculty, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	return r.snapshot.Faculty, nil
}

func (r *referenceRepoStub) ListBatches(ctx context.Context) ([]models.Batch, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	return r.snapshot.Batches, nil
}

func (r *referenceRepoStub) ListCourses(ctx context.Context) ([]models.CourseBlock, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	return r.snapshot.Courses, nil
}

func testSnapshot() *ReferenceSnapshot {
	return &ReferenceSnapshot{
		Rooms: []models.Room{
			{ID: "A101", Name: "A101", Capacity: 40, Type: "lecture"},
			{ID: "A102", Name: "A102", Capacity: 40, Type: "lecture"},
			{ID: "S01", Name: "Seminar 1", Capacity: 20, Type: "seminar"},
			{ID: "L201", Name: "Lab 201", Capacity: 40, Type: "lab", Facilities: pq.StringArray{"computers"}},
		},
		Faculty: []models.Faculty{
			{ID: "F1", Name: "Dr. Ada", Department: "CSE"},
			{ID: "F2", Name: "Dr. Grace", Department: "CSE"},
			{ID: "F3", Name: "Dr. Alan", Department: "CSE"},
		},
		Batches: []models.Batch{
			{ID: "B1", Name: "CSE-A", Size: 30, Branch: "CSE", Semester: "3"},
			{ID: "B2", Name: "CSE-B", Size: 30, Branch: "CSE", Semester: "3"},
		},
		Courses: []models.CourseBlock{
			{Code: "CS101", Title: "Programming", FacultyIDs: pq.StringArray{"F1"}},
			{Code: "CS102", Title: "Discrete Maths", FacultyIDs: pq.StringArray{"F2"}},
			{Code: "CS201", Title: "Databases", FacultyIDs: pq.StringArray{"F1", "F3"}},
			{Code: "CS301", Title: "Systems Lab", RequiredFacilities: pq.StringArray{"computers"}},
		},
	}
}

// memTimetableStore is a session-level store stand-in.
type memTimetableStore struct {
	mu      sync.Mutex
	items   map[string]*models.Timetable
	loadErr error
	saveErr error
	saves   int
	onSave  func()
}

func newMemTimetableStore() *memTimetableStore {
	return &memTimetableStore{items: make(map[string]*models.Timetable)}
}

func (m *memTimetableStore) Load(ctx context.Context, key string) (*models.Timetable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	item, ok := m.items[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	cp := *item
	return &cp, nil
}

func (m *memTimetableStore) Save(ctx context.Context, timetable *models.Timetable) error {
	if m.onSave != nil {
		m.onSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	timetable.Key = timetable.TimetableIdentity.Key()
	if timetable.ID == "" {
		timetable.ID = "tt-" + timetable.Key
	}
	timetable.Version++
	cp := *timetable
	m.items[timetable.Key] = &cp
	return nil
}

// crossCheckerStub returns canned cross-timetable results.
type crossCheckerStub struct {
	mu       sync.Mutex
	requests []dto.CrossCheckRequest
	result   *dto.CrossCheckResult
	err      error
}

func (c *crossCheckerStub) Check(ctx context.Context, req dto.CrossCheckRequest) (*dto.CrossCheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	result := &dto.CrossCheckResult{
		FacultyConflicts: []dto.CrossConflict{},
		RoomConflicts:    []dto.CrossConflict{},
	}
	if c.result != nil {
		*result = *c.result
	}
	return result, nil
}

// recordingAudit captures emitted audit events.
type recordingAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (r *recordingAudit) Record(event models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

var errStorageDown = errors.New("connection refused")
