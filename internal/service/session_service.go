package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

type referenceProvider interface {
	Snapshot(ctx context.Context) (*ReferenceSnapshot, error)
	Resolve(ctx context.Context, req dto.PlacementRequest) (*ResolvedPlacement, error)
}

type timetableStore interface {
	Load(ctx context.Context, key string) (*models.Timetable, error)
	Save(ctx context.Context, timetable *models.Timetable) error
}

type crossChecker interface {
	Check(ctx context.Context, req dto.CrossCheckRequest) (*dto.CrossCheckResult, error)
}

type auditSink interface {
	Record(event models.AuditEvent)
}

type nopAuditSink struct{}

func (nopAuditSink) Record(models.AuditEvent) {}

// SessionConfig tunes the editing engine.
type SessionConfig struct {
	Layout              *scheduler.Layout
	Thresholds          scheduler.Thresholds
	MaxAlternativeSlots int
	HistoryLimit        int
	CrossCheckTimeout   time.Duration
}

// SessionService owns every open tab. Each tab is an independent Session;
// the service only tracks which one is active.
type SessionService struct {
	cfg       SessionConfig
	refs      referenceProvider
	store     timetableStore
	cross     crossChecker
	audit     auditSink
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
	async func(func())

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	activeID string
}

// NewSessionService builds the service. cross and audit may be nil.
func NewSessionService(cfg SessionConfig, refs referenceProvider, store timetableStore, cross crossChecker, audit auditSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if cfg.Layout == nil {
		cfg.Layout = scheduler.DefaultLayout()
	}
	if cfg.MaxAlternativeSlots <= 0 {
		cfg.MaxAlternativeSlots = scheduler.DefaultMaxAlternativeSlots
	}
	if cfg.CrossCheckTimeout <= 0 {
		cfg.CrossCheckTimeout = 5 * time.Second
	}
	if audit == nil {
		audit = nopAuditSink{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		cfg:       cfg,
		refs:      refs,
		store:     store,
		cross:     cross,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		async:     func(fn func()) { go fn() },
		sessions:  make(map[string]*Session),
	}
}

// Layout returns the day and slot frame every tab uses.
func (s *SessionService) Layout() *scheduler.Layout {
	return s.cfg.Layout
}

// Create opens a blank tab and makes it active.
func (s *SessionService) Create(ctx context.Context, req dto.CreateTabRequest) (*dto.TabDetail, error) {
	sess := newSession(s.newID(), scheduler.NewGrid(s.cfg.Layout), req.Filters, s.cfg.HistoryLimit, s.now().UTC())
	s.register(sess)
	s.logger.Info("tab created", zap.String("tab_id", sess.id))
	return s.describe(sess), nil
}

// Open loads the persisted timetable for the identity into a new active tab.
// When a tab for the same key is already open it is activated instead. An
// identity with nothing stored opens as a blank tab.
func (s *SessionService) Open(ctx context.Context, req dto.OpenTabRequest) (*dto.TabDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "semester, branch, batch and type are required")
	}
	key := req.TimetableIdentity.Key()
	if existing := s.findByKey(key); existing != nil {
		return s.Switch(ctx, existing.id)
	}

	grid := scheduler.NewGrid(s.cfg.Layout)
	var timetableID string
	timetable, err := s.store.Load(ctx, key)
	switch {
	case err == nil:
		grid, err = scheduler.DecodeGrid(s.cfg.Layout, timetable.Schedule)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule is unreadable")
		}
		timetableID = timetable.ID
	case errors.Is(err, appErrors.ErrNotFound):
	default:
		return nil, err
	}

	filters := dto.TabFilters{Semester: req.Semester, Branch: req.Branch, Batch: req.Batch, Type: req.Type}
	sess := newSession(s.newID(), grid, filters, s.cfg.HistoryLimit, s.now().UTC())
	sess.timetableID = timetableID

	s.mu.Lock()
	for _, id := range s.order {
		if other := s.sessions[id]; other != nil && other.currentKey() == key {
			s.activeID = id
			s.mu.Unlock()
			return s.describe(other), nil
		}
	}
	s.mu.Unlock()
	s.register(sess)
	s.logger.Info("tab opened", zap.String("tab_id", sess.id), zap.String("key", key), zap.Int("assignments", grid.Len()))
	return s.describe(sess), nil
}

// List returns every open tab in creation order.
func (s *SessionService) List(ctx context.Context) []dto.TabSummary {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.order))
	for _, id := range s.order {
		sessions = append(sessions, s.sessions[id])
	}
	active := s.activeID
	s.mu.RUnlock()

	out := make([]dto.TabSummary, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		out = append(out, sess.summary(sess.id == active))
		sess.mu.Unlock()
	}
	return out
}

// Get returns one tab with its grid.
func (s *SessionService) Get(ctx context.Context, id string) (*dto.TabDetail, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.describe(sess), nil
}

// Switch makes the tab active. Other tabs are not touched.
func (s *SessionService) Switch(ctx context.Context, id string) (*dto.TabDetail, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		s.activeID = id
	}
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tab not found")
	}
	return s.describe(sess), nil
}

// Close discards the tab. A tab with unsaved edits is kept unless force is set.
func (s *SessionService) Close(ctx context.Context, id string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "tab not found")
	}

	sess.mu.Lock()
	if sess.dirty && !force {
		critical, warning := sess.counts()
		sess.mu.Unlock()
		return appErrors.WithDetails(appErrors.ErrUnsavedChanges, map[string]any{
			"tabId":         id,
			"criticalCount": critical,
			"warningCount":  warning,
		})
	}
	sess.stopCrossCheck()
	sess.mu.Unlock()

	delete(s.sessions, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
		if n := len(s.order); n > 0 {
			s.activeID = s.order[n-1]
		}
	}
	s.metrics.SetOpenTabs(len(s.sessions))
	s.logger.Info("tab closed", zap.String("tab_id", id), zap.Bool("forced", force))
	return nil
}

// Configure merges the provided filter keys into the tab. Changing the
// identity detaches the tab from its previously persisted timetable.
func (s *SessionService) Configure(ctx context.Context, id string, req dto.ConfigureTabRequest) (*dto.TabDetail, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	before := sess.key()
	merge := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	merge(&sess.filters.Semester, req.Semester)
	merge(&sess.filters.Branch, req.Branch)
	merge(&sess.filters.Batch, req.Batch)
	merge(&sess.filters.Type, req.Type)
	merge(&sess.filters.Room, req.Room)
	if sess.key() != before {
		sess.timetableID = ""
		if sess.grid.Len() > 0 {
			sess.dirty = true
		}
	}
	sess.updatedAt = s.now().UTC()
	sess.mu.Unlock()
	return s.describe(sess), nil
}

// Validate runs placement validation without mutating the tab.
func (s *SessionService) Validate(ctx context.Context, id string, req dto.PlacementRequest) (*scheduler.PlacementResult, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.refs.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	result, err := scheduler.ValidatePlacement(sess.grid, resolved.Day, resolved.Slot, resolved.Assignment, resolved.Room, resolved.Batch, s.cfg.Thresholds)
	if err != nil {
		return nil, invalidCell(err)
	}
	return &result, nil
}

// Place validates the request and, when no critical conflict is found, writes
// the assignment into the grid. A blocked placement is reported with
// Placed=false and leaves the tab untouched.
func (s *SessionService) Place(ctx context.Context, id, actor string, req dto.PlacementRequest) (*dto.PlacementResponse, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.refs.Resolve(ctx, req)
	if err != nil {
		s.metrics.RecordPlacement(PlacementInvalid)
		return nil, err
	}
	day, slot, candidate := resolved.Day, resolved.Slot, resolved.Assignment
	active := s.isActive(id)

	sess.mu.Lock()
	result, err := scheduler.ValidatePlacement(sess.grid, day, slot, candidate, resolved.Room, resolved.Batch, s.cfg.Thresholds)
	if err != nil {
		sess.mu.Unlock()
		s.metrics.RecordPlacement(PlacementInvalid)
		return nil, invalidCell(err)
	}
	s.recordConflicts(result)
	if !result.CanPlace {
		resp := &dto.PlacementResponse{Placed: false, Result: result, Tab: sess.detail(active)}
		sess.mu.Unlock()
		s.metrics.RecordPlacement(PlacementRejected)
		return resp, nil
	}

	next := sess.grid.Clone()
	replaced, _ := next.Set(day, slot, candidate)
	s.commit(sess, next, scheduler.CellKey{Day: day, Slot: slot})
	reqID, crossReq := s.beginCrossCheck(sess, day, slot, candidate)
	var details map[string]any
	if replaced != nil {
		details = map[string]any{"replaced": replaced.CourseCode}
	}
	s.emit(ctx, sess, actor, models.AuditActionPlace, day, slot, candidate, details)
	resp := &dto.PlacementResponse{Placed: true, Replaced: replaced, Result: result, CrossCheckRequestID: reqID, Tab: sess.detail(active)}
	sess.mu.Unlock()

	s.metrics.RecordPlacement(PlacementAccepted)
	s.launchCrossCheck(sess, reqID, crossReq)
	return resp, nil
}

// Remove clears one cell.
func (s *SessionService) Remove(ctx context.Context, id, actor string, req dto.CellRequest) (*dto.TabDetail, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	day, slot := scheduler.Day(req.Day), scheduler.TimeSlot(req.Slot)
	if err := s.cfg.Layout.Check(day, slot); err != nil {
		return nil, invalidCell(err)
	}
	active := s.isActive(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	removed := sess.grid.Get(day, slot)
	if removed == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no assignment at %s %s", day, slot))
	}
	removed = removed.Clone()
	next := sess.grid.Clone()
	_, _ = next.Clear(day, slot)
	s.commit(sess, next, scheduler.CellKey{Day: day, Slot: slot})
	s.emit(ctx, sess, actor, models.AuditActionRemove, day, slot, removed, nil)
	return sess.detail(active), nil
}

// Move relocates an assignment after validating it at the target as if the
// source cell were already empty.
func (s *SessionService) Move(ctx context.Context, id, actor string, req dto.MoveRequest) (*dto.PlacementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	from := scheduler.CellKey{Day: scheduler.Day(req.FromDay), Slot: scheduler.TimeSlot(req.FromSlot)}
	to := scheduler.CellKey{Day: scheduler.Day(req.ToDay), Slot: scheduler.TimeSlot(req.ToSlot)}
	for _, cell := range []scheduler.CellKey{from, to} {
		if err := s.cfg.Layout.Check(cell.Day, cell.Slot); err != nil {
			return nil, invalidCell(err)
		}
	}
	if from == to {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target cells are the same")
	}
	snap, err := s.refs.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	active := s.isActive(id)

	sess.mu.Lock()
	moving := sess.grid.Get(from.Day, from.Slot)
	if moving == nil {
		sess.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no assignment at %s %s", from.Day, from.Slot))
	}
	moving = moving.Clone()
	next := sess.grid.Clone()
	_, _ = next.Clear(from.Day, from.Slot)
	room, batch := lookupResources(snap, moving)
	result, err := scheduler.ValidatePlacement(next, to.Day, to.Slot, moving, room, batch, s.cfg.Thresholds)
	if err != nil {
		sess.mu.Unlock()
		return nil, invalidCell(err)
	}
	s.recordConflicts(result)
	if !result.CanPlace {
		resp := &dto.PlacementResponse{Placed: false, Result: result, Tab: sess.detail(active)}
		sess.mu.Unlock()
		s.metrics.RecordPlacement(PlacementRejected)
		return resp, nil
	}

	replaced, _ := next.Set(to.Day, to.Slot, moving)
	s.commit(sess, next, from, to)
	reqID, crossReq := s.beginCrossCheck(sess, to.Day, to.Slot, moving)
	details := map[string]any{"fromDay": string(from.Day), "fromSlot": string(from.Slot)}
	if replaced != nil {
		details["replaced"] = replaced.CourseCode
	}
	s.emit(ctx, sess, actor, models.AuditActionMove, to.Day, to.Slot, moving, details)
	resp := &dto.PlacementResponse{Placed: true, Replaced: replaced, Result: result, CrossCheckRequestID: reqID, Tab: sess.detail(active)}
	sess.mu.Unlock()

	s.metrics.RecordPlacement(PlacementAccepted)
	s.launchCrossCheck(sess, reqID, crossReq)
	return resp, nil
}

// Undo restores the previous snapshot. At the oldest entry it is a no-op.
func (s *SessionService) Undo(ctx context.Context, id string) (*dto.TabDetail, error) {
	return s.travel(id, (*scheduler.History).Undo)
}

// Redo restores the next snapshot. At the newest entry it is a no-op.
func (s *SessionService) Redo(ctx context.Context, id string) (*dto.TabDetail, error) {
	return s.travel(id, (*scheduler.History).Redo)
}

func (s *SessionService) travel(id string, step func(*scheduler.History) (*scheduler.Grid, bool)) (*dto.TabDetail, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	active := s.isActive(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if grid, ok := step(sess.history); ok {
		sess.grid = grid
		sess.index = scheduler.BuildIndex(grid)
		sess.refresh()
		sess.dirty = true
		sess.revision++
		sess.updatedAt = s.now().UTC()
	}
	return sess.detail(active), nil
}

// Conflicts returns the tab's derived conflicts and latest advisory.
func (s *SessionService) Conflicts(ctx context.Context, id string) (*dto.ConflictReport, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	critical, warning := sess.counts()
	return &dto.ConflictReport{
		Conflicts:     append([]scheduler.Conflict{}, sess.conflicts...),
		CriticalCount: critical,
		WarningCount:  warning,
		CrossCheck:    sess.advisory(),
	}, nil
}

// Suggest returns the conflicts at a cell, or those a pending placement
// would cause, each with its remediation suggestions.
func (s *SessionService) Suggest(ctx context.Context, id string, req dto.SuggestionRequest) (*dto.SuggestionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion request")
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	snap, err := s.refs.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var pending *ResolvedPlacement
	if req.Placement != nil {
		if pending, err = s.refs.Resolve(ctx, *req.Placement); err != nil {
			return nil, err
		}
	} else if err := s.cfg.Layout.Check(scheduler.Day(req.Day), scheduler.TimeSlot(req.Slot)); err != nil {
		return nil, invalidCell(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	var conflicts []scheduler.Conflict
	if pending != nil {
		result, err := scheduler.ValidatePlacement(sess.grid, pending.Day, pending.Slot, pending.Assignment, pending.Room, pending.Batch, s.cfg.Thresholds)
		if err != nil {
			return nil, invalidCell(err)
		}
		conflicts = append(append(conflicts, result.Conflicts...), result.Warnings...)
	} else {
		conflicts = s.cellConflicts(sess, snap, scheduler.Day(req.Day), scheduler.TimeSlot(req.Slot))
	}

	opts := scheduler.ResolverOptions{MaxAlternativeSlots: s.cfg.MaxAlternativeSlots, Thresholds: s.cfg.Thresholds}
	out := make([]scheduler.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if req.Kind != "" && string(c.Kind) != req.Kind {
			continue
		}
		var faculty []models.Faculty
		if c.Subject != nil {
			faculty = snap.FacultyFor(c.Subject.CourseCode)
		}
		c.Suggestions = scheduler.GenerateSuggestions(sess.grid, c, snap.Rooms, faculty, opts)
		if c.Suggestions == nil {
			c.Suggestions = []scheduler.Suggestion{}
		}
		out = append(out, c)
	}
	return &dto.SuggestionResponse{Conflicts: out}, nil
}

// cellConflicts gathers the grid conflicts involving the cell, oriented so
// the cell's assignment is the subject, plus resource findings for it.
func (s *SessionService) cellConflicts(sess *Session, snap *ReferenceSnapshot, day scheduler.Day, slot scheduler.TimeSlot) []scheduler.Conflict {
	var out []scheduler.Conflict
	for _, c := range sess.conflicts {
		switch {
		case c.Day == day && c.Slot == slot:
			out = append(out, c)
		case c.CollidingDay == day && c.CollidingSlot == slot:
			c.Day, c.Slot, c.CollidingDay, c.CollidingSlot = c.CollidingDay, c.CollidingSlot, c.Day, c.Slot
			c.Subject, c.Colliding = c.Colliding, c.Subject
			out = append(out, c)
		}
	}
	occupant := sess.grid.Get(day, slot)
	if occupant == nil {
		return out
	}
	rest := sess.grid.Clone()
	_, _ = rest.Clear(day, slot)
	room, batch := lookupResources(snap, occupant)
	resources := scheduler.ValidateResources(rest, day, slot, occupant, room, batch, s.cfg.Thresholds)
	out = append(out, resources.Conflicts...)
	return append(out, resources.Warnings...)
}

// ApplySuggestion resolves the suggested result against reference data,
// validates it like any placement and commits it when no critical conflict
// remains. Unknown course, faculty, room or batch ids are validation errors.
func (s *SessionService) ApplySuggestion(ctx context.Context, id, actor string, req dto.ApplySuggestionRequest) (*dto.PlacementResponse, error) {
	suggestion := req.Suggestion
	if suggestion.Subject == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "suggestion has no subject assignment")
	}
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	proposed, day, slot := suggestion.Result()
	if err := s.cfg.Layout.Check(day, slot); err != nil {
		return nil, invalidCell(err)
	}
	resolved, err := s.refs.Resolve(ctx, dto.PlacementRequest{
		Day:         string(day),
		Slot:        string(slot),
		CourseCode:  proposed.CourseCode,
		FacultyID:   proposed.FacultyID,
		RoomID:      proposed.RoomID,
		BatchID:     proposed.BatchID,
		SessionType: string(proposed.SessionType),
		Duration:    proposed.Duration,
	})
	if err != nil {
		s.metrics.RecordPlacement(PlacementInvalid)
		return nil, err
	}
	placed := resolved.Assignment
	active := s.isActive(id)

	sess.mu.Lock()
	rest := sess.grid.Clone()
	if suggestion.InGrid {
		if !rest.Get(suggestion.Day, suggestion.Slot).Equal(suggestion.Subject) {
			sess.mu.Unlock()
			return nil, appErrors.Clone(appErrors.ErrConflict, "suggestion no longer matches the timetable")
		}
		_, _ = rest.Clear(suggestion.Day, suggestion.Slot)
	}
	if rest.HasAssignment(day, slot) {
		sess.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s %s is already occupied", day, slot))
	}
	result, err := scheduler.ValidatePlacement(rest, day, slot, placed, resolved.Room, resolved.Batch, s.cfg.Thresholds)
	if err != nil {
		sess.mu.Unlock()
		return nil, invalidCell(err)
	}
	if !result.CanPlace {
		resp := &dto.PlacementResponse{Placed: false, Result: result, Tab: sess.detail(active)}
		sess.mu.Unlock()
		s.metrics.RecordPlacement(PlacementRejected)
		return resp, nil
	}

	next, err := scheduler.ApplySuggestion(sess.grid, suggestion)
	if err != nil {
		sess.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "suggestion could not be applied")
	}
	// The cell holds the reference-resolved assignment, not the posted one.
	_, _ = next.Set(day, slot, placed)
	touched := []scheduler.CellKey{{Day: day, Slot: slot}}
	if suggestion.InGrid {
		touched = append(touched, scheduler.CellKey{Day: suggestion.Day, Slot: suggestion.Slot})
	}
	s.commit(sess, next, touched...)
	reqID, crossReq := s.beginCrossCheck(sess, day, slot, placed)
	s.emit(ctx, sess, actor, models.AuditActionApplySuggestion, day, slot, placed, map[string]any{
		"suggestionId": suggestion.ID,
		"type":         string(suggestion.Type),
	})
	resp := &dto.PlacementResponse{Placed: true, Result: result, CrossCheckRequestID: reqID, Tab: sess.detail(active)}
	sess.mu.Unlock()

	s.metrics.RecordPlacement(PlacementAccepted)
	s.launchCrossCheck(sess, reqID, crossReq)
	return resp, nil
}

// ClearWeek empties the grid as one undoable step.
func (s *SessionService) ClearWeek(ctx context.Context, id, actor string) (*dto.TabDetail, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	active := s.isActive(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	cells := sess.grid.Cells()
	if len(cells) == 0 {
		return sess.detail(active), nil
	}
	touched := make([]scheduler.CellKey, 0, len(cells))
	for _, cell := range cells {
		touched = append(touched, scheduler.CellKey{Day: cell.Day, Slot: cell.Slot})
	}
	s.commit(sess, scheduler.NewGrid(s.cfg.Layout), touched...)
	s.emit(ctx, sess, actor, models.AuditActionClearWeek, "", "", nil, map[string]any{"removed": len(cells)})
	return sess.detail(active), nil
}

// Save persists the grid under the tab's identity. Edits made while the
// write is in flight keep the tab dirty.
func (s *SessionService) Save(ctx context.Context, id, actor string) (*dto.TabDetail, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	identity := sess.filters.Identity()
	if !identity.Complete() {
		sess.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester, branch, batch and type are required to save")
	}
	schedule, err := json.Marshal(sess.grid)
	if err != nil {
		sess.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule")
	}
	timetable := &models.Timetable{
		ID:                sess.timetableID,
		TimetableIdentity: identity,
		Schedule:          types.JSONText(schedule),
		UpdatedBy:         actor,
	}
	key := identity.Key()
	revision := sess.revision
	sess.mu.Unlock()

	if err := s.store.Save(ctx, timetable); err != nil {
		return nil, err
	}

	active := s.isActive(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.key() == key {
		sess.timetableID = timetable.ID
		if sess.revision == revision {
			sess.dirty = false
		}
	}
	s.emit(ctx, sess, actor, models.AuditActionSave, "", "", nil, map[string]any{"version": timetable.Version})
	s.logger.Info("timetable saved", zap.String("tab_id", id), zap.String("key", key), zap.Int("version", timetable.Version))
	return sess.detail(active), nil
}

// commit installs next as the tab's grid. The index is patched for the
// touched cells only, then checked against a rebuild; a mismatch means an
// update was missed and the index is replaced wholesale.
func (s *SessionService) commit(sess *Session, next *scheduler.Grid, touched ...scheduler.CellKey) {
	seen := make(map[scheduler.CellKey]struct{}, len(touched))
	for _, cell := range touched {
		if _, dup := seen[cell]; dup {
			continue
		}
		seen[cell] = struct{}{}
		sess.index.Update(cell.Day, cell.Slot, sess.grid.Get(cell.Day, cell.Slot), next.Get(cell.Day, cell.Slot))
	}
	sess.grid = next
	if !sess.index.Consistent(sess.grid) {
		s.logger.Error("conflict index out of sync, rebuilding", zap.String("tab_id", sess.id))
		s.metrics.RecordIndexRebuild()
		sess.index = scheduler.BuildIndex(sess.grid)
	}
	sess.refresh()
	sess.history.Push(sess.grid)
	sess.dirty = true
	sess.revision++
	sess.updatedAt = s.now().UTC()
}

// beginCrossCheck supersedes any in-flight check and numbers the new one.
// Callers hold sess.mu.
func (s *SessionService) beginCrossCheck(sess *Session, day scheduler.Day, slot scheduler.TimeSlot, a *scheduler.Assignment) (uint64, dto.CrossCheckRequest) {
	if s.cross == nil {
		return 0, dto.CrossCheckRequest{}
	}
	sess.stopCrossCheck()
	sess.cross.latest++
	sess.cross.pending = true
	sess.cross.day, sess.cross.slot = day, slot
	sess.cross.result = nil
	sess.cross.err = ""
	return sess.cross.latest, dto.CrossCheckRequest{
		FacultyID:  a.FacultyID,
		RoomID:     a.RoomID,
		Day:        string(day),
		Slot:       string(slot),
		ExcludeKey: sess.key(),
	}
}

// launchCrossCheck runs the numbered check in the background. Results of a
// superseded check are discarded. Callers must not hold sess.mu.
func (s *SessionService) launchCrossCheck(sess *Session, reqID uint64, req dto.CrossCheckRequest) {
	if reqID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CrossCheckTimeout)
	sess.mu.Lock()
	if sess.cross.latest != reqID {
		sess.mu.Unlock()
		cancel()
		return
	}
	sess.cross.cancel = cancel
	sess.mu.Unlock()

	s.async(func() {
		defer cancel()
		start := s.now()
		result, err := s.cross.Check(ctx, req)

		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.cross.latest != reqID {
			s.metrics.ObserveCrossCheck("stale", s.now().Sub(start))
			s.logger.Debug("discarding superseded cross-timetable result", zap.String("tab_id", sess.id), zap.Uint64("request_id", reqID))
			return
		}
		sess.cross.pending = false
		sess.cross.cancel = nil
		if err != nil {
			sess.cross.result = nil
			sess.cross.err = appErrors.FromError(err).Message
			return
		}
		sess.cross.result = result
	})
}

func (s *SessionService) emit(ctx context.Context, sess *Session, actor, action string, day scheduler.Day, slot scheduler.TimeSlot, a *scheduler.Assignment, details map[string]any) {
	event := models.AuditEvent{
		Action:       action,
		ActorID:      actor,
		SessionID:    sess.id,
		TimetableKey: sess.key(),
		Day:          string(day),
		Slot:         string(slot),
		CreatedAt:    s.now().UTC(),
	}
	if a != nil {
		event.CourseCode = a.CourseCode
		event.RoomID = a.RoomID
		event.FacultyID = a.FacultyID
		event.BatchID = a.BatchID
	}
	if id := requestid.FromContext(ctx); id != "" {
		if details == nil {
			details = make(map[string]any, 1)
		}
		details["requestId"] = id
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			event.Details = types.JSONText(raw)
		}
	}
	s.audit.Record(event)
}

func (s *SessionService) recordConflicts(result scheduler.PlacementResult) {
	for _, c := range result.Conflicts {
		s.metrics.RecordConflict(string(c.Kind), string(c.Severity))
	}
	for _, c := range result.Warnings {
		s.metrics.RecordConflict(string(c.Kind), string(c.Severity))
	}
}

func (s *SessionService) register(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.order = append(s.order, sess.id)
	s.activeID = sess.id
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetOpenTabs(count)
}

func (s *SessionService) lookup(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tab not found")
	}
	return sess, nil
}

func (s *SessionService) findByKey(key string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if sess := s.sessions[id]; sess != nil && sess.currentKey() == key {
			return sess
		}
	}
	return nil
}

func (s *SessionService) isActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID == id
}

func (s *SessionService) describe(sess *Session) *dto.TabDetail {
	active := s.isActive(sess.id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.detail(active)
}

func lookupResources(snap *ReferenceSnapshot, a *scheduler.Assignment) (*models.Room, *models.Batch) {
	if snap == nil || a == nil {
		return nil, nil
	}
	room, _ := snap.Room(a.RoomID)
	batch, _ := snap.Batch(a.BatchID)
	return room, batch
}

func invalidCell(err error) error {
	return appErrors.Clone(appErrors.ErrValidation, err.Error())
}
