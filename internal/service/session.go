package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// Session is one open editing tab. Every field is guarded by mu; the grid,
// its index, derived conflicts and history always change together.
type Session struct {
	mu sync.Mutex

	id          string
	filters     dto.TabFilters
	timetableID string

	grid      *scheduler.Grid
	index     *scheduler.Index
	conflicts []scheduler.Conflict
	history   *scheduler.History

	dirty    bool
	revision uint64
	cross    crossState

	createdAt time.Time
	updatedAt time.Time
}

// crossState tracks the in-flight cross-timetable check. Only the result of
// the request numbered latest is ever applied.
type crossState struct {
	latest  uint64
	pending bool
	day     scheduler.Day
	slot    scheduler.TimeSlot
	result  *dto.CrossCheckResult
	err     string
	cancel  context.CancelFunc
}

func newSession(id string, grid *scheduler.Grid, filters dto.TabFilters, historyLimit int, now time.Time) *Session {
	sess := &Session{
		id:        id,
		filters:   filters,
		grid:      grid,
		index:     scheduler.BuildIndex(grid),
		history:   scheduler.NewHistory(grid, historyLimit),
		createdAt: now,
		updatedAt: now,
	}
	sess.refresh()
	return sess
}

// key returns the persisted timetable key, or "" while the identity is
// incomplete.
func (s *Session) key() string {
	identity := s.filters.Identity()
	if !identity.Complete() {
		return ""
	}
	return identity.Key()
}

func (s *Session) currentKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key()
}

func (s *Session) refresh() {
	s.conflicts = scheduler.AllTimetableConflicts(s.grid)
	if s.conflicts == nil {
		s.conflicts = []scheduler.Conflict{}
	}
}

func (s *Session) counts() (critical, warning int) {
	for _, c := range s.conflicts {
		if c.Critical() {
			critical++
		} else {
			warning++
		}
	}
	return critical, warning
}

func (s *Session) stopCrossCheck() {
	if s.cross.cancel != nil {
		s.cross.cancel()
		s.cross.cancel = nil
	}
}

func (s *Session) summary(active bool) dto.TabSummary {
	critical, warning := s.counts()
	return dto.TabSummary{
		ID:            s.id,
		Key:           s.key(),
		TimetableID:   s.timetableID,
		Filters:       s.filters,
		Active:        active,
		Dirty:         s.dirty,
		Assignments:   s.grid.Len(),
		CriticalCount: critical,
		WarningCount:  warning,
		HistoryIndex:  s.history.Index(),
		HistoryLength: s.history.Len(),
		CanUndo:       s.history.CanUndo(),
		CanRedo:       s.history.CanRedo(),
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

func (s *Session) advisory() *dto.CrossAdvisory {
	if s.cross.latest == 0 {
		return nil
	}
	return &dto.CrossAdvisory{
		RequestID: s.cross.latest,
		Day:       string(s.cross.day),
		Slot:      string(s.cross.slot),
		Pending:   s.cross.pending,
		Result:    s.cross.result,
		Error:     s.cross.err,
	}
}

func (s *Session) detail(active bool) *dto.TabDetail {
	layout := s.grid.Layout()
	return &dto.TabDetail{
		TabSummary: s.summary(active),
		Days:       layout.Days(),
		Slots:      layout.Slots(),
		Grid:       s.grid.Clone(),
		Conflicts:  append([]scheduler.Conflict{}, s.conflicts...),
		CrossCheck: s.advisory(),
	}
}
