package scheduler

import (
	"errors"
	"fmt"
	"math"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Resolver errors.
var (
	ErrInvalidSuggestion = errors.New("suggestion has no subject assignment")
	ErrStaleSuggestion   = errors.New("suggestion no longer matches the grid")
)

// SuggestionType names the remediation a suggestion performs.
type SuggestionType string

const (
	SuggestChangeRoom    SuggestionType = "change_room"
	SuggestChangeTime    SuggestionType = "change_time"
	SuggestChangeFaculty SuggestionType = "change_faculty"
)

// Priority orders suggestions for display.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Effort estimates how disruptive a suggestion is for display.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// DefaultMaxAlternativeSlots bounds the change_time search.
const DefaultMaxAlternativeSlots = 5

// Suggestion is a proposed mutation resolving one conflict. Subject is the
// assignment being changed; InGrid tells whether it already sits at
// (Day, Slot) or is a pending placement.
type Suggestion struct {
	ID          string         `json:"id"`
	Type        SuggestionType `json:"type"`
	Priority    Priority       `json:"priority"`
	Effort      Effort         `json:"effort"`
	Description string         `json:"description"`
	Day         Day            `json:"day"`
	Slot        TimeSlot       `json:"slot"`
	Subject     *Assignment    `json:"subject"`
	InGrid      bool           `json:"inGrid"`
	RoomID      string         `json:"roomId,omitempty"`
	FacultyID   string         `json:"facultyId,omitempty"`
	FacultyName string         `json:"facultyName,omitempty"`
	TargetDay   Day            `json:"targetDay,omitempty"`
	TargetSlot  TimeSlot       `json:"targetSlot,omitempty"`
}

// Result returns the assignment as it will look after the suggestion is
// applied, and the cell it will occupy.
func (s Suggestion) Result() (*Assignment, Day, TimeSlot) {
	placed := s.Subject.Clone()
	day, slot := s.Day, s.Slot
	switch s.Type {
	case SuggestChangeRoom:
		placed.RoomID = s.RoomID
	case SuggestChangeFaculty:
		placed.FacultyID = s.FacultyID
		placed.FacultyName = s.FacultyName
	case SuggestChangeTime:
		day, slot = s.TargetDay, s.TargetSlot
	}
	return placed, day, slot
}

// ResolverOptions tune suggestion generation.
type ResolverOptions struct {
	MaxAlternativeSlots int
	Thresholds          Thresholds
}

// GenerateSuggestions enumerates heuristic remediations for conflict c.
func GenerateSuggestions(g *Grid, c Conflict, rooms []models.Room, faculty []models.Faculty, opts ResolverOptions) []Suggestion {
	subject := c.Subject
	if subject == nil || !g.layout.Contains(c.Day, c.Slot) {
		return nil
	}
	if opts.MaxAlternativeSlots <= 0 {
		opts.MaxAlternativeSlots = DefaultMaxAlternativeSlots
	}
	opts.Thresholds = opts.Thresholds.normalized()

	inGrid := g.Get(c.Day, c.Slot).Equal(subject)
	work := g
	if inGrid {
		work = g.Clone()
		_, _ = work.Clear(c.Day, c.Slot)
	}
	// A pending placement on an occupied cell can only move; swapping its
	// room or faculty would still leave the cell double-occupied.
	cellBlocked := !inGrid && work.HasAssignment(c.Day, c.Slot)
	idx := BuildIndex(work)
	r := resolver{grid: work, index: idx, conflict: c, subject: subject, inGrid: inGrid, opts: opts}

	var out []Suggestion
	switch c.Kind {
	case ConflictRoom:
		if !cellBlocked {
			out = append(out, r.rooms(rooms, roomFilterAny)...)
		}
		out = append(out, r.times()...)
	case ConflictFaculty:
		if !cellBlocked {
			out = append(out, r.faculty(faculty)...)
		}
		out = append(out, r.times()...)
	case ConflictCapacity:
		if !cellBlocked {
			out = append(out, r.rooms(rooms, roomFilterCapacity)...)
		}
	case ConflictFacility:
		if !cellBlocked {
			out = append(out, r.rooms(rooms, roomFilterFacilities)...)
		}
	case ConflictBatch, ConflictBreakTime, ConflictOccupied:
		out = append(out, r.times()...)
	}
	return out
}

// ApplySuggestion returns a new grid with the suggestion applied. g is not
// modified and history is not touched.
func ApplySuggestion(g *Grid, s Suggestion) (*Grid, error) {
	if s.Subject == nil {
		return nil, ErrInvalidSuggestion
	}
	out := g.Clone()
	if s.InGrid {
		if !out.Get(s.Day, s.Slot).Equal(s.Subject) {
			return nil, fmt.Errorf("%w: %s %s", ErrStaleSuggestion, s.Day, s.Slot)
		}
		if _, err := out.Clear(s.Day, s.Slot); err != nil {
			return nil, err
		}
	}
	placed, day, slot := s.Result()
	if err := out.layout.Check(day, slot); err != nil {
		return nil, err
	}
	if out.HasAssignment(day, slot) {
		return nil, fmt.Errorf("%w: %s %s", ErrCellOccupied, day, slot)
	}
	if _, err := out.Set(day, slot, placed); err != nil {
		return nil, err
	}
	return out, nil
}

type roomFilter int

const (
	roomFilterAny roomFilter = iota
	roomFilterCapacity
	roomFilterFacilities
)

type resolver struct {
	grid     *Grid
	index    *Index
	conflict Conflict
	subject  *Assignment
	inGrid   bool
	opts     ResolverOptions
}

func (r resolver) base(t SuggestionType) Suggestion {
	return Suggestion{
		Type:    t,
		Day:     r.conflict.Day,
		Slot:    r.conflict.Slot,
		Subject: r.subject.Clone(),
		InGrid:  r.inGrid,
	}
}

func (r resolver) rooms(rooms []models.Room, filter roomFilter) []Suggestion {
	var out []Suggestion
	size := r.subject.BatchSize
	for _, room := range rooms {
		if room.ID == "" || room.ID == r.subject.RoomID {
			continue
		}
		if r.busy(func(a *Assignment) bool { return a.RoomID == room.ID }, r.index.RoomOccupied(room.ID, r.conflict.Day, r.conflict.Slot)) {
			continue
		}
		fits := size <= 0 || size <= int(math.Floor(float64(room.Capacity)*r.opts.Thresholds.CriticalRatio))
		equipped := len(room.MissingFacilities(r.subject.RequiredFacilities)) == 0
		if filter == roomFilterCapacity && !fits {
			continue
		}
		if filter == roomFilterFacilities && !equipped {
			continue
		}
		s := r.base(SuggestChangeRoom)
		s.ID = fmt.Sprintf("%s:%s", SuggestChangeRoom, room.ID)
		s.RoomID = room.ID
		s.Priority = PriorityMedium
		if fits && equipped {
			s.Priority = PriorityHigh
		}
		s.Effort = EffortLow
		s.Description = fmt.Sprintf("Move %s to room %s (capacity %d)", r.subject.CourseCode, room.ID, room.Capacity)
		out = append(out, s)
	}
	return out
}

func (r resolver) faculty(faculty []models.Faculty) []Suggestion {
	var out []Suggestion
	for _, f := range faculty {
		if f.ID == "" || f.ID == r.subject.FacultyID {
			continue
		}
		if r.busy(func(a *Assignment) bool { return a.FacultyID == f.ID }, r.index.FacultyOccupied(f.ID, r.conflict.Day, r.conflict.Slot)) {
			continue
		}
		s := r.base(SuggestChangeFaculty)
		s.ID = fmt.Sprintf("%s:%s", SuggestChangeFaculty, f.ID)
		s.FacultyID = f.ID
		s.FacultyName = f.Name
		s.Priority = PriorityMedium
		s.Effort = EffortMedium
		s.Description = fmt.Sprintf("Assign %s to teach %s", f.Name, r.subject.CourseCode)
		out = append(out, s)
	}
	return out
}

// busy reports whether a resource matched by match is in use during the
// subject's time range at the conflict cell. exact is the index answer for
// the exact cell and short-circuits the overlap scan.
func (r resolver) busy(match func(*Assignment) bool, exact bool) bool {
	if exact {
		return true
	}
	start, end, _ := r.grid.layout.Span(r.conflict.Slot, r.subject.Span())
	for _, cell := range r.grid.DayCells(r.conflict.Day) {
		if !match(cell.Assignment) {
			continue
		}
		cs, ce, _ := r.grid.layout.Span(cell.Slot, cell.Assignment.Span())
		if overlaps(start, end, cs, ce) {
			return true
		}
	}
	return false
}

func (r resolver) times() []Suggestion {
	layout := r.grid.layout
	days := []Day{r.conflict.Day}
	for _, d := range layout.days {
		if d != r.conflict.Day {
			days = append(days, d)
		}
	}
	var out []Suggestion
	for _, day := range days {
		for _, slot := range layout.slots {
			if len(out) >= r.opts.MaxAlternativeSlots {
				return out
			}
			if day == r.conflict.Day && slot == r.conflict.Slot {
				continue
			}
			if layout.CheckSpan(slot, r.subject.Span()) != nil || r.grid.HasAssignment(day, slot) {
				continue
			}
			if len(CheckLocalConflicts(r.grid, day, slot, r.subject)) > 0 {
				continue
			}
			s := r.base(SuggestChangeTime)
			s.ID = fmt.Sprintf("%s:%s@%s", SuggestChangeTime, day, slot)
			s.TargetDay = day
			s.TargetSlot = slot
			if day == r.conflict.Day {
				s.Priority = PriorityHigh
				s.Effort = EffortMedium
			} else {
				s.Priority = PriorityMedium
				s.Effort = EffortHigh
			}
			s.Description = fmt.Sprintf("Move %s to %s %s", r.subject.CourseCode, day, slot)
			out = append(out, s)
		}
	}
	return out
}
