package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Grid errors.
var (
	ErrCellEmpty    = errors.New("no assignment at the requested cell")
	ErrCellOccupied = errors.New("cell already holds an assignment")
)

// SessionType distinguishes lecture, tutorial and practical sessions.
type SessionType string

const (
	SessionLecture   SessionType = "lecture"
	SessionTutorial  SessionType = "tutorial"
	SessionPractical SessionType = "practical"
)

// Assignment is the canonical value stored in a grid cell. Detector code only
// ever reads these fields.
type Assignment struct {
	CourseCode         string      `json:"courseCode"`
	CourseTitle        string      `json:"courseTitle,omitempty"`
	SessionType        SessionType `json:"sessionType,omitempty"`
	FacultyID          string      `json:"facultyId"`
	FacultyName        string      `json:"facultyName,omitempty"`
	RoomID             string      `json:"roomId"`
	BatchID            string      `json:"batchId"`
	BatchSize          int         `json:"batchSize,omitempty"`
	RequiredFacilities []string    `json:"requiredFacilities,omitempty"`
	Duration           int         `json:"duration"`
}

// NewAssignment builds the canonical assignment from reference data.
func NewAssignment(course models.CourseBlock, faculty models.Faculty, room models.Room, batch models.Batch, sessionType SessionType, duration int) *Assignment {
	if duration < 1 {
		duration = 1
	}
	var facilities []string
	if len(course.RequiredFacilities) > 0 {
		facilities = append(facilities, course.RequiredFacilities...)
	}
	return &Assignment{
		CourseCode:         course.Code,
		CourseTitle:        course.Title,
		SessionType:        sessionType,
		FacultyID:          faculty.ID,
		FacultyName:        faculty.Name,
		RoomID:             room.ID,
		BatchID:            batch.ID,
		BatchSize:          batch.Size,
		RequiredFacilities: facilities,
		Duration:           duration,
	}
}

// Span returns the duration in slot units, never less than one.
func (a *Assignment) Span() int {
	if a == nil || a.Duration < 1 {
		return 1
	}
	return a.Duration
}

// Clone returns a deep copy.
func (a *Assignment) Clone() *Assignment {
	if a == nil {
		return nil
	}
	c := *a
	if a.RequiredFacilities != nil {
		c.RequiredFacilities = append([]string(nil), a.RequiredFacilities...)
	}
	return &c
}

// Equal compares two assignments by value.
func (a *Assignment) Equal(b *Assignment) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.CourseCode != b.CourseCode || a.CourseTitle != b.CourseTitle || a.SessionType != b.SessionType ||
		a.FacultyID != b.FacultyID || a.FacultyName != b.FacultyName || a.RoomID != b.RoomID ||
		a.BatchID != b.BatchID || a.BatchSize != b.BatchSize || a.Span() != b.Span() {
		return false
	}
	if len(a.RequiredFacilities) != len(b.RequiredFacilities) {
		return false
	}
	for i := range a.RequiredFacilities {
		if a.RequiredFacilities[i] != b.RequiredFacilities[i] {
			return false
		}
	}
	return true
}

func (a *Assignment) sameCourse(b *Assignment) bool {
	return a != nil && b != nil && a.CourseCode == b.CourseCode
}

func sameRoom(a, b *Assignment) bool {
	return a != nil && b != nil && a.RoomID != "" && a.RoomID == b.RoomID
}

func sameFaculty(a, b *Assignment) bool {
	return a != nil && b != nil && a.FacultyID != "" && a.FacultyID == b.FacultyID
}

func sameBatch(a, b *Assignment) bool {
	return a != nil && b != nil && a.BatchID != "" && a.BatchID == b.BatchID
}

// Cell is an occupied grid position.
type Cell struct {
	Day        Day         `json:"day"`
	Slot       TimeSlot    `json:"slot"`
	Assignment *Assignment `json:"assignment"`
}

// Grid maps (day, slot) to at most one assignment. Set and Clear mutate the
// receiver; use Clone before capturing a snapshot.
type Grid struct {
	layout *Layout
	cells  [][]*Assignment
}

// NewGrid returns an empty grid with every cell set to nil.
func NewGrid(layout *Layout) *Grid {
	cells := make([][]*Assignment, len(layout.days))
	for i := range cells {
		cells[i] = make([]*Assignment, len(layout.slots))
	}
	return &Grid{layout: layout, cells: cells}
}

// Layout returns the grid's frame.
func (g *Grid) Layout() *Layout {
	return g.layout
}

func (g *Grid) position(day Day, slot TimeSlot) (int, int, error) {
	d, ok := g.layout.dayIdx[day]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownDay, day)
	}
	s, ok := g.layout.slotIdx[slot]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	return d, s, nil
}

// Get returns the assignment at the cell or nil.
func (g *Grid) Get(day Day, slot TimeSlot) *Assignment {
	d, s, err := g.position(day, slot)
	if err != nil {
		return nil
	}
	return g.cells[d][s]
}

// HasAssignment reports whether the cell is occupied.
func (g *Grid) HasAssignment(day Day, slot TimeSlot) bool {
	return g.Get(day, slot) != nil
}

// Set stores a copy of a at the cell and returns the previous occupant.
func (g *Grid) Set(day Day, slot TimeSlot, a *Assignment) (*Assignment, error) {
	d, s, err := g.position(day, slot)
	if err != nil {
		return nil, err
	}
	prev := g.cells[d][s]
	g.cells[d][s] = a.Clone()
	return prev, nil
}

// Clear empties the cell and returns the previous occupant.
func (g *Grid) Clear(day Day, slot TimeSlot) (*Assignment, error) {
	return g.Set(day, slot, nil)
}

// Clone deep-copies the grid; no assignment is shared with the original.
func (g *Grid) Clone() *Grid {
	out := &Grid{layout: g.layout, cells: make([][]*Assignment, len(g.cells))}
	for d, row := range g.cells {
		out.cells[d] = make([]*Assignment, len(row))
		for s, a := range row {
			out.cells[d][s] = a.Clone()
		}
	}
	return out
}

// Equal compares two grids cell by cell.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	if len(g.cells) != len(o.cells) {
		return false
	}
	for d := range g.cells {
		if len(g.cells[d]) != len(o.cells[d]) {
			return false
		}
		for s := range g.cells[d] {
			if !g.cells[d][s].Equal(o.cells[d][s]) {
				return false
			}
		}
	}
	return true
}

// Cells returns occupied cells in day then slot order.
func (g *Grid) Cells() []Cell {
	var out []Cell
	for d, row := range g.cells {
		for s, a := range row {
			if a == nil {
				continue
			}
			out = append(out, Cell{Day: g.layout.days[d], Slot: g.layout.slots[s], Assignment: a})
		}
	}
	return out
}

// DayCells returns occupied cells on one day in slot order.
func (g *Grid) DayCells(day Day) []Cell {
	d, ok := g.layout.dayIdx[day]
	if !ok {
		return nil
	}
	var out []Cell
	for s, a := range g.cells[d] {
		if a != nil {
			out = append(out, Cell{Day: day, Slot: g.layout.slots[s], Assignment: a})
		}
	}
	return out
}

// Len returns the number of occupied cells.
func (g *Grid) Len() int {
	n := 0
	for _, row := range g.cells {
		for _, a := range row {
			if a != nil {
				n++
			}
		}
	}
	return n
}

// MarshalJSON renders day → slot → assignment with explicit nulls.
func (g *Grid) MarshalJSON() ([]byte, error) {
	out := make(map[Day]map[TimeSlot]*Assignment, len(g.layout.days))
	for d, day := range g.layout.days {
		row := make(map[TimeSlot]*Assignment, len(g.layout.slots))
		for s, slot := range g.layout.slots {
			row[slot] = g.cells[d][s]
		}
		out[day] = row
	}
	return json.Marshal(out)
}

// DecodeGrid parses a persisted schedule into a grid over layout. Missing days
// or slots decode as empty cells; unknown ones are rejected.
func DecodeGrid(layout *Layout, data []byte) (*Grid, error) {
	g := NewGrid(layout)
	if len(data) == 0 {
		return g, nil
	}
	var raw map[Day]map[TimeSlot]*Assignment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	for day, row := range raw {
		for slot, a := range row {
			if a == nil {
				if err := layout.Check(day, slot); err != nil {
					return nil, err
				}
				continue
			}
			if _, err := g.Set(day, slot, a); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// LookupCell reads a single cell from a persisted schedule without a layout.
func LookupCell(data []byte, day Day, slot TimeSlot) (*Assignment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[Day]map[TimeSlot]*Assignment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return raw[day][slot], nil
}
