package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// TabFilters is the per-tab selection state.
type TabFilters struct {
	Semester string `json:"semester"`
	Branch   string `json:"branch"`
	Batch    string `json:"batch"`
	Type     string `json:"type"`
	Room     string `json:"room"`
}

// Identity returns the persisted timetable identity selected by the filters.
func (f TabFilters) Identity() models.TimetableIdentity {
	return models.TimetableIdentity{Semester: f.Semester, Branch: f.Branch, Batch: f.Batch, Type: f.Type}
}

// CreateTabRequest opens a blank tab with optional initial filters.
type CreateTabRequest struct {
	Filters TabFilters `json:"filters"`
}

// OpenTabRequest loads a persisted timetable into a tab.
type OpenTabRequest struct {
	models.TimetableIdentity
}

// ConfigureTabRequest merges only the provided filter keys.
type ConfigureTabRequest struct {
	Semester *string `json:"semester"`
	Branch   *string `json:"branch"`
	Batch    *string `json:"batch"`
	Type     *string `json:"type"`
	Room     *string `json:"room"`
}

// PlacementRequest names a course session to place at a cell. Reference ids
// are resolved into a canonical assignment before validation.
type PlacementRequest struct {
	Day         string `json:"day" validate:"required"`
	Slot        string `json:"slot" validate:"required"`
	CourseCode  string `json:"courseCode" validate:"required"`
	FacultyID   string `json:"facultyId" validate:"required"`
	RoomID      string `json:"roomId" validate:"required"`
	BatchID     string `json:"batchId" validate:"required"`
	SessionType string `json:"sessionType" validate:"omitempty,oneof=lecture tutorial practical"`
	Duration    int    `json:"duration" validate:"omitempty,min=1,max=4"`
}

// CellRequest addresses one grid cell.
type CellRequest struct {
	Day  string `form:"day" json:"day" validate:"required"`
	Slot string `form:"slot" json:"slot" validate:"required"`
}

// MoveRequest relocates the assignment at (FromDay, FromSlot).
type MoveRequest struct {
	FromDay  string `json:"fromDay" validate:"required"`
	FromSlot string `json:"fromSlot" validate:"required"`
	ToDay    string `json:"toDay" validate:"required"`
	ToSlot   string `json:"toSlot" validate:"required"`
}

// SuggestionRequest selects conflicts to resolve: either those reported at a
// grid cell (optionally narrowed by kind) or those of a pending placement.
type SuggestionRequest struct {
	Day       string            `json:"day" validate:"required_without=Placement"`
	Slot      string            `json:"slot" validate:"required_without=Placement"`
	Kind      string            `json:"kind" validate:"omitempty,oneof=room faculty batch break_time capacity facility occupied"`
	Placement *PlacementRequest `json:"placement"`
}

// ApplySuggestionRequest posts back a suggestion previously returned.
type ApplySuggestionRequest struct {
	Suggestion scheduler.Suggestion `json:"suggestion"`
}

// CrossCheckRequest looks for a faculty member or room committed in other
// persisted timetables at one cell.
type CrossCheckRequest struct {
	FacultyID    string `json:"facultyId" validate:"required_without=RoomID"`
	RoomID       string `json:"roomId" validate:"required_without=FacultyID"`
	Day          string `json:"day" validate:"required"`
	Slot         string `json:"slot" validate:"required"`
	ExcludeKey   string `json:"excludeKey"`
	ExcludeTabID string `json:"excludeTabId,omitempty"`
}

// CrossConflict is a hit in another timetable.
type CrossConflict struct {
	TimetableID string                `json:"timetableId"`
	Key         string                `json:"key"`
	Semester    string                `json:"semester"`
	Branch      string                `json:"branch"`
	Batch       string                `json:"batch"`
	Type        string                `json:"type"`
	Day         string                `json:"day"`
	Slot        string                `json:"slot"`
	Assignment  *scheduler.Assignment `json:"assignment"`
}

// CrossCheckResult is advisory and never blocks a placement.
type CrossCheckResult struct {
	FacultyConflicts []CrossConflict `json:"facultyConflicts"`
	RoomConflicts    []CrossConflict `json:"roomConflicts"`
	CheckedAt        time.Time       `json:"checkedAt"`
}

// CrossAdvisory is the latest cross-timetable check attached to a tab.
type CrossAdvisory struct {
	RequestID uint64            `json:"requestId"`
	Day       string            `json:"day"`
	Slot      string            `json:"slot"`
	Pending   bool              `json:"pending"`
	Result    *CrossCheckResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// TabSummary describes a tab without its grid.
type TabSummary struct {
	ID            string     `json:"id"`
	Key           string     `json:"key,omitempty"`
	TimetableID   string     `json:"timetableId,omitempty"`
	Filters       TabFilters `json:"filters"`
	Active        bool       `json:"active"`
	Dirty         bool       `json:"dirty"`
	Assignments   int        `json:"assignments"`
	CriticalCount int        `json:"criticalCount"`
	WarningCount  int        `json:"warningCount"`
	HistoryIndex  int        `json:"historyIndex"`
	HistoryLength int        `json:"historyLength"`
	CanUndo       bool       `json:"canUndo"`
	CanRedo       bool       `json:"canRedo"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TabDetail is a tab with its grid and derived conflicts.
type TabDetail struct {
	TabSummary
	Days       []scheduler.Day      `json:"days"`
	Slots      []scheduler.TimeSlot `json:"slots"`
	Grid       *scheduler.Grid      `json:"grid"`
	Conflicts  []scheduler.Conflict `json:"conflicts"`
	CrossCheck *CrossAdvisory       `json:"crossCheck,omitempty"`
}

// PlacementResponse reports the outcome of a grid edit. Placed is false when
// critical conflicts blocked it; the grid is then unchanged.
type PlacementResponse struct {
	Placed              bool                      `json:"placed"`
	Replaced            *scheduler.Assignment     `json:"replaced,omitempty"`
	Result              scheduler.PlacementResult `json:"result"`
	CrossCheckRequestID uint64                    `json:"crossCheckRequestId,omitempty"`
	Tab                 *TabDetail                `json:"tab,omitempty"`
}

// ConflictReport lists grid conflicts and the latest cross-timetable advisory.
type ConflictReport struct {
	Conflicts     []scheduler.Conflict `json:"conflicts"`
	CriticalCount int                  `json:"criticalCount"`
	WarningCount  int                  `json:"warningCount"`
	CrossCheck    *CrossAdvisory       `json:"crossCheck,omitempty"`
}

// SuggestionResponse returns conflicts with their remediation suggestions.
type SuggestionResponse struct {
	Conflicts []scheduler.Conflict `json:"conflicts"`
}
