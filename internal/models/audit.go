package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction constants represent timetable edits to be logged.
const (
	AuditActionPlace           = "PLACE"
	AuditActionRemove          = "REMOVE"
	AuditActionMove            = "MOVE"
	AuditActionApplySuggestion = "APPLY_SUGGESTION"
	AuditActionClearWeek       = "CLEAR_WEEK"
	AuditActionSave            = "SAVE"
)

// AuditEvent is one recorded edit. Cell fields are empty for whole-grid
// actions such as SAVE or CLEAR_WEEK.
type AuditEvent struct {
	ID           string         `db:"id" json:"id"`
	Action       string         `db:"action" json:"action"`
	ActorID      string         `db:"actor_id" json:"actor_id"`
	SessionID    string         `db:"session_id" json:"session_id"`
	TimetableKey string         `db:"timetable_key" json:"timetable_key"`
	Day          string         `db:"day" json:"day,omitempty"`
	Slot         string         `db:"slot" json:"slot,omitempty"`
	CourseCode   string         `db:"course_code" json:"course_code,omitempty"`
	RoomID       string         `db:"room_id" json:"room_id,omitempty"`
	FacultyID    string         `db:"faculty_id" json:"faculty_id,omitempty"`
	BatchID      string         `db:"batch_id" json:"batch_id,omitempty"`
	Details      types.JSONText `db:"details" json:"details,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
