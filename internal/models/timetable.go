package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableIdentity names one persisted timetable.
type TimetableIdentity struct {
	Semester string `db:"semester" json:"semester" validate:"required"`
	Branch   string `db:"branch" json:"branch" validate:"required"`
	Batch    string `db:"batch" json:"batch" validate:"required"`
	Type     string `db:"timetable_type" json:"type" validate:"required"`
}

// Key renders the storage key {semester}-{branch}-{batch}-{type}.
func (i TimetableIdentity) Key() string {
	return fmt.Sprintf("%s-%s-%s-%s",
		strings.TrimSpace(i.Semester),
		strings.TrimSpace(i.Branch),
		strings.TrimSpace(i.Batch),
		strings.TrimSpace(i.Type),
	)
}

// Complete reports whether every identity component is set.
func (i TimetableIdentity) Complete() bool {
	return strings.TrimSpace(i.Semester) != "" && strings.TrimSpace(i.Branch) != "" &&
		strings.TrimSpace(i.Batch) != "" && strings.TrimSpace(i.Type) != ""
}

// Timetable is the persisted form of a weekly grid. Schedule holds the
// day → slot → assignment|null document.
type Timetable struct {
	ID  string `db:"id" json:"id"`
	Key string `db:"timetable_key" json:"key"`
	TimetableIdentity
	Schedule  types.JSONText `db:"schedule" json:"schedule"`
	Version   int            `db:"version" json:"version"`
	UpdatedBy string         `db:"updated_by" json:"updated_by"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
