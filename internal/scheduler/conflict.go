package scheduler

import (
	"fmt"
	"sort"
)

// ConflictKind classifies a detected problem.
type ConflictKind string

const (
	ConflictRoom      ConflictKind = "room"
	ConflictFaculty   ConflictKind = "faculty"
	ConflictBatch     ConflictKind = "batch"
	ConflictBreakTime ConflictKind = "break_time"
	ConflictCapacity  ConflictKind = "capacity"
	ConflictFacility  ConflictKind = "facility"
	ConflictOccupied  ConflictKind = "occupied"
)

// Severity separates blocking from advisory conflicts.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Conflict is a derived report; it is recomputed from grids and never stored
// as the source of truth.
type Conflict struct {
	Kind          ConflictKind   `json:"kind"`
	Severity      Severity       `json:"severity"`
	Day           Day            `json:"day"`
	Slot          TimeSlot       `json:"slot"`
	Subject       *Assignment    `json:"subject,omitempty"`
	Colliding     *Assignment    `json:"colliding,omitempty"`
	CollidingDay  Day            `json:"collidingDay,omitempty"`
	CollidingSlot TimeSlot       `json:"collidingSlot,omitempty"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	Suggestions   []Suggestion   `json:"suggestions,omitempty"`
}

// Critical reports whether the conflict blocks placement.
func (c Conflict) Critical() bool {
	return c.Severity == SeverityCritical
}

// pairKey identifies the unordered pair of colliding cells for one kind.
func (c Conflict) pairKey() string {
	a := fmt.Sprintf("%s@%s", courseOf(c.Subject), c.Slot)
	b := fmt.Sprintf("%s@%s", courseOf(c.Colliding), c.CollidingSlot)
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s|%s|%s", c.Kind, c.Day, a, b)
}

func courseOf(a *Assignment) string {
	if a == nil {
		return ""
	}
	return a.CourseCode
}

// Dedupe collapses conflicts describing the same colliding pair, keeping the
// first (and therefore most severe after SortConflicts) occurrence.
func Dedupe(conflicts []Conflict) []Conflict {
	seen := make(map[string]struct{}, len(conflicts))
	out := make([]Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		key := c.pairKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Partition splits conflicts into critical and warning lists.
func Partition(conflicts []Conflict) (critical, warnings []Conflict) {
	for _, c := range conflicts {
		if c.Critical() {
			critical = append(critical, c)
		} else {
			warnings = append(warnings, c)
		}
	}
	return critical, warnings
}

// SortConflicts orders conflicts by day and slot position within layout,
// critical first, then kind.
func SortConflicts(layout *Layout, conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		da, _ := layout.DayIndex(a.Day)
		db, _ := layout.DayIndex(b.Day)
		if da != db {
			return da < db
		}
		sa, _ := layout.SlotIndex(a.Slot)
		sb, _ := layout.SlotIndex(b.Slot)
		if sa != sb {
			return sa < sb
		}
		if a.Severity != b.Severity {
			return a.Severity == SeverityCritical
		}
		return a.Kind < b.Kind
	})
}
