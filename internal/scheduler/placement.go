package scheduler

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// PlacementResult is the single gate a placement must pass before the grid
// is mutated.
type PlacementResult struct {
	CanPlace  bool       `json:"canPlace"`
	Conflicts []Conflict `json:"conflicts"`
	Warnings  []Conflict `json:"warnings"`
}

// ValidatePlacement merges local detection and resource validation.
// Critical items from either become Conflicts; the rest become Warnings.
// A different course already holding the target cell always blocks, even
// when it shares no room, faculty or batch with the candidate.
func ValidatePlacement(g *Grid, day Day, slot TimeSlot, candidate *Assignment, room *models.Room, batch *models.Batch, th Thresholds) (PlacementResult, error) {
	if err := g.layout.Check(day, slot); err != nil {
		return PlacementResult{}, err
	}
	if err := g.layout.CheckSpan(slot, candidate.Span()); err != nil {
		return PlacementResult{}, err
	}
	local := CheckLocalConflicts(g, day, slot, candidate)
	localCritical, localWarnings := Partition(local)
	resources := ValidateResources(g, day, slot, candidate, room, batch, th)

	conflicts := append(append([]Conflict{}, localCritical...), resources.Conflicts...)
	conflicts = append(conflicts, checkOccupied(g, day, slot, candidate, conflicts)...)
	warnings := append(append([]Conflict{}, localWarnings...), resources.Warnings...)
	SortConflicts(g.layout, conflicts)
	SortConflicts(g.layout, warnings)

	return PlacementResult{
		CanPlace:  len(conflicts) == 0,
		Conflicts: conflicts,
		Warnings:  warnings,
	}, nil
}

// checkOccupied reports the occupant of the target cell unless another
// critical item already names it.
func checkOccupied(g *Grid, day Day, slot TimeSlot, candidate *Assignment, critical []Conflict) []Conflict {
	existing := g.Get(day, slot)
	if existing == nil || existing.sameCourse(candidate) {
		return nil
	}
	for _, c := range critical {
		if c.Colliding != nil && c.CollidingDay == day && c.CollidingSlot == slot {
			return nil
		}
	}
	return []Conflict{{
		Kind:          ConflictOccupied,
		Severity:      SeverityCritical,
		Day:           day,
		Slot:          slot,
		Subject:       candidate.Clone(),
		Colliding:     existing.Clone(),
		CollidingDay:  day,
		CollidingSlot: slot,
		Message:       fmt.Sprintf("%s %s is already taken by %s; remove or move it first", day, slot, existing.CourseCode),
	}}
}
