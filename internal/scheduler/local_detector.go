package scheduler

import "fmt"

// CheckLocalConflicts reports room and faculty collisions between candidate
// placed at (day, slot) and the assignments already in g.
//
// A different course occupying the exact cell with the same room or faculty is
// critical. Any other same-day assignment whose occupied minute range overlaps
// the candidate's range (slot bounds × duration) is a warning.
func CheckLocalConflicts(g *Grid, day Day, slot TimeSlot, candidate *Assignment) []Conflict {
	if candidate == nil || !g.layout.Contains(day, slot) {
		return nil
	}
	var conflicts []Conflict

	if existing := g.Get(day, slot); existing != nil && !existing.sameCourse(candidate) {
		if sameRoom(existing, candidate) {
			conflicts = append(conflicts, newLocalConflict(ConflictRoom, SeverityCritical, day, slot, candidate, slot, existing,
				fmt.Sprintf("room %s is already booked for %s at %s %s", candidate.RoomID, existing.CourseCode, day, slot)))
		}
		if sameFaculty(existing, candidate) {
			conflicts = append(conflicts, newLocalConflict(ConflictFaculty, SeverityCritical, day, slot, candidate, slot, existing,
				fmt.Sprintf("faculty %s already teaches %s at %s %s", candidate.FacultyID, existing.CourseCode, day, slot)))
		}
	}

	cStart, cEnd, _ := g.layout.Span(slot, candidate.Span())
	for _, cell := range g.DayCells(day) {
		if cell.Slot == slot || cell.Assignment.sameCourse(candidate) {
			continue
		}
		start, end, _ := g.layout.Span(cell.Slot, cell.Assignment.Span())
		if !overlaps(cStart, cEnd, start, end) {
			continue
		}
		if sameRoom(cell.Assignment, candidate) {
			conflicts = append(conflicts, newLocalConflict(ConflictRoom, SeverityWarning, day, slot, candidate, cell.Slot, cell.Assignment,
				fmt.Sprintf("room %s overlaps with %s (%s %s) because of session duration", candidate.RoomID, cell.Assignment.CourseCode, day, cell.Slot)))
		}
		if sameFaculty(cell.Assignment, candidate) {
			conflicts = append(conflicts, newLocalConflict(ConflictFaculty, SeverityWarning, day, slot, candidate, cell.Slot, cell.Assignment,
				fmt.Sprintf("faculty %s overlaps with %s (%s %s) because of session duration", candidate.FacultyID, cell.Assignment.CourseCode, day, cell.Slot)))
		}
	}
	return Dedupe(conflicts)
}

// AllTimetableConflicts runs the local detector for every occupied cell and
// returns one conflict per colliding pair and kind.
func AllTimetableConflicts(g *Grid) []Conflict {
	var all []Conflict
	for _, cell := range g.Cells() {
		all = append(all, CheckLocalConflicts(g, cell.Day, cell.Slot, cell.Assignment)...)
	}
	SortConflicts(g.layout, all)
	return Dedupe(all)
}

func newLocalConflict(kind ConflictKind, severity Severity, day Day, slot TimeSlot, subject *Assignment, collidingSlot TimeSlot, colliding *Assignment, message string) Conflict {
	return Conflict{
		Kind:          kind,
		Severity:      severity,
		Day:           day,
		Slot:          slot,
		Subject:       subject.Clone(),
		Colliding:     colliding.Clone(),
		CollidingDay:  day,
		CollidingSlot: collidingSlot,
		Message:       message,
	}
}
