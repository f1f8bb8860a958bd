package scheduler

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Thresholds tune the capacity sub-check.
type Thresholds struct {
	// CriticalRatio: batch sizes above floor(capacity × ratio) block placement.
	CriticalRatio float64
	// WarningRatio: batch sizes above capacity × ratio are flagged.
	WarningRatio float64
}

// DefaultThresholds returns the 90% / 80% utilisation limits.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalRatio: 0.9, WarningRatio: 0.8}
}

func (t Thresholds) normalized() Thresholds {
	d := DefaultThresholds()
	if t.CriticalRatio <= 0 || t.CriticalRatio > 1 {
		t.CriticalRatio = d.CriticalRatio
	}
	if t.WarningRatio <= 0 || t.WarningRatio > t.CriticalRatio {
		t.WarningRatio = math.Min(d.WarningRatio, t.CriticalRatio)
	}
	return t
}

// ResourceResult aggregates the four resource sub-checks.
type ResourceResult struct {
	IsValid   bool       `json:"isValid"`
	Conflicts []Conflict `json:"conflicts"`
	Warnings  []Conflict `json:"warnings"`
}

// ValidateResources checks capacity, facilities, batch double-booking and
// break-time spacing for candidate at (day, slot). room and batch may be nil
// when reference data is unavailable; the dependent checks are skipped.
func ValidateResources(g *Grid, day Day, slot TimeSlot, candidate *Assignment, room *models.Room, batch *models.Batch, th Thresholds) ResourceResult {
	var items []Conflict
	if candidate != nil {
		items = append(items, checkCapacity(day, slot, candidate, room, batch, th.normalized())...)
		items = append(items, checkFacilities(day, slot, candidate, room)...)
		items = append(items, checkBatch(g, day, slot, candidate)...)
		items = append(items, checkBreakTime(g, day, slot, candidate)...)
	}
	critical, warnings := Partition(items)
	return ResourceResult{
		IsValid:   len(critical) == 0,
		Conflicts: nonNil(critical),
		Warnings:  nonNil(warnings),
	}
}

// RecommendedCapacity returns the smallest room capacity that keeps size at or
// below the critical utilisation ratio.
func RecommendedCapacity(size int, th Thresholds) int {
	th = th.normalized()
	return int(math.Ceil(float64(size)/th.CriticalRatio - 1e-9))
}

func checkCapacity(day Day, slot TimeSlot, candidate *Assignment, room *models.Room, batch *models.Batch, th Thresholds) []Conflict {
	if room == nil || room.Capacity <= 0 {
		return nil
	}
	size := candidate.BatchSize
	if batch != nil && batch.Size > 0 {
		size = batch.Size
	}
	if size <= 0 {
		return nil
	}
	limit := int(math.Floor(float64(room.Capacity) * th.CriticalRatio))
	details := map[string]any{
		"batchSize": size,
		"capacity":  room.Capacity,
	}
	if size > limit {
		recommended := RecommendedCapacity(size, th)
		details["recommendedCapacity"] = recommended
		return []Conflict{{
			Kind:     ConflictCapacity,
			Severity: SeverityCritical,
			Day:      day,
			Slot:     slot,
			Subject:  candidate.Clone(),
			Message: fmt.Sprintf("room %s (capacity %d) is too small for batch of %d; use a room with capacity of at least %d",
				room.ID, room.Capacity, size, recommended),
			Details: details,
		}}
	}
	if float64(size) > float64(room.Capacity)*th.WarningRatio {
		return []Conflict{{
			Kind:     ConflictCapacity,
			Severity: SeverityWarning,
			Day:      day,
			Slot:     slot,
			Subject:  candidate.Clone(),
			Message:  fmt.Sprintf("room %s will be %.0f%% full", room.ID, float64(size)*100/float64(room.Capacity)),
			Details:  details,
		}}
	}
	return nil
}

func checkFacilities(day Day, slot TimeSlot, candidate *Assignment, room *models.Room) []Conflict {
	if room == nil {
		return nil
	}
	missing := room.MissingFacilities(candidate.RequiredFacilities)
	if len(missing) == 0 {
		return nil
	}
	return []Conflict{{
		Kind:     ConflictFacility,
		Severity: SeverityWarning,
		Day:      day,
		Slot:     slot,
		Subject:  candidate.Clone(),
		Message:  fmt.Sprintf("room %s lacks required facilities: %s", room.ID, strings.Join(missing, ", ")),
		Details:  map[string]any{"missing": missing},
	}}
}

func checkBatch(g *Grid, day Day, slot TimeSlot, candidate *Assignment) []Conflict {
	existing := g.Get(day, slot)
	if existing == nil || existing.sameCourse(candidate) || !sameBatch(existing, candidate) {
		return nil
	}
	return []Conflict{{
		Kind:          ConflictBatch,
		Severity:      SeverityCritical,
		Day:           day,
		Slot:          slot,
		Subject:       candidate.Clone(),
		Colliding:     existing.Clone(),
		CollidingDay:  day,
		CollidingSlot: slot,
		Message:       fmt.Sprintf("batch %s already attends %s at %s %s", candidate.BatchID, existing.CourseCode, day, slot),
	}}
}

// checkBreakTime flags same-day sessions that end where the candidate starts
// or start where the candidate ends, in slot units. Sessions reaching into
// the candidate's span are flagged too.
func checkBreakTime(g *Grid, day Day, slot TimeSlot, candidate *Assignment) []Conflict {
	start, ok := g.layout.SlotIndex(slot)
	if !ok {
		return nil
	}
	end := start + candidate.Span()
	var out []Conflict
	for _, cell := range g.DayCells(day) {
		idx, _ := g.layout.SlotIndex(cell.Slot)
		leading := idx < start && idx+cell.Assignment.Span() >= start
		trailing := idx > start && idx <= end
		if !leading && !trailing {
			continue
		}
		out = append(out, Conflict{
			Kind:          ConflictBreakTime,
			Severity:      SeverityWarning,
			Day:           day,
			Slot:          slot,
			Subject:       candidate.Clone(),
			Colliding:     cell.Assignment.Clone(),
			CollidingDay:  day,
			CollidingSlot: cell.Slot,
			Message:       fmt.Sprintf("%s runs back-to-back with %s at %s; consider leaving buffer time", candidate.CourseCode, cell.Assignment.CourseCode, cell.Slot),
		})
	}
	return out
}

func nonNil(in []Conflict) []Conflict {
	if in == nil {
		return []Conflict{}
	}
	return in
}
