package scheduler

import "sort"

// CellKey identifies a (day, slot) position.
type CellKey struct {
	Day  Day      `json:"day"`
	Slot TimeSlot `json:"slot"`
}

type keySet map[CellKey]struct{}

// Index holds lookup structures derived from a Grid. It is never
// authoritative: when it disagrees with its grid it must be rebuilt.
type Index struct {
	rooms   map[string]keySet
	faculty map[string]keySet
	slots   map[CellKey]*Assignment
}

// BuildIndex derives a fresh index in O(days × slots).
func BuildIndex(g *Grid) *Index {
	idx := &Index{
		rooms:   make(map[string]keySet),
		faculty: make(map[string]keySet),
		slots:   make(map[CellKey]*Assignment),
	}
	for _, cell := range g.Cells() {
		idx.add(CellKey{Day: cell.Day, Slot: cell.Slot}, cell.Assignment)
	}
	return idx
}

// Update applies one cell transition (old → new) in O(1).
func (i *Index) Update(day Day, slot TimeSlot, oldA, newA *Assignment) {
	key := CellKey{Day: day, Slot: slot}
	if oldA != nil {
		i.remove(key, oldA)
	}
	if newA != nil {
		i.add(key, newA)
	}
}

func (i *Index) add(key CellKey, a *Assignment) {
	i.slots[key] = a.Clone()
	if a.RoomID != "" {
		if i.rooms[a.RoomID] == nil {
			i.rooms[a.RoomID] = make(keySet)
		}
		i.rooms[a.RoomID][key] = struct{}{}
	}
	if a.FacultyID != "" {
		if i.faculty[a.FacultyID] == nil {
			i.faculty[a.FacultyID] = make(keySet)
		}
		i.faculty[a.FacultyID][key] = struct{}{}
	}
}

func (i *Index) remove(key CellKey, a *Assignment) {
	delete(i.slots, key)
	if set := i.rooms[a.RoomID]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(i.rooms, a.RoomID)
		}
	}
	if set := i.faculty[a.FacultyID]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(i.faculty, a.FacultyID)
		}
	}
}

// At returns the indexed assignment at a cell.
func (i *Index) At(day Day, slot TimeSlot) *Assignment {
	return i.slots[CellKey{Day: day, Slot: slot}]
}

// RoomOccupied reports whether roomID is booked at the exact cell.
func (i *Index) RoomOccupied(roomID string, day Day, slot TimeSlot) bool {
	_, ok := i.rooms[roomID][CellKey{Day: day, Slot: slot}]
	return ok
}

// FacultyOccupied reports whether facultyID teaches at the exact cell.
func (i *Index) FacultyOccupied(facultyID string, day Day, slot TimeSlot) bool {
	_, ok := i.faculty[facultyID][CellKey{Day: day, Slot: slot}]
	return ok
}

// RoomCells lists the cells booked for roomID, sorted by day then slot label.
func (i *Index) RoomCells(roomID string) []CellKey {
	return sortedKeys(i.rooms[roomID])
}

// FacultyCells lists the cells taught by facultyID.
func (i *Index) FacultyCells(facultyID string) []CellKey {
	return sortedKeys(i.faculty[facultyID])
}

// Len returns the number of indexed cells.
func (i *Index) Len() int {
	return len(i.slots)
}

// Equal reports whether two indexes hold identical contents.
func (i *Index) Equal(o *Index) bool {
	if i == nil || o == nil {
		return i == o
	}
	if len(i.slots) != len(o.slots) || !equalSets(i.rooms, o.rooms) || !equalSets(i.faculty, o.faculty) {
		return false
	}
	for key, a := range i.slots {
		if !a.Equal(o.slots[key]) {
			return false
		}
	}
	return true
}

// Consistent reports whether the index matches the grid it was derived from.
func (i *Index) Consistent(g *Grid) bool {
	return i.Equal(BuildIndex(g))
}

func equalSets(a, b map[string]keySet) bool {
	if len(a) != len(b) {
		return false
	}
	for id, set := range a {
		other, ok := b[id]
		if !ok || len(other) != len(set) {
			return false
		}
		for key := range set {
			if _, ok := other[key]; !ok {
				return false
			}
		}
	}
	return true
}

func sortedKeys(set keySet) []CellKey {
	out := make([]CellKey, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Day == out[b].Day {
			return out[a].Slot < out[b].Slot
		}
		return out[a].Day < out[b].Day
	})
	return out
}
