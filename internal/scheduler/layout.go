package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Layout errors.
var (
	ErrUnknownDay   = errors.New("unknown day")
	ErrUnknownSlot  = errors.New("unknown time slot")
	ErrInvalidSlot  = errors.New("invalid time slot format")
	ErrEmptyLayout  = errors.New("layout requires at least one day and one slot")
	ErrSlotOrdering = errors.New("time slots must be ordered and non-overlapping")
	ErrSpanOverflow = errors.New("session runs past the last slot of the day")
)

// Day is a weekday label used by the institution (e.g. "Monday").
type Day string

// TimeSlot is a canonical slot label in "H:MM-H:MM" form (e.g. "7:00-7:55").
type TimeSlot string

// DefaultDays lists the teaching days used when none are configured.
var DefaultDays = []Day{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DefaultSlots lists ten hourly slots starting at 7:00.
var DefaultSlots = []TimeSlot{
	"7:00-7:55",
	"8:00-8:55",
	"9:00-9:55",
	"10:00-10:55",
	"11:00-11:55",
	"12:00-12:55",
	"13:00-13:55",
	"14:00-14:55",
	"15:00-15:55",
	"16:00-16:55",
}

type slotBounds struct {
	start int
	end   int
}

// Layout is the fixed day × slot frame shared by every grid built from it.
// It is immutable after construction.
type Layout struct {
	days    []Day
	slots   []TimeSlot
	dayIdx  map[Day]int
	slotIdx map[TimeSlot]int
	bounds  []slotBounds
}

// NewLayout validates and builds a layout. Slots must be strictly increasing
// and must not overlap each other.
func NewLayout(days []Day, slots []TimeSlot) (*Layout, error) {
	if len(days) == 0 || len(slots) == 0 {
		return nil, ErrEmptyLayout
	}
	l := &Layout{
		days:    make([]Day, 0, len(days)),
		slots:   make([]TimeSlot, 0, len(slots)),
		dayIdx:  make(map[Day]int, len(days)),
		slotIdx: make(map[TimeSlot]int, len(slots)),
		bounds:  make([]slotBounds, 0, len(slots)),
	}
	for _, day := range days {
		day = Day(strings.TrimSpace(string(day)))
		if day == "" {
			return nil, fmt.Errorf("%w: empty day label", ErrUnknownDay)
		}
		if _, dup := l.dayIdx[day]; dup {
			return nil, fmt.Errorf("duplicate day %q", day)
		}
		l.dayIdx[day] = len(l.days)
		l.days = append(l.days, day)
	}
	prevEnd := -1
	for _, slot := range slots {
		slot = TimeSlot(strings.TrimSpace(string(slot)))
		start, end, err := ParseSlot(slot)
		if err != nil {
			return nil, err
		}
		if start < prevEnd {
			return nil, fmt.Errorf("%w: %s", ErrSlotOrdering, slot)
		}
		if _, dup := l.slotIdx[slot]; dup {
			return nil, fmt.Errorf("duplicate slot %q", slot)
		}
		prevEnd = end
		l.slotIdx[slot] = len(l.slots)
		l.slots = append(l.slots, slot)
		l.bounds = append(l.bounds, slotBounds{start: start, end: end})
	}
	return l, nil
}

// DefaultLayout returns the Monday–Saturday, ten slot layout.
func DefaultLayout() *Layout {
	l, err := NewLayout(DefaultDays, DefaultSlots)
	if err != nil {
		panic(err)
	}
	return l
}

// Days returns the ordered day list.
func (l *Layout) Days() []Day {
	out := make([]Day, len(l.days))
	copy(out, l.days)
	return out
}

// Slots returns the ordered slot list.
func (l *Layout) Slots() []TimeSlot {
	out := make([]TimeSlot, len(l.slots))
	copy(out, l.slots)
	return out
}

// DayIndex reports the ordinal of day within the layout.
func (l *Layout) DayIndex(day Day) (int, bool) {
	idx, ok := l.dayIdx[day]
	return idx, ok
}

// SlotIndex reports the ordinal of slot within the layout.
func (l *Layout) SlotIndex(slot TimeSlot) (int, bool) {
	idx, ok := l.slotIdx[slot]
	return idx, ok
}

// Contains reports whether both day and slot belong to the layout.
func (l *Layout) Contains(day Day, slot TimeSlot) bool {
	_, okDay := l.dayIdx[day]
	_, okSlot := l.slotIdx[slot]
	return okDay && okSlot
}

// Check returns a typed error when day or slot is not part of the layout.
func (l *Layout) Check(day Day, slot TimeSlot) error {
	if _, ok := l.dayIdx[day]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDay, day)
	}
	if _, ok := l.slotIdx[slot]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	return nil
}

// CheckSpan returns ErrSpanOverflow when a session of duration slots starting
// at slot would run past the last slot of the day.
func (l *Layout) CheckSpan(slot TimeSlot, duration int) error {
	idx, ok := l.slotIdx[slot]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	if duration < 1 {
		duration = 1
	}
	if idx+duration > len(l.slots) {
		return fmt.Errorf("%w: %d slots from %s", ErrSpanOverflow, duration, slot)
	}
	return nil
}

// Span returns the half-open minute range [start, end) covered by an
// assignment starting at slot and lasting duration slot units.
func (l *Layout) Span(slot TimeSlot, duration int) (int, int, bool) {
	idx, ok := l.slotIdx[slot]
	if !ok {
		return 0, 0, false
	}
	if duration < 1 {
		duration = 1
	}
	b := l.bounds[idx]
	return b.start, b.start + (b.end-b.start)*duration, true
}

// ParseSlot converts "H:MM-H:MM" into minutes from midnight.
func ParseSlot(slot TimeSlot) (int, int, error) {
	parts := strings.SplitN(string(slot), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if end <= start {
		return 0, 0, fmt.Errorf("%w: %q ends before it starts", ErrInvalidSlot, slot)
	}
	return start, end, nil
}

func parseClock(raw string) (int, error) {
	hm := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(hm) != 2 {
		return 0, fmt.Errorf("clock %q", raw)
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("hour %q", hm[0])
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("minute %q", hm[1])
	}
	return h*60 + m, nil
}

func overlaps(start1, end1, start2, end2 int) bool {
	return start1 < end2 && start2 < end1
}
