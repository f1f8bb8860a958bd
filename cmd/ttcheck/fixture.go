package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
)

// fixture is a self-contained timetable used for offline checks.
type fixture struct {
	Days       []string           `yaml:"days"`
	Slots      []string           `yaml:"slots"`
	Thresholds *fixtureThresholds `yaml:"thresholds"`
	Rooms      []fixtureRoom      `yaml:"rooms"`
	Batches    []fixtureBatch     `yaml:"batches"`
	Placements []fixturePlacement `yaml:"placements"`
}

type fixtureThresholds struct {
	Critical float64 `yaml:"critical"`
	Warning  float64 `yaml:"warning"`
}

type fixtureRoom struct {
	ID         string   `yaml:"id"`
	Capacity   int      `yaml:"capacity"`
	Facilities []string `yaml:"facilities"`
}

type fixtureBatch struct {
	ID   string `yaml:"id"`
	Size int    `yaml:"size"`
}

type fixturePlacement struct {
	Day        string   `yaml:"day"`
	Slot       string   `yaml:"slot"`
	Course     string   `yaml:"course"`
	Faculty    string   `yaml:"faculty"`
	Room       string   `yaml:"room"`
	Batch      string   `yaml:"batch"`
	Type       string   `yaml:"type"`
	Duration   int      `yaml:"duration"`
	Facilities []string `yaml:"facilities"`
}

func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &fx, nil
}

func (fx *fixture) layout() (*scheduler.Layout, error) {
	days := scheduler.DefaultDays
	if len(fx.Days) > 0 {
		days = make([]scheduler.Day, 0, len(fx.Days))
		for _, d := range fx.Days {
			days = append(days, scheduler.Day(d))
		}
	}
	slots := scheduler.DefaultSlots
	if len(fx.Slots) > 0 {
		slots = make([]scheduler.TimeSlot, 0, len(fx.Slots))
		for _, s := range fx.Slots {
			slots = append(slots, scheduler.TimeSlot(s))
		}
	}
	return scheduler.NewLayout(days, slots)
}

func (fx *fixture) thresholds() scheduler.Thresholds {
	if fx.Thresholds == nil {
		return scheduler.DefaultThresholds()
	}
	return scheduler.Thresholds{CriticalRatio: fx.Thresholds.Critical, WarningRatio: fx.Thresholds.Warning}
}

func (fx *fixture) room(id string) *models.Room {
	for _, r := range fx.Rooms {
		if r.ID == id {
			return &models.Room{ID: r.ID, Capacity: r.Capacity, Facilities: r.Facilities}
		}
	}
	return nil
}

func (fx *fixture) batch(id string) *models.Batch {
	for _, b := range fx.Batches {
		if b.ID == id {
			return &models.Batch{ID: b.ID, Size: b.Size}
		}
	}
	return nil
}

// grid places every fixture entry. Two entries for the same cell are an
// error since a cell holds at most one assignment.
func (fx *fixture) grid(layout *scheduler.Layout) (*scheduler.Grid, error) {
	g := scheduler.NewGrid(layout)
	for i, p := range fx.Placements {
		day, slot := scheduler.Day(p.Day), scheduler.TimeSlot(p.Slot)
		if g.HasAssignment(day, slot) {
			return nil, fmt.Errorf("placement %d: %w: %s %s", i, scheduler.ErrCellOccupied, day, slot)
		}
		if _, err := g.Set(day, slot, fx.assignment(p)); err != nil {
			return nil, fmt.Errorf("placement %d: %w", i, err)
		}
	}
	return g, nil
}

func (fx *fixture) assignment(p fixturePlacement) *scheduler.Assignment {
	course := models.CourseBlock{Code: p.Course, RequiredFacilities: p.Facilities}
	faculty := models.Faculty{ID: p.Faculty}
	room := models.Room{ID: p.Room}
	batch := models.Batch{ID: p.Batch}
	if b := fx.batch(p.Batch); b != nil {
		batch = *b
	}
	sessionType := scheduler.SessionType(p.Type)
	if sessionType == "" {
		sessionType = scheduler.SessionLecture
	}
	return scheduler.NewAssignment(course, faculty, room, batch, sessionType, p.Duration)
}
