package models

import (
	"strings"

	"github.com/lib/pq"
)

// Room is a bookable teaching space.
type Room struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Capacity   int            `db:"capacity" json:"capacity"`
	Type       string         `db:"room_type" json:"type"`
	Facilities pq.StringArray `db:"facilities" json:"facilities"`
}

// HasFacility reports whether the room offers the tag (case-insensitive).
func (r Room) HasFacility(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, f := range r.Facilities {
		if strings.EqualFold(strings.TrimSpace(f), tag) {
			return true
		}
	}
	return false
}

// MissingFacilities returns the required tags the room does not offer.
func (r Room) MissingFacilities(required []string) []string {
	var missing []string
	for _, tag := range required {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		if !r.HasFacility(tag) {
			missing = append(missing, tag)
		}
	}
	return missing
}

// Faculty is a teaching staff member.
type Faculty struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
}

// Batch is a student cohort scheduled as a unit.
type Batch struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Size     int    `db:"size" json:"size"`
	Branch   string `db:"branch" json:"branch"`
	Semester string `db:"semester" json:"semester"`
}

// WeeklyHours captures the lecture/tutorial/practical split of a course.
type WeeklyHours struct {
	Lecture   int `db:"lecture_hours" json:"lecture"`
	Tutorial  int `db:"tutorial_hours" json:"tutorial"`
	Practical int `db:"practical_hours" json:"practical"`
}

// Total returns the weekly contact hours.
func (w WeeklyHours) Total() int {
	return w.Lecture + w.Tutorial + w.Practical
}

// CourseBlock pairs a course with its assigned faculty and requirements.
type CourseBlock struct {
	Code               string         `db:"code" json:"code"`
	Title              string         `db:"title" json:"title"`
	FacultyIDs         pq.StringArray `db:"faculty_ids" json:"facultyIds"`
	RequiredFacilities pq.StringArray `db:"required_facilities" json:"requiredFacilities,omitempty"`
	WeeklyHours
}

// TeachableBy reports whether facultyID is one of the course's assigned faculty.
func (c CourseBlock) TeachableBy(facultyID string) bool {
	for _, id := range c.FacultyIDs {
		if id == facultyID {
			return true
		}
	}
	return false
}
