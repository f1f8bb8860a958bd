package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ReferenceRepository reads rooms, faculty, batches and course blocks. The
// tables are maintained by the administration system; this service never
// writes them.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListRooms returns every room ordered by id.
func (r *ReferenceRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, room_type, facilities FROM rooms ORDER BY id`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListFaculty returns every faculty member ordered by id.
func (r *ReferenceRepository) ListFaculty(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, name, department FROM faculty ORDER BY id`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// ListBatches returns every student batch ordered by id.
func (r *ReferenceRepository) ListBatches(ctx context.Context) ([]models.Batch, error) {
	const query = `SELECT id, name, size, branch, semester FROM batches ORDER BY id`
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// ListCourses returns every course block ordered by code.
func (r *ReferenceRepository) ListCourses(ctx context.Context) ([]models.CourseBlock, error) {
	const query = `SELECT code, title, faculty_ids, required_facilities, lecture_hours, tutorial_hours, practical_hours FROM course_blocks ORDER BY code`
	var courses []models.CourseBlock
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list course blocks: %w", err)
	}
	return courses, nil
}
