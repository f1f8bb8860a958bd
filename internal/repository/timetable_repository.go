package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timetableColumns = `id, timetable_key, semester, branch, batch, timetable_type, schedule, version, updated_by, created_at, updated_at`

// TimetableRepository persists weekly grids in the timetables table.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByKey loads a timetable by its composite key. It returns sql.ErrNoRows
// when nothing is stored under key.
func (r *TimetableRepository) FindByKey(ctx context.Context, key string) (*models.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE timetable_key = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, key); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// ListAll returns every persisted timetable ordered by key.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables ORDER BY timetable_key`
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, nil
}

// ListOccupying returns timetables, other than excludeKey, whose schedule has
// an assignment at (day, slot). Explicit JSON nulls are treated as empty.
func (r *TimetableRepository) ListOccupying(ctx context.Context, day, slot, excludeKey string) ([]models.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE jsonb_typeof(schedule -> $1 -> $2) = 'object' AND timetable_key <> $3 ORDER BY timetable_key`
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, day, slot, excludeKey); err != nil {
		return nil, fmt.Errorf("list timetables occupying %s %s: %w", day, slot, err)
	}
	return timetables, nil
}

// Upsert inserts or replaces the schedule stored under timetable.Key and bumps
// its version. ID, Version and timestamps are refreshed from the database.
func (r *TimetableRepository) Upsert(ctx context.Context, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if !timetable.Complete() {
		return fmt.Errorf("semester, branch, batch and type are required")
	}
	timetable.Key = timetable.TimetableIdentity.Key()
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if len(timetable.Schedule) == 0 {
		timetable.Schedule = types.JSONText(`{}`)
	}
	now := time.Now().UTC()

	const query = `INSERT INTO timetables (id, timetable_key, semester, branch, batch, timetable_type, schedule, version, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9, $9)
ON CONFLICT (timetable_key) DO UPDATE SET schedule = EXCLUDED.schedule, version = timetables.version + 1, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING id, version, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query,
		timetable.ID,
		timetable.Key,
		timetable.Semester,
		timetable.Branch,
		timetable.Batch,
		timetable.Type,
		timetable.Schedule,
		timetable.UpdatedBy,
		now,
	)
	if err := row.Scan(&timetable.ID, &timetable.Version, &timetable.CreatedAt, &timetable.UpdatedAt); err != nil {
		return fmt.Errorf("upsert timetable %s: %w", timetable.Key, err)
	}
	return nil
}
