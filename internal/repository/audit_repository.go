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

// AuditRepository appends timetable edit events to audit_logs.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert stores one event, assigning an id and timestamp when missing.
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is nil")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = types.JSONText(`{}`)
	}

	const query = `
INSERT INTO audit_logs (id, action, actor_id, session_id, timetable_key, day, slot, course_code, room_id, faculty_id, batch_id, details, created_at)
VALUES (:id, :action, :actor_id, :session_id, :timetable_key, :day, :slot, :course_code, :room_id, :faculty_id, :batch_id, :details, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByTimetable returns the most recent events for a timetable key.
func (r *AuditRepository) ListByTimetable(ctx context.Context, key string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, action, actor_id, session_id, timetable_key, day, slot, course_code, room_id, faculty_id, batch_id, details, created_at FROM audit_logs WHERE timetable_key = $1 ORDER BY created_at DESC LIMIT $2`
	var events []models.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, key, limit); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
