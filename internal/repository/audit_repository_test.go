package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestAuditRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(sqlmock.AnyArg(), models.AuditActionPlace, "planner", "tab-1", "7-CSE-A-regular", "Monday", "7:00-7:55", "CS101", "A101", "F1", "CSE-7A", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.AuditEvent{
		Action:       models.AuditActionPlace,
		ActorID:      "planner",
		SessionID:    "tab-1",
		TimetableKey: "7-CSE-A-regular",
		Day:          "Monday",
		Slot:         "7:00-7:55",
		CourseCode:   "CS101",
		RoomID:       "A101",
		FacultyID:    "F1",
		BatchID:      "CSE-7A",
	}
	require.NoError(t, repo.Insert(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "action", "actor_id", "session_id", "timetable_key", "day", "slot", "course_code", "room_id", "faculty_id", "batch_id", "details", "created_at"}).
		AddRow("ev-1", models.AuditActionSave, "planner", "tab-1", "7-CSE-A-regular", "", "", "", "", "", "", []byte(`{}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE timetable_key = $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("7-CSE-A-regular", 50).
		WillReturnRows(rows)

	events, err := repo.ListByTimetable(context.Background(), "7-CSE-A-regular", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditActionSave, events[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
