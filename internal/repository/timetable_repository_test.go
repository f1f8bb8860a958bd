package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var timetableRowColumns = []string{"id", "timetable_key", "semester", "branch", "batch", "timetable_type", "schedule", "version", "updated_by", "created_at", "updated_at"}

func TestTimetableRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("tt-1", "7-CSE-A-regular", "7", "CSE", "A", "regular", []byte(`{"Monday":{"7:00-7:55":null}}`), 3, "planner", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE timetable_key = $1")).
		WithArgs("7-CSE-A-regular").
		WillReturnRows(rows)

	tt, err := repo.FindByKey(context.Background(), "7-CSE-A-regular")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", tt.ID)
	assert.Equal(t, "CSE", tt.Branch)
	assert.Equal(t, "regular", tt.Type)
	assert.Equal(t, 3, tt.Version)
	assert.JSONEq(t, `{"Monday":{"7:00-7:55":null}}`, tt.Schedule.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByKeyNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE timetable_key = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByKey(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListOccupying(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("tt-2", "7-CSE-B-regular", "7", "CSE", "B", "regular", []byte(`{}`), 1, "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE jsonb_typeof(schedule -> $1 -> $2) = 'object' AND timetable_key <> $3")).
		WithArgs("Monday", "7:00-7:55", "7-CSE-A-regular").
		WillReturnRows(rows)

	list, err := repo.ListOccupying(context.Background(), "Monday", "7:00-7:55", "7-CSE-A-regular")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "7-CSE-B-regular", list[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListAllWrapsErrors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables ORDER BY timetable_key")).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list timetables")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	created := time.Now().Add(-time.Hour)
	updated := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "7-CSE-A-regular", "7", "CSE", "A", "regular", sqlmock.AnyArg(), "planner", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).AddRow("tt-1", 4, created, updated))

	tt := &models.Timetable{
		TimetableIdentity: models.TimetableIdentity{Semester: "7", Branch: "CSE", Batch: "A", Type: "regular"},
		Schedule:          types.JSONText(`{"Monday":{}}`),
		UpdatedBy:         "planner",
	}
	require.NoError(t, repo.Upsert(context.Background(), tt))

	assert.Equal(t, "tt-1", tt.ID)
	assert.Equal(t, "7-CSE-A-regular", tt.Key)
	assert.Equal(t, 4, tt.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpsertRequiresIdentity(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	err := repo.Upsert(context.Background(), &models.Timetable{TimetableIdentity: models.TimetableIdentity{Semester: "7"}})
	assert.Error(t, err)
}
