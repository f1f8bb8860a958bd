package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type auditRepoStub struct {
	mu       sync.Mutex
	inserted []models.AuditEvent
	events   []models.AuditEvent
	err      error
}

func (r *auditRepoStub) Insert(ctx context.Context, event *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, *event)
	return nil
}

func (r *auditRepoStub) ListByTimetable(ctx context.Context, key string, limit int) ([]models.AuditEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.events, nil
}

func (r *auditRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

type fullQueue struct{}

func (fullQueue) Enqueue(jobs.Job) error { return jobs.ErrQueueFull }

func TestAuditServiceRecordsThroughQueue(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil, nil, true)
	queue := jobs.NewQueue("audit", svc.Handle, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	svc.UseQueue(queue)
	queue.Start(context.Background())

	svc.Record(models.AuditEvent{Action: models.AuditActionPlace, SessionID: "tab-1", CourseCode: "CS101"})
	queue.Stop()

	require.Equal(t, 1, repo.count())
	event := repo.inserted[0]
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, "CS101", event.CourseCode)
}

func TestAuditServiceCountsDroppedEvents(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewAuditService(&auditRepoStub{}, metrics, nil, true)
	svc.Record(models.AuditEvent{Action: models.AuditActionRemove})
	svc.UseQueue(fullQueue{})
	svc.Record(models.AuditEvent{Action: models.AuditActionRemove})
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.auditDropped))
}

func TestAuditServiceDisabledIsSilent(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewAuditService(&auditRepoStub{}, metrics, nil, false)
	svc.Record(models.AuditEvent{Action: models.AuditActionSave})
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.auditDropped))

	var nilSvc *AuditService
	nilSvc.Record(models.AuditEvent{Action: models.AuditActionSave})
}

func TestAuditServiceHandleReturnsRepositoryErrors(t *testing.T) {
	svc := NewAuditService(&auditRepoStub{err: errStorageDown}, nil, nil, true)
	err := svc.Handle(context.Background(), jobs.Job{ID: "1", Payload: models.AuditEvent{ID: "1"}})
	assert.ErrorIs(t, err, errStorageDown)

	assert.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: "2", Payload: "garbage"}))
}

func TestAuditServiceHistory(t *testing.T) {
	svc := NewAuditService(&auditRepoStub{}, nil, nil, true)
	events, err := svc.History(context.Background(), "3-CSE-B1-regular", 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = svc.History(context.Background(), "", 10)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	svc = NewAuditService(&auditRepoStub{err: errStorageDown}, nil, nil, true)
	_, err = svc.History(context.Background(), "k", 10)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}
