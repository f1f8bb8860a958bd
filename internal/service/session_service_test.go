package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

type sessionFixture struct {
	svc     *SessionService
	store   *memTimetableStore
	cross   *crossCheckerStub
	audit   *recordingAudit
	metrics *MetricsService
	pending []func()
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		store:   newMemTimetableStore(),
		cross:   &crossCheckerStub{},
		audit:   &recordingAudit{},
		metrics: NewMetricsService(),
	}
	refs := NewReferenceService(&referenceRepoStub{snapshot: testSnapshot()}, nil, time.Minute, nil, nil)
	f.svc = NewSessionService(SessionConfig{HistoryLimit: 50}, refs, f.store, f.cross, f.audit, f.metrics, nil, zap.NewNop())
	f.svc.async = func(fn func()) { fn() }
	ids := 0
	f.svc.newID = func() string {
		ids++
		return fmt.Sprintf("tab-%d", ids)
	}
	return f
}

func (f *sessionFixture) deferCrossChecks() {
	f.svc.async = func(fn func()) { f.pending = append(f.pending, fn) }
}

func (f *sessionFixture) newTab(t *testing.T) string {
	t.Helper()
	tab, err := f.svc.Create(context.Background(), dto.CreateTabRequest{})
	require.NoError(t, err)
	return tab.ID
}

func (f *sessionFixture) mustPlace(t *testing.T, tabID string, req dto.PlacementRequest) *dto.PlacementResponse {
	t.Helper()
	resp, err := f.svc.Place(context.Background(), tabID, "operator-1", req)
	require.NoError(t, err)
	require.True(t, resp.Placed, "placement of %s rejected: %+v", req.CourseCode, resp.Result.Conflicts)
	return resp
}

func placement(course, faculty, room, batch, day, slot string) dto.PlacementRequest {
	return dto.PlacementRequest{Day: day, Slot: slot, CourseCode: course, FacultyID: faculty, RoomID: room, BatchID: batch}
}

func cellOf(tab *dto.TabDetail, day, slot string) *scheduler.Assignment {
	return tab.Grid.Get(scheduler.Day(day), scheduler.TimeSlot(slot))
}

func TestSessionServiceTabLifecycle(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first := f.newTab(t)
	second := f.newTab(t)

	tabs := f.svc.List(ctx)
	require.Len(t, tabs, 2)
	assert.False(t, tabs[0].Active)
	assert.True(t, tabs[1].Active)

	switched, err := f.svc.Switch(ctx, first)
	require.NoError(t, err)
	assert.True(t, switched.Active)

	require.NoError(t, f.svc.Close(ctx, first, false))
	tabs = f.svc.List(ctx)
	require.Len(t, tabs, 1)
	assert.Equal(t, second, tabs[0].ID)
	assert.True(t, tabs[0].Active)

	_, err = f.svc.Get(ctx, first)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.openTabs))
}

func TestSessionServiceTabsAreIndependent(t *testing.T) {
	f := newSessionFixture(t)
	first := f.newTab(t)
	second := f.newTab(t)

	f.mustPlace(t, first, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	other, err := f.svc.Get(context.Background(), second)
	require.NoError(t, err)
	assert.Zero(t, other.Assignments)
	assert.False(t, other.CanUndo)

	// F1 is busy in the first tab only; the second tab accepts it.
	f.mustPlace(t, second, placement("CS201", "F1", "A102", "B2", testMonday, testSlot7))
}

func TestSessionServicePlaceAccepted(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)

	resp := f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	placed := cellOf(resp.Tab, testMonday, testSlot7)
	require.NotNil(t, placed)
	assert.Equal(t, "Dr. Ada", placed.FacultyName)
	assert.True(t, resp.Tab.Dirty)
	assert.Equal(t, 2, resp.Tab.HistoryLength)
	assert.True(t, resp.Tab.CanUndo)
	assert.Equal(t, []string{models.AuditActionPlace}, f.audit.actions())
	assert.Equal(t, "operator-1", f.audit.events[0].ActorID)

	require.Len(t, f.cross.requests, 1)
	assert.Equal(t, "F1", f.cross.requests[0].FacultyID)
	assert.Equal(t, "A101", f.cross.requests[0].RoomID)

	report, err := f.svc.Conflicts(context.Background(), tabID)
	require.NoError(t, err)
	require.NotNil(t, report.CrossCheck)
	assert.Equal(t, resp.CrossCheckRequestID, report.CrossCheck.RequestID)
	assert.False(t, report.CrossCheck.Pending)
	assert.NotNil(t, report.CrossCheck.Result)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.placements.WithLabelValues(PlacementAccepted)))
}

func TestSessionServicePlaceRejectedLeavesGridUntouched(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	resp, err := f.svc.Place(context.Background(), tabID, "operator-1", placement("CS201", "F1", "A102", "B2", testMonday, testSlot7))
	require.NoError(t, err)
	assert.False(t, resp.Placed)
	assert.False(t, resp.Result.CanPlace)
	require.Len(t, resp.Result.Conflicts, 1)
	assert.Equal(t, scheduler.ConflictFaculty, resp.Result.Conflicts[0].Kind)
	assert.Equal(t, "CS101", resp.Result.Conflicts[0].Colliding.CourseCode)

	assert.Equal(t, "CS101", cellOf(resp.Tab, testMonday, testSlot7).CourseCode)
	assert.Equal(t, 2, resp.Tab.HistoryLength)
	assert.Len(t, f.audit.actions(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.placements.WithLabelValues(PlacementRejected)))
}

func TestSessionServicePlaceCapacityAndFacilityChecks(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)

	resp, err := f.svc.Place(context.Background(), tabID, "", placement("CS102", "F2", "S01", "B1", testMonday, testSlot7))
	require.NoError(t, err)
	assert.False(t, resp.Placed)
	require.Len(t, resp.Result.Conflicts, 1)
	assert.Equal(t, scheduler.ConflictCapacity, resp.Result.Conflicts[0].Kind)
	assert.Equal(t, 34, resp.Result.Conflicts[0].Details["recommendedCapacity"])

	resp = f.mustPlace(t, tabID, placement("CS301", "F3", "A101", "B1", testMonday, testSlot7))
	require.Len(t, resp.Result.Warnings, 1)
	assert.Equal(t, scheduler.ConflictFacility, resp.Result.Warnings[0].Kind)
}

func TestSessionServicePlaceInvalidInput(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)

	_, err := f.svc.Place(context.Background(), tabID, "", placement("CS101", "F1", "A101", "B1", "Sunday", testSlot7))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Place(context.Background(), tabID, "", placement("CS999", "F1", "A101", "B1", testMonday, testSlot7))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Place(context.Background(), "missing", "", placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.placements.WithLabelValues(PlacementInvalid)))
}

func TestSessionServiceValidateDoesNotMutate(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	result, err := f.svc.Validate(context.Background(), tabID, placement("CS102", "F2", "A101", "B2", testMonday, testSlot7))
	require.NoError(t, err)
	assert.False(t, result.CanPlace)
	assert.Equal(t, scheduler.ConflictRoom, result.Conflicts[0].Kind)

	tab, err := f.svc.Get(context.Background(), tabID)
	require.NoError(t, err)
	assert.Equal(t, 2, tab.HistoryLength)
}

func TestSessionServiceRemove(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	cell := dto.CellRequest{Day: testMonday, Slot: testSlot7}

	_, err := f.svc.Remove(context.Background(), tabID, "", cell)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	tab, err := f.svc.Remove(context.Background(), tabID, "operator-1", cell)
	require.NoError(t, err)
	assert.Nil(t, cellOf(tab, testMonday, testSlot7))
	assert.Equal(t, 3, tab.HistoryLength)
	assert.Equal(t, []string{models.AuditActionPlace, models.AuditActionRemove}, f.audit.actions())
	assert.Equal(t, "CS101", f.audit.events[1].CourseCode)
}

func TestSessionServiceMove(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	f.mustPlace(t, tabID, placement("CS201", "F1", "A102", "B1", testTuesday, testSlot8))

	resp, err := f.svc.Move(context.Background(), tabID, "", dto.MoveRequest{FromDay: testTuesday, FromSlot: testSlot8, ToDay: testMonday, ToSlot: testSlot7})
	require.NoError(t, err)
	assert.False(t, resp.Placed)
	assert.NotNil(t, cellOf(resp.Tab, testTuesday, testSlot8))

	resp, err = f.svc.Move(context.Background(), tabID, "", dto.MoveRequest{FromDay: testTuesday, FromSlot: testSlot8, ToDay: testMonday, ToSlot: testSlot9})
	require.NoError(t, err)
	assert.True(t, resp.Placed)
	assert.Nil(t, cellOf(resp.Tab, testTuesday, testSlot8))
	assert.Equal(t, "CS201", cellOf(resp.Tab, testMonday, testSlot9).CourseCode)
	assert.Equal(t, models.AuditActionMove, f.audit.actions()[2])

	_, err = f.svc.Move(context.Background(), tabID, "", dto.MoveRequest{FromDay: testMonday, FromSlot: testSlot9, ToDay: testMonday, ToSlot: testSlot9})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Move(context.Background(), tabID, "", dto.MoveRequest{FromDay: testTuesday, FromSlot: testSlot7, ToDay: testMonday, ToSlot: testSlot8})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSessionServiceUndoRedo(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	f.mustPlace(t, tabID, placement("CS102", "F2", "A102", "B1", testMonday, testSlot9))

	tab, err := f.svc.Undo(ctx, tabID)
	require.NoError(t, err)
	assert.Equal(t, 1, tab.Assignments)
	assert.True(t, tab.CanRedo)

	tab, err = f.svc.Redo(ctx, tabID)
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Assignments)

	tab, err = f.svc.Redo(ctx, tabID)
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Assignments)

	for i := 0; i < 3; i++ {
		tab, err = f.svc.Undo(ctx, tabID)
		require.NoError(t, err)
	}
	assert.Zero(t, tab.Assignments)
	assert.False(t, tab.CanUndo)
	assert.Equal(t, 0, tab.HistoryIndex)

	resp := f.mustPlace(t, tabID, placement("CS201", "F3", "A101", "B1", testTuesday, testSlot7))
	assert.False(t, resp.Tab.CanRedo)
	assert.Equal(t, 2, resp.Tab.HistoryLength)
}

func TestSessionServiceCloseGuardsUnsavedChanges(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	err := f.svc.Close(ctx, tabID, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnsavedChanges))
	assert.Equal(t, tabID, appErrors.FromError(err).Details["tabId"])
	assert.Len(t, f.svc.List(ctx), 1)

	require.NoError(t, f.svc.Close(ctx, tabID, true))
	assert.Empty(t, f.svc.List(ctx))
}

func TestSessionServiceConfigureMergesFilters(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tab, err := f.svc.Create(ctx, dto.CreateTabRequest{Filters: dto.TabFilters{Semester: "3", Branch: "CSE"}})
	require.NoError(t, err)

	batch, kind := "B1", "regular"
	tab, err = f.svc.Configure(ctx, tab.ID, dto.ConfigureTabRequest{Batch: &batch, Type: &kind})
	require.NoError(t, err)
	assert.Equal(t, "3", tab.Filters.Semester)
	assert.Equal(t, "B1", tab.Filters.Batch)
	assert.Equal(t, testIdentity.Key(), tab.Key)
}

func TestSessionServiceSaveAndReopen(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	_, err := f.svc.Save(ctx, tabID, "operator-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	semester, branch, batch, kind := testIdentity.Semester, testIdentity.Branch, testIdentity.Batch, testIdentity.Type
	_, err = f.svc.Configure(ctx, tabID, dto.ConfigureTabRequest{Semester: &semester, Branch: &branch, Batch: &batch, Type: &kind})
	require.NoError(t, err)

	tab, err := f.svc.Save(ctx, tabID, "operator-1")
	require.NoError(t, err)
	assert.False(t, tab.Dirty)
	assert.Equal(t, "tt-"+testIdentity.Key(), tab.TimetableID)
	stored := f.store.items[testIdentity.Key()]
	require.NotNil(t, stored)
	assert.Equal(t, "operator-1", stored.UpdatedBy)
	assert.Equal(t, models.AuditActionSave, f.audit.actions()[1])

	reopened, err := f.svc.Open(ctx, dto.OpenTabRequest{TimetableIdentity: testIdentity})
	require.NoError(t, err)
	assert.Equal(t, tabID, reopened.ID)
	assert.Len(t, f.svc.List(ctx), 1)

	require.NoError(t, f.svc.Close(ctx, tabID, false))
	loaded, err := f.svc.Open(ctx, dto.OpenTabRequest{TimetableIdentity: testIdentity})
	require.NoError(t, err)
	assert.NotEqual(t, tabID, loaded.ID)
	assert.Equal(t, "CS101", cellOf(loaded, testMonday, testSlot7).CourseCode)
	assert.False(t, loaded.Dirty)
	assert.False(t, loaded.CanUndo)
}

func TestSessionServiceSaveFailureKeepsTabDirty(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tab, err := f.svc.Create(ctx, dto.CreateTabRequest{Filters: dto.TabFilters{Semester: "3", Branch: "CSE", Batch: "B1", Type: "regular"}})
	require.NoError(t, err)
	f.mustPlace(t, tab.ID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	f.store.saveErr = appErrors.Wrap(errStorageDown, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to save timetable")

	_, err = f.svc.Save(ctx, tab.ID, "")
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
	got, err := f.svc.Get(ctx, tab.ID)
	require.NoError(t, err)
	assert.True(t, got.Dirty)
}

func TestSessionServiceEditDuringSaveStaysDirty(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tab, err := f.svc.Create(ctx, dto.CreateTabRequest{Filters: dto.TabFilters{Semester: "3", Branch: "CSE", Batch: "B1", Type: "regular"}})
	require.NoError(t, err)
	f.store.onSave = func() {
		f.mustPlace(t, tab.ID, placement("CS102", "F2", "A102", "B1", testTuesday, testSlot7))
	}

	saved, err := f.svc.Save(ctx, tab.ID, "")
	require.NoError(t, err)
	assert.True(t, saved.Dirty)
}

func TestSessionServiceOpenUnknownIdentityStartsBlank(t *testing.T) {
	f := newSessionFixture(t)
	tab, err := f.svc.Open(context.Background(), dto.OpenTabRequest{TimetableIdentity: testIdentity})
	require.NoError(t, err)
	assert.Zero(t, tab.Assignments)
	assert.Empty(t, tab.TimetableID)
	assert.Equal(t, testIdentity.Key(), tab.Key)

	_, err = f.svc.Open(context.Background(), dto.OpenTabRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSessionServiceOpenSurfacesStorageFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.store.loadErr = appErrors.Clone(appErrors.ErrUnavailable, "failed to load timetable")
	_, err := f.svc.Open(context.Background(), dto.OpenTabRequest{TimetableIdentity: testIdentity})
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
	assert.Empty(t, f.svc.List(context.Background()))
}

func TestSessionServiceOpenDecodesStoredSchedule(t *testing.T) {
	f := newSessionFixture(t)
	f.store.items[testIdentity.Key()] = &models.Timetable{
		ID:                "tt-9",
		Key:               testIdentity.Key(),
		TimetableIdentity: testIdentity,
		Schedule:          types.JSONText(`{"Tuesday":{"9:00-9:55":{"courseCode":"CS102","facultyId":"F2","roomId":"A102","batchId":"B1","duration":1},"8:00-8:55":null}}`),
	}
	tab, err := f.svc.Open(context.Background(), dto.OpenTabRequest{TimetableIdentity: testIdentity})
	require.NoError(t, err)
	assert.Equal(t, "tt-9", tab.TimetableID)
	assert.Equal(t, 1, tab.Assignments)
	assert.Equal(t, "F2", cellOf(tab, testTuesday, testSlot9).FacultyID)
}

func TestSessionServiceDiscardsSupersededCrossChecks(t *testing.T) {
	f := newSessionFixture(t)
	f.deferCrossChecks()
	f.cross.result = &dto.CrossCheckResult{FacultyConflicts: []dto.CrossConflict{{Key: "3-CSE-B2-regular"}}}
	tabID := f.newTab(t)

	first := f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	second := f.mustPlace(t, tabID, placement("CS102", "F2", "A102", "B1", testMonday, testSlot9))
	require.Len(t, f.pending, 2)
	assert.Greater(t, second.CrossCheckRequestID, first.CrossCheckRequestID)

	report, err := f.svc.Conflicts(context.Background(), tabID)
	require.NoError(t, err)
	assert.True(t, report.CrossCheck.Pending)

	f.pending[1]()
	f.pending[0]()

	report, err = f.svc.Conflicts(context.Background(), tabID)
	require.NoError(t, err)
	assert.Equal(t, second.CrossCheckRequestID, report.CrossCheck.RequestID)
	assert.Equal(t, testSlot9, report.CrossCheck.Slot)
	assert.False(t, report.CrossCheck.Pending)
	require.NotNil(t, report.CrossCheck.Result)
	assert.Len(t, report.CrossCheck.Result.FacultyConflicts, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.crossCheckStale))
}

func TestSessionServiceCrossCheckFailureIsAdvisory(t *testing.T) {
	f := newSessionFixture(t)
	f.cross.err = appErrors.Clone(appErrors.ErrUnavailable, "cross-timetable data unavailable")
	tabID := f.newTab(t)

	resp := f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	assert.True(t, resp.Placed)

	report, err := f.svc.Conflicts(context.Background(), tabID)
	require.NoError(t, err)
	assert.Nil(t, report.CrossCheck.Result)
	assert.Equal(t, "cross-timetable data unavailable", report.CrossCheck.Error)
}

func TestSessionServiceRebuildsStaleIndex(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	sess, err := f.svc.lookup(tabID)
	require.NoError(t, err)
	ghost := &scheduler.Assignment{CourseCode: "GHOST", RoomID: "A102", FacultyID: "F2", BatchID: "B9", Duration: 1}
	sess.index.Update(scheduler.Day(testTuesday), scheduler.TimeSlot(testSlot9), nil, ghost)

	f.mustPlace(t, tabID, placement("CS102", "F2", "A102", "B1", testMonday, testSlot8))

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.indexRebuilds))
	assert.True(t, sess.index.Consistent(sess.grid))
	assert.Nil(t, sess.index.At(scheduler.Day(testTuesday), scheduler.TimeSlot(testSlot9)))
}

func TestSessionServiceSuggestAndApplyRoomChange(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)
	double := placement("CS101", "F1", "A101", "B1", testMonday, testSlot7)
	double.Duration = 2
	f.mustPlace(t, tabID, double)
	resp := f.mustPlace(t, tabID, placement("CS102", "F2", "A101", "B2", testMonday, testSlot8))
	require.NotEmpty(t, resp.Tab.Conflicts)

	suggestions, err := f.svc.Suggest(ctx, tabID, dto.SuggestionRequest{Day: testMonday, Slot: testSlot8, Kind: "room"})
	require.NoError(t, err)
	require.Len(t, suggestions.Conflicts, 1)
	conflict := suggestions.Conflicts[0]
	assert.Equal(t, scheduler.SeverityWarning, conflict.Severity)
	assert.Equal(t, "CS102", conflict.Subject.CourseCode)

	var roomChange *scheduler.Suggestion
	for i := range conflict.Suggestions {
		if conflict.Suggestions[i].Type == scheduler.SuggestChangeRoom && conflict.Suggestions[i].RoomID == "A102" {
			roomChange = &conflict.Suggestions[i]
		}
	}
	require.NotNil(t, roomChange)
	assert.True(t, roomChange.InGrid)

	applied, err := f.svc.ApplySuggestion(ctx, tabID, "operator-1", dto.ApplySuggestionRequest{Suggestion: *roomChange})
	require.NoError(t, err)
	require.True(t, applied.Placed)
	assert.Equal(t, "A102", cellOf(applied.Tab, testMonday, testSlot8).RoomID)
	assert.Empty(t, applied.Tab.Conflicts)
	assert.Equal(t, models.AuditActionApplySuggestion, f.audit.actions()[2])

	_, err = f.svc.ApplySuggestion(ctx, tabID, "", dto.ApplySuggestionRequest{Suggestion: *roomChange})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestSessionServiceSuggestForPendingPlacement(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	pending := placement("CS201", "F1", "A102", "B2", testMonday, testSlot7)

	suggestions, err := f.svc.Suggest(ctx, tabID, dto.SuggestionRequest{Placement: &pending})
	require.NoError(t, err)
	require.NotEmpty(t, suggestions.Conflicts)
	conflict := suggestions.Conflicts[0]
	assert.Equal(t, scheduler.ConflictFaculty, conflict.Kind)
	require.NotEmpty(t, conflict.Suggestions)
	for _, s := range conflict.Suggestions {
		assert.Equal(t, scheduler.SuggestChangeTime, s.Type)
		assert.False(t, s.InGrid)
	}
	first := conflict.Suggestions[0]
	assert.Equal(t, scheduler.Day(testMonday), first.TargetDay)
	assert.Equal(t, scheduler.TimeSlot(testSlot8), first.TargetSlot)

	applied, err := f.svc.ApplySuggestion(ctx, tabID, "", dto.ApplySuggestionRequest{Suggestion: first})
	require.NoError(t, err)
	require.True(t, applied.Placed)
	assert.Equal(t, "CS201", cellOf(applied.Tab, testMonday, testSlot8).CourseCode)
	assert.Equal(t, "CS101", cellOf(applied.Tab, testMonday, testSlot7).CourseCode)
}

func TestSessionServiceSuggestValidatesRequest(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	_, err := f.svc.Suggest(context.Background(), tabID, dto.SuggestionRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.ApplySuggestion(context.Background(), tabID, "", dto.ApplySuggestionRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSessionServiceClearWeekIsUndoable(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	f.mustPlace(t, tabID, placement("CS102", "F2", "A102", "B1", testTuesday, testSlot9))

	tab, err := f.svc.ClearWeek(ctx, tabID, "operator-1")
	require.NoError(t, err)
	assert.Zero(t, tab.Assignments)
	assert.Equal(t, 4, tab.HistoryLength)
	assert.Equal(t, models.AuditActionClearWeek, f.audit.actions()[2])

	tab, err = f.svc.ClearWeek(ctx, tabID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, 4, tab.HistoryLength)

	tab, err = f.svc.Undo(ctx, tabID)
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Assignments)
}

func TestSessionServiceAuditCarriesRequestID(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	ctx := requestid.WithValue(context.Background(), "req-123")

	_, err := f.svc.Place(ctx, tabID, "operator-1", placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))
	require.NoError(t, err)

	require.Len(t, f.audit.events, 1)
	var details map[string]any
	require.NoError(t, f.audit.events[0].Details.Unmarshal(&details))
	assert.Equal(t, "req-123", details["requestId"])
}

func TestSessionServicePlaceOnOccupiedCellIsBlocked(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	f.mustPlace(t, tabID, placement("CS101", "F1", "A101", "B1", testMonday, testSlot7))

	resp, err := f.svc.Place(context.Background(), tabID, "operator-1", placement("CS102", "F2", "A102", "B2", testMonday, testSlot7))
	require.NoError(t, err)
	assert.False(t, resp.Placed)
	assert.Nil(t, resp.Replaced)
	require.Len(t, resp.Result.Conflicts, 1)
	assert.Equal(t, scheduler.ConflictOccupied, resp.Result.Conflicts[0].Kind)
	assert.Equal(t, "CS101", cellOf(resp.Tab, testMonday, testSlot7).CourseCode)
	assert.Len(t, f.audit.actions(), 1)

	suggestions, err := f.svc.Suggest(context.Background(), tabID, dto.SuggestionRequest{Placement: &dto.PlacementRequest{
		Day: testMonday, Slot: testSlot7, CourseCode: "CS102", FacultyID: "F2", RoomID: "A102", BatchID: "B2",
	}, Kind: "occupied"})
	require.NoError(t, err)
	require.Len(t, suggestions.Conflicts, 1)
	require.NotEmpty(t, suggestions.Conflicts[0].Suggestions)
	for _, s := range suggestions.Conflicts[0].Suggestions {
		assert.Equal(t, scheduler.SuggestChangeTime, s.Type)
	}
}

func TestSessionServiceApplySuggestionResolvesReferenceData(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	tabID := f.newTab(t)

	forged := scheduler.Suggestion{
		ID:   "change_room:NOWHERE",
		Type: scheduler.SuggestChangeRoom,
		Day:  testMonday,
		Slot: testSlot7,
		Subject: &scheduler.Assignment{
			CourseCode: "NOPE999", FacultyID: "ghost", RoomID: "A101", BatchID: "zz", Duration: 1,
		},
		RoomID: "NOWHERE",
	}
	_, err := f.svc.ApplySuggestion(ctx, tabID, "", dto.ApplySuggestionRequest{Suggestion: forged})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	// Known ids, but the posted batch size understates B1 (30) for S01 (20).
	understated := scheduler.Suggestion{
		ID:   "change_room:S01",
		Type: scheduler.SuggestChangeRoom,
		Day:  testMonday,
		Slot: testSlot7,
		Subject: &scheduler.Assignment{
			CourseCode: "CS102", FacultyID: "F2", RoomID: "A101", BatchID: "B1", BatchSize: 1, Duration: 1,
		},
		RoomID: "S01",
	}
	resp, err := f.svc.ApplySuggestion(ctx, tabID, "", dto.ApplySuggestionRequest{Suggestion: understated})
	require.NoError(t, err)
	assert.False(t, resp.Placed)
	require.Len(t, resp.Result.Conflicts, 1)
	assert.Equal(t, scheduler.ConflictCapacity, resp.Result.Conflicts[0].Kind)

	understated.RoomID = "A102"
	understated.Subject.FacultyName = "Somebody Else"
	resp, err = f.svc.ApplySuggestion(ctx, tabID, "", dto.ApplySuggestionRequest{Suggestion: understated})
	require.NoError(t, err)
	require.True(t, resp.Placed)
	placed := cellOf(resp.Tab, testMonday, testSlot7)
	assert.Equal(t, "A102", placed.RoomID)
	assert.Equal(t, "Dr. Grace", placed.FacultyName)
	assert.Equal(t, 30, placed.BatchSize)
	assert.Equal(t, []string{models.AuditActionApplySuggestion}, f.audit.actions())
}

func TestSessionServicePlaceRejectsSessionPastEndOfDay(t *testing.T) {
	f := newSessionFixture(t)
	tabID := f.newTab(t)
	late := placement("CS101", "F1", "A101", "B1", testMonday, "16:00-16:55")
	late.Duration = 3

	_, err := f.svc.Place(context.Background(), tabID, "", late)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	tab, err := f.svc.Get(context.Background(), tabID)
	require.NoError(t, err)
	assert.Zero(t, tab.Assignments)
}
