package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type occupyingLister interface {
	ListOccupying(ctx context.Context, day, slot, excludeKey string) ([]models.Timetable, error)
}

// CrossTimetableService looks for faculty and rooms already committed in
// other persisted timetables. Its results are advisory only.
type CrossTimetableService struct {
	store     occupyingLister
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCrossTimetableService builds the service.
func NewCrossTimetableService(store occupyingLister, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CrossTimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrossTimetableService{store: store, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Check scans every persisted timetable except req.ExcludeKey at (Day, Slot).
// A storage failure is returned as ErrUnavailable and never as an empty result.
func (s *CrossTimetableService) Check(ctx context.Context, req dto.CrossCheckRequest) (*dto.CrossCheckResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cross-check payload")
	}
	start := s.now()
	timetables, err := s.store.ListOccupying(ctx, req.Day, req.Slot, req.ExcludeKey)
	if err != nil {
		s.metrics.ObserveCrossCheck("error", s.now().Sub(start))
		s.logger.Warn("cross-timetable check failed", zap.String("day", req.Day), zap.String("slot", req.Slot), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "cross-timetable data unavailable")
	}

	result := &dto.CrossCheckResult{
		FacultyConflicts: []dto.CrossConflict{},
		RoomConflicts:    []dto.CrossConflict{},
	}
	day, slot := scheduler.Day(req.Day), scheduler.TimeSlot(req.Slot)
	for _, tt := range timetables {
		if req.ExcludeKey != "" && tt.Key == req.ExcludeKey {
			continue
		}
		assignment, err := scheduler.LookupCell(tt.Schedule, day, slot)
		if err != nil {
			s.logger.Warn("skipping unreadable timetable", zap.String("key", tt.Key), zap.Error(err))
			continue
		}
		if assignment == nil {
			continue
		}
		hit := dto.CrossConflict{
			TimetableID: tt.ID,
			Key:         tt.Key,
			Semester:    tt.Semester,
			Branch:      tt.Branch,
			Batch:       tt.Batch,
			Type:        tt.Type,
			Day:         req.Day,
			Slot:        req.Slot,
			Assignment:  assignment,
		}
		if req.FacultyID != "" && assignment.FacultyID == req.FacultyID {
			result.FacultyConflicts = append(result.FacultyConflicts, hit)
		}
		if req.RoomID != "" && assignment.RoomID == req.RoomID {
			result.RoomConflicts = append(result.RoomConflicts, hit)
		}
	}
	result.CheckedAt = s.now().UTC()
	s.metrics.ObserveCrossCheck("ok", result.CheckedAt.Sub(start))
	return result, nil
}
