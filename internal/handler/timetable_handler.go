package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type referenceReader interface {
	Snapshot(ctx context.Context) (*service.ReferenceSnapshot, error)
	Invalidate(ctx context.Context) error
}

type auditReader interface {
	History(ctx context.Context, key string, limit int) ([]models.AuditEvent, error)
}

type crossTimetableChecker interface {
	Check(ctx context.Context, req dto.CrossCheckRequest) (*dto.CrossCheckResult, error)
}

// TimetableHandler serves reference data, persisted timetable history and
// the synchronous cross-timetable check.
type TimetableHandler struct {
	refs  referenceReader
	audit auditReader
	cross crossTimetableChecker
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(refs referenceReader, audit auditReader, cross crossTimetableChecker) *TimetableHandler {
	return &TimetableHandler{refs: refs, audit: audit, cross: cross}
}

// Reference godoc
// @Summary Rooms, faculty, batches and courses available for placement
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference [get]
func (h *TimetableHandler) Reference(c *gin.Context) {
	snap, err := h.refs.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap)
}

// RefreshReference godoc
// @Summary Drop cached reference data and reload it from Postgres
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reference/refresh [post]
func (h *TimetableHandler) RefreshReference(c *gin.Context) {
	if err := h.refs.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	h.Reference(c)
}

// AuditTrail godoc
// @Summary Recent edits recorded against a timetable
// @Tags Timetables
// @Produce json
// @Param key path string true "Timetable key"
// @Param limit query int false "Maximum events"
// @Success 200 {object} response.Envelope
// @Router /timetables/{key}/audit [get]
func (h *TimetableHandler) AuditTrail(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	events, err := h.audit.History(c.Request.Context(), c.Param("key"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, map[string]interface{}{"total": len(events)})
}

// CrossCheck godoc
// @Summary Check a faculty member or room against other saved timetables
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.CrossCheckRequest true "Resource and cell"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /conflicts/cross-check [post]
func (h *TimetableHandler) CrossCheck(c *gin.Context) {
	var req dto.CrossCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cross-check payload"))
		return
	}
	result, err := h.cross.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
