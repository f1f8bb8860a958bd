package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type tabService interface {
	Create(ctx context.Context, req dto.CreateTabRequest) (*dto.TabDetail, error)
	Open(ctx context.Context, req dto.OpenTabRequest) (*dto.TabDetail, error)
	List(ctx context.Context) []dto.TabSummary
	Get(ctx context.Context, id string) (*dto.TabDetail, error)
	Switch(ctx context.Context, id string) (*dto.TabDetail, error)
	Close(ctx context.Context, id string, force bool) error
	Configure(ctx context.Context, id string, req dto.ConfigureTabRequest) (*dto.TabDetail, error)
	Validate(ctx context.Context, id string, req dto.PlacementRequest) (*scheduler.PlacementResult, error)
	Place(ctx context.Context, id, actor string, req dto.PlacementRequest) (*dto.PlacementResponse, error)
	Remove(ctx context.Context, id, actor string, req dto.CellRequest) (*dto.TabDetail, error)
	Move(ctx context.Context, id, actor string, req dto.MoveRequest) (*dto.PlacementResponse, error)
	Undo(ctx context.Context, id string) (*dto.TabDetail, error)
	Redo(ctx context.Context, id string) (*dto.TabDetail, error)
	Conflicts(ctx context.Context, id string) (*dto.ConflictReport, error)
	Suggest(ctx context.Context, id string, req dto.SuggestionRequest) (*dto.SuggestionResponse, error)
	ApplySuggestion(ctx context.Context, id, actor string, req dto.ApplySuggestionRequest) (*dto.PlacementResponse, error)
	ClearWeek(ctx context.Context, id, actor string) (*dto.TabDetail, error)
	Save(ctx context.Context, id, actor string) (*dto.TabDetail, error)
}

// TabHandler exposes the timetable editing tabs.
type TabHandler struct {
	service tabService
}

// NewTabHandler constructs the handler.
func NewTabHandler(service tabService) *TabHandler {
	return &TabHandler{service: service}
}

// Create godoc
// @Summary Open a blank editing tab
// @Tags Tabs
// @Accept json
// @Produce json
// @Param payload body dto.CreateTabRequest false "Initial filters"
// @Success 201 {object} response.Envelope
// @Router /tabs [post]
func (h *TabHandler) Create(c *gin.Context) {
	var req dto.CreateTabRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tab payload"))
			return
		}
	}
	tab, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tab)
}

// Open godoc
// @Summary Load a persisted timetable into a tab
// @Tags Tabs
// @Accept json
// @Produce json
// @Param payload body dto.OpenTabRequest true "Timetable identity"
// @Success 200 {object} response.Envelope
// @Router /tabs/open [post]
func (h *TabHandler) Open(c *gin.Context) {
	var req dto.OpenTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid open payload"))
		return
	}
	tab, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// List godoc
// @Summary List open tabs
// @Tags Tabs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tabs [get]
func (h *TabHandler) List(c *gin.Context) {
	tabs := h.service.List(c.Request.Context())
	response.JSON(c, http.StatusOK, tabs, map[string]interface{}{"total": len(tabs)})
}

// Get godoc
// @Summary Get a tab with its grid and conflicts
// @Tags Tabs
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id} [get]
func (h *TabHandler) Get(c *gin.Context) {
	tab, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Activate godoc
// @Summary Make a tab the active one
// @Tags Tabs
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/activate [post]
func (h *TabHandler) Activate(c *gin.Context) {
	tab, err := h.service.Switch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Close godoc
// @Summary Close a tab
// @Tags Tabs
// @Param id path string true "Tab ID"
// @Param force query bool false "Discard unsaved changes"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /tabs/{id} [delete]
func (h *TabHandler) Close(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err := h.service.Close(c.Request.Context(), c.Param("id"), force); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Configure godoc
// @Summary Update tab filters
// @Tags Tabs
// @Accept json
// @Produce json
// @Param id path string true "Tab ID"
// @Param payload body dto.ConfigureTabRequest true "Filters to change"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/filters [patch]
func (h *TabHandler) Configure(c *gin.Context) {
	var req dto.ConfigureTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	tab, err := h.service.Configure(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Validate godoc
// @Summary Validate a placement without applying it
// @Tags Placements
// @Accept json
// @Produce json
// @Param id path string true "Tab ID"
// @Param payload body dto.PlacementRequest true "Placement"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/validate [post]
func (h *TabHandler) Validate(c *gin.Context) {
	var req dto.PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid placement payload"))
		return
	}
	result, err := h.service.Validate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Place godoc
// @Summary Place a course session into a cell
// @Tags Placements
// @Accept json
// @Produce json
// @Param id path string true "Tab ID"
// @Param payload body dto.PlacementRequest true "Placement"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Blocked by critical conflicts"
// @Router /tabs/{id}/placements [post]
func (h *TabHandler) Place(c *gin.Context) {
	var req dto.PlacementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid placement payload"))
		return
	}
	resp, err := h.service.Place(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	writePlacement(c, resp, err)
}

// Remove godoc
// @Summary Clear one cell
// @Tags Placements
// @Produce json
// @Param id path string true "Tab ID"
// @Param day query string true "Day"
// @Param slot query string true "Time slot"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/placements [delete]
func (h *TabHandler) Remove(c *gin.Context) {
	var req dto.CellRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.Day == "" || req.Slot == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day and slot are required"))
		return
	}
	tab, err := h.service.Remove(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Move godoc
// @Summary Move an assignment to another cell
// @Tags Placements
// @Accept json
// @Produce json
// @Param id path string true "Tab ID"
// @Param payload body dto.MoveRequest true "Move"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Blocked by critical conflicts"
// @Router /tabs/{id}/moves [post]
func (h *TabHandler) Move(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	resp, err := h.service.Move(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	writePlacement(c, resp, err)
}

// Undo godoc
// @Summary Step back in the tab history
// @Tags History
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/undo [post]
func (h *TabHandler) Undo(c *gin.Context) {
	tab, err := h.service.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Redo godoc
// @Summary Step forward in the tab history
// @Tags History
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/redo [post]
func (h *TabHandler) Redo(c *gin.Context) {
	tab, err := h.service.Redo(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Conflicts godoc
// @Summary List conflicts in the tab
// @Tags Conflicts
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/conflicts [get]
func (h *TabHandler) Conflicts(c *gin.Context) {
	report, err := h.service.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Suggest godoc
// @Summary Suggest fixes for conflicts at a cell or for a pending placement
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param id path string true "Tab ID"
// @Param payload body dto.SuggestionRequest true "Cell or pending placement"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/suggestions [post]
func (h *TabHandler) Suggest(c *gin.Context) {
	var req dto.SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suggestion payload"))
		return
	}
	resp, err := h.service.Suggest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// ApplySuggestion godoc
// @Summary Apply a suggestion returned by the suggestions endpoint
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param id path string true "Tab ID"
// @Param payload body dto.ApplySuggestionRequest true "Suggestion"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Stale suggestion or blocked result"
// @Router /tabs/{id}/suggestions/apply [post]
func (h *TabHandler) ApplySuggestion(c *gin.Context) {
	var req dto.ApplySuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid suggestion payload"))
		return
	}
	resp, err := h.service.ApplySuggestion(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	writePlacement(c, resp, err)
}

// ClearWeek godoc
// @Summary Remove every assignment from the tab
// @Tags Placements
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Router /tabs/{id}/clear [post]
func (h *TabHandler) ClearWeek(c *gin.Context) {
	tab, err := h.service.ClearWeek(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// Save godoc
// @Summary Persist the tab's timetable
// @Tags Tabs
// @Produce json
// @Param id path string true "Tab ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /tabs/{id}/save [post]
func (h *TabHandler) Save(c *gin.Context) {
	tab, err := h.service.Save(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tab)
}

// writePlacement answers 409 with the validation result when critical
// conflicts blocked the edit.
func writePlacement(c *gin.Context, resp *dto.PlacementResponse, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if !resp.Placed {
		blocked := appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("placement blocked by %d critical conflict(s)", len(resp.Result.Conflicts)))
		response.ErrorWithData(c, blocked, resp)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}
