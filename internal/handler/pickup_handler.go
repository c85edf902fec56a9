package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	"github.com/noah-isme/sma-pickup-api/internal/service"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
	"github.com/noah-isme/sma-pickup-api/pkg/response"
)

type pickupService interface {
	Raise(ctx context.Context, req service.RaisePickupRequest) (*models.Pickup, error)
	Acknowledge(ctx context.Context, id string) (*models.Pickup, error)
	PendingByChannel(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error)
	PendingForDisplay(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error)
	History(ctx context.Context, filter models.PickupFilter) ([]models.Pickup, *models.Pagination, error)
}

type statsService interface {
	ForDay(ctx context.Context, day time.Time) (*models.PickupStats, error)
}

type exportService interface {
	PickupLog(ctx context.Context, from, to time.Time, format string) (*service.ExportResult, error)
}

// PickupHandler exposes pickup endpoints.
type PickupHandler struct {
	pickups pickupService
	stats   statsService
	exports exportService
}

// NewPickupHandler constructs PickupHandler.
func NewPickupHandler(pickups pickupService, stats statsService, exports exportService) *PickupHandler {
	return &PickupHandler{pickups: pickups, stats: stats, exports: exports}
}

// Raise godoc
// @Summary Call a student for pickup
// @Tags Pickups
// @Accept json
// @Produce json
// @Param payload body service.RaisePickupRequest true "Pickup payload"
// @Success 201 {object} response.Envelope
// @Router /pickups [post]
func (h *PickupHandler) Raise(c *gin.Context) {
	var req service.RaisePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	pickup, err := h.pickups.Raise(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pickup)
}

// Acknowledge godoc
// @Summary Acknowledge a pending pickup
// @Tags Pickups
// @Produce json
// @Param id path string true "Pickup ID"
// @Success 200 {object} response.Envelope
// @Router /pickups/{id}/acknowledge [post]
func (h *PickupHandler) Acknowledge(c *gin.Context) {
	pickup, err := h.pickups.Acknowledge(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pickup, nil)
}

// Pending godoc
// @Summary Pending pickups addressed literally to a class
// @Description Unredirected per-class query; merge state is not applied here.
// @Tags Pickups
// @Produce json
// @Param year query int true "Class year"
// @Param className query string true "Class label"
// @Success 200 {object} response.Envelope
// @Router /pickups/pending [get]
func (h *PickupHandler) Pending(c *gin.Context) {
	channel, err := channelFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	pickups, err := h.pickups.PendingByChannel(c.Request.Context(), channel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pickups, nil)
}

// Display godoc
// @Summary Pending pickups a display must show (merge-aware)
// @Tags Pickups
// @Produce json
// @Param year query int true "Class year"
// @Param className query string true "Class label"
// @Success 200 {object} response.Envelope
// @Router /pickups/display [get]
func (h *PickupHandler) Display(c *gin.Context) {
	channel, err := channelFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	pickups, err := h.pickups.PendingForDisplay(c.Request.Context(), channel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pickups, nil)
}

// History godoc
// @Summary List pickups with filters
// @Tags Pickups
// @Produce json
// @Param status query string false "Filter by status"
// @Param year query int false "Filter by year"
// @Param className query string false "Filter by class label"
// @Param from query string false "Created at or after (RFC3339)"
// @Param to query string false "Created before (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pickups [get]
func (h *PickupHandler) History(c *gin.Context) {
	var filter models.PickupFilter
	filter.Status = c.Query("status")
	filter.ClassLabel = c.Query("className")
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = &year
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	pickups, pagination, err := h.pickups.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pickups, pagination)
}

// Stats godoc
// @Summary Pickup counts for one calendar day
// @Tags Pickups
// @Produce json
// @Param date query string false "Day (2006-01-02), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /pickups/stats [get]
func (h *PickupHandler) Stats(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted 2006-01-02"))
			return
		}
		day = parsed
	}
	stats, err := h.stats.ForDay(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export pickup history
// @Tags Pickups
// @Produce text/csv
// @Produce application/pdf
// @Param from query string true "Range start (RFC3339)"
// @Param to query string true "Range end (RFC3339)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /pickups/export [get]
func (h *PickupHandler) Export(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
		return
	}
	format := c.DefaultQuery("format", service.ExportFormatCSV)

	result, err := h.exports.PickupLog(c.Request.Context(), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
