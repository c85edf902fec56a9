package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	"github.com/noah-isme/sma-pickup-api/internal/service"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
	"github.com/noah-isme/sma-pickup-api/pkg/response"
)

type mergeService interface {
	List(ctx context.Context) ([]models.ClassMerge, error)
	Create(ctx context.Context, req service.CreateMergeRequest) (*models.ClassMerge, error)
	Delete(ctx context.Context, source models.ClassChannel) error
	ClearAll(ctx context.Context) (int64, error)
}

// MergeHandler exposes class merge endpoints.
type MergeHandler struct {
	merges mergeService
}

// NewMergeHandler constructs MergeHandler.
func NewMergeHandler(merges mergeService) *MergeHandler {
	return &MergeHandler{merges: merges}
}

// List godoc
// @Summary List active class merges
// @Tags Merges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /merges [get]
func (h *MergeHandler) List(c *gin.Context) {
	merges, err := h.merges.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, merges, nil)
}

// Create godoc
// @Summary Merge one class's display into another
// @Tags Merges
// @Accept json
// @Produce json
// @Param payload body service.CreateMergeRequest true "Merge payload"
// @Success 201 {object} response.Envelope
// @Router /merges [post]
func (h *MergeHandler) Create(c *gin.Context) {
	var req service.CreateMergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	merge, err := h.merges.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, merge)
}

// Delete godoc
// @Summary Un-merge a class by its source channel
// @Tags Merges
// @Produce json
// @Param year path int true "Source year"
// @Param className path string true "Source class label"
// @Success 204
// @Router /merges/{year}/{className} [delete]
func (h *MergeHandler) Delete(c *gin.Context) {
	source, err := channelFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.merges.Delete(c.Request.Context(), source); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reset godoc
// @Summary Clear every class merge
// @Tags Merges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /merges/reset [post]
func (h *MergeHandler) Reset(c *gin.Context) {
	count, err := h.merges.ClearAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cleared": count}, nil)
}
