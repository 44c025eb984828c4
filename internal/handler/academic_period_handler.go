package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

type academicPeriodService interface {
	List(ctx context.Context, activeOnly bool) ([]models.AcademicPeriod, error)
	Active(ctx context.Context) (*models.AcademicPeriod, error)
	Create(ctx context.Context, req service.CreateAcademicPeriodRequest) (*models.AcademicPeriod, error)
}

// AcademicPeriodHandler exposes academic period endpoints.
type AcademicPeriodHandler struct {
	periods academicPeriodService
}

// NewAcademicPeriodHandler constructs AcademicPeriodHandler.
func NewAcademicPeriodHandler(periods academicPeriodService) *AcademicPeriodHandler {
	return &AcademicPeriodHandler{periods: periods}
}

// List godoc
// @Summary List academic periods
// @Tags Academic Periods
// @Produce json
// @Param active query bool false "Only active periods"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /periods [get]
func (h *AcademicPeriodHandler) List(c *gin.Context) {
	periods, err := h.periods.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Active godoc
// @Summary Get the active academic period
// @Tags Academic Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /periods/active [get]
func (h *AcademicPeriodHandler) Active(c *gin.Context) {
	period, err := h.periods.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Create godoc
// @Summary Create academic period
// @Tags Academic Periods
// @Accept json
// @Produce json
// @Param payload body service.CreateAcademicPeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /periods [post]
func (h *AcademicPeriodHandler) Create(c *gin.Context) {
	var req service.CreateAcademicPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	period, err := h.periods.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}
