package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

type couponService interface {
	Validate(ctx context.Context, userID string, req service.ValidateCouponRequest) (*service.CouponValidation, error)
	Create(ctx context.Context, req service.CreateCouponRequest) (*models.Coupon, error)
	List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, *models.Pagination, error)
}

// CouponHandler exposes coupon validation and management.
type CouponHandler struct {
	coupons couponService
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(coupons couponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// Validate godoc
// @Summary Validate a coupon code
// @Description Returns valid=false with the first failing reason instead of an error status.
// @Tags Coupons
// @Accept json
// @Produce json
// @Param payload body service.ValidateCouponRequest true "Coupon code and optional plan"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Security BearerAuth
// @Router /coupons/validate [post]
func (h *CouponHandler) Validate(c *gin.Context) {
	var req service.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.coupons.Validate(c.Request.Context(), actorFromContext(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List coupons
// @Tags Coupons
// @Produce json
// @Param active query bool false "Only active coupons"
// @Param search query string false "Code prefix"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /coupons [get]
func (h *CouponHandler) List(c *gin.Context) {
	filter := models.CouponFilter{
		ActiveOnly: c.Query("active") == "true",
		Search:     c.Query("search"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	coupons, pagination, err := h.coupons.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coupons, pagination)
}

// Create godoc
// @Summary Create a coupon
// @Tags Coupons
// @Accept json
// @Produce json
// @Param payload body service.CreateCouponRequest true "Coupon payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /coupons [post]
func (h *CouponHandler) Create(c *gin.Context) {
	var req service.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	coupon, err := h.coupons.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, coupon)
}
