package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

// WebhookSecretHeader carries the shared secret of payment callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

type checkoutService interface {
	Checkout(ctx context.Context, userID string, req service.CheckoutRequest) (*service.CheckoutResult, error)
	VerifyWebhookSecret(provided string) bool
	HandleWebhook(ctx context.Context, provider string, event service.PaymentWebhookEvent) (*models.Invoice, error)
}

// CheckoutHandler sells credit plans.
type CheckoutHandler struct {
	checkout checkoutService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(checkout checkoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Checkout godoc
// @Summary Buy a credit plan
// @Description In authorize mode the card is charged immediately; in session mode the client is redirected and the result arrives by webhook.
// @Tags Checkout
// @Accept json
// @Produce json
// @Param payload body service.CheckoutRequest true "Checkout payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.checkout.Checkout(c.Request.Context(), actorFromContext(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Webhook godoc
// @Summary Payment provider callback
// @Tags Checkout
// @Accept json
// @Produce json
// @Param provider path string true "Provider name"
// @Param X-Webhook-Secret header string true "Shared secret"
// @Param payload body service.PaymentWebhookEvent true "Payment event"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /webhooks/payments/{provider} [post]
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	if !h.checkout.VerifyWebhookSecret(c.GetHeader(WebhookSecretHeader)) {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "firma del webhook inválida"))
		return
	}
	var event service.PaymentWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	invoice, err := h.checkout.HandleWebhook(c.Request.Context(), c.Param("provider"), event)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}
