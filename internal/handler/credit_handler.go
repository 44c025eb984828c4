package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

// IdempotencyHeader carries the client supplied key for credit writes.
const IdempotencyHeader = "Idempotency-Key"

type creditService interface {
	Balance(ctx context.Context, userID string) (*models.UserCreditBalance, error)
	History(ctx context.Context, filter models.CreditTransactionFilter) ([]models.CreditTransaction, *models.Pagination, error)
	Spend(ctx context.Context, userID string, req service.SpendCreditsRequest, idempotencyKey string) (*models.CreditTransaction, error)
	Grant(ctx context.Context, req service.GrantCreditsRequest, actor models.Actor, idempotencyKey string) (*models.CreditTransaction, error)
}

// CreditHandler exposes the credit ledger.
type CreditHandler struct {
	credits creditService
}

// NewCreditHandler constructs CreditHandler.
func NewCreditHandler(credits creditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// ledgerOwner resolves whose ledger is read: the caller, or userId for staff.
func ledgerOwner(c *gin.Context) string {
	actor := actorFromContext(c)
	if target := c.Query("userId"); target != "" && actor.Can(models.CapCreditsReadAll) {
		return target
	}
	return actor.UserID
}

// Balance godoc
// @Summary Credit balance
// @Tags Credits
// @Produce json
// @Param userId query string false "User (staff only)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/balance [get]
func (h *CreditHandler) Balance(c *gin.Context) {
	balance, err := h.credits.Balance(c.Request.Context(), ledgerOwner(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Transactions godoc
// @Summary Credit transaction history
// @Tags Credits
// @Produce json
// @Param userId query string false "User (staff only)"
// @Param type query string false "Transaction type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/transactions [get]
func (h *CreditHandler) Transactions(c *gin.Context) {
	filter := models.CreditTransactionFilter{
		UserID: ledgerOwner(c),
		Type:   models.CreditTransactionType(strings.ToUpper(c.Query("type"))),
	}
	filter.Page, filter.PageSize = pageParams(c)
	items, pagination, err := h.credits.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Spend godoc
// @Summary Spend credits
// @Tags Credits
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param payload body service.SpendCreditsRequest true "Spend payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/spend [post]
func (h *CreditHandler) Spend(c *gin.Context) {
	var req service.SpendCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	tx, err := h.credits.Spend(c.Request.Context(), actorFromContext(c).UserID, req, c.GetHeader(IdempotencyHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// Grant godoc
// @Summary Grant, refund or adjust credits
// @Tags Credits
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param payload body service.GrantCreditsRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/grants [post]
func (h *CreditHandler) Grant(c *gin.Context) {
	var req service.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	tx, err := h.credits.Grant(c.Request.Context(), req, actorFromContext(c), c.GetHeader(IdempotencyHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}
