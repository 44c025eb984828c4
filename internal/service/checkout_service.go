package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

// Checkout modes.
const (
	CheckoutModeAuthorize = "authorize"
	CheckoutModeSession   = "session"
)

type checkoutStore interface {
	FindPlan(ctx context.Context, id string) (*models.Plan, error)
	CreateInvoice(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error
	CreatePurchase(ctx context.Context, exec sqlx.ExtContext, purchase *models.Purchase) error
	FindInvoiceByOrder(ctx context.Context, orderID string) (*models.Invoice, error)
	FindPurchaseByInvoice(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.Purchase, error)
	TransitionInvoice(ctx context.Context, exec sqlx.ExtContext, invoiceID string, status models.PaymentStatus) (bool, error)
	SaveCardToken(ctx context.Context, token *models.CardToken) error
}

type couponResolver interface {
	Resolve(ctx context.Context, code, userID, planID string) (*models.Coupon, *CouponRejection, error)
	Redeem(ctx context.Context, exec sqlx.ExtContext, couponID string) error
}

type creditApplier interface {
	ApplyTx(ctx context.Context, exec sqlx.ExtContext, req ApplyCreditRequest) (*models.CreditTransaction, error)
}

// CheckoutRequest starts the purchase of a plan.
type CheckoutRequest struct {
	PlanID     string `json:"plan_id" validate:"required"`
	CouponCode string `json:"coupon_code" validate:"omitempty,max=64"`
	Mode       string `json:"mode" validate:"omitempty,oneof=authorize session"`
	CardToken  string `json:"card_token" validate:"omitempty,max=255"`
	SaveCard   bool   `json:"save_card"`
}

// CheckoutResult reports the invoice and, depending on mode, the charge or session.
type CheckoutResult struct {
	OrderID           string               `json:"order_id"`
	Invoice           *models.Invoice      `json:"invoice"`
	Status            models.PaymentStatus `json:"status"`
	AuthorizationCode string               `json:"authorization_code,omitempty"`
	DeclineReason     string               `json:"decline_reason,omitempty"`
	Session           *PaymentSession      `json:"session,omitempty"`
}

// PaymentWebhookEvent is the provider notification for an order.
type PaymentWebhookEvent struct {
	OrderID string               `json:"order_id" validate:"required,uuid"`
	Status  models.PaymentStatus `json:"status" validate:"required,oneof=PAID FAILED CANCELED"`
}

// CheckoutService bills plans and reconciles provider notifications.
type CheckoutService struct {
	repo          checkoutStore
	coupons       couponResolver
	credits       creditApplier
	gateway       PaymentGateway
	tx            txProvider
	validator     *validation.Validator
	logger        *zap.Logger
	currency      string
	webhookSecret string
}

// CheckoutServiceDeps groups collaborators of CheckoutService.
type CheckoutServiceDeps struct {
	Repo          checkoutStore
	Coupons       couponResolver
	Credits       creditApplier
	Gateway       PaymentGateway
	Tx            txProvider
	Validator     *validation.Validator
	Logger        *zap.Logger
	Currency      string
	WebhookSecret string
}

// NewCheckoutService constructs the service.
func NewCheckoutService(deps CheckoutServiceDeps) *CheckoutService {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CheckoutService{
		repo:          deps.Repo,
		coupons:       deps.Coupons,
		credits:       deps.Credits,
		gateway:       deps.Gateway,
		tx:            deps.Tx,
		validator:     deps.Validator,
		logger:        deps.Logger,
		currency:      deps.Currency,
		webhookSecret: deps.WebhookSecret,
	}
}

// Checkout creates a pending invoice for the plan and either charges it or opens a hosted session.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	if req.Mode == "" {
		req.Mode = CheckoutModeAuthorize
	}

	plan, err := s.repo.FindPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan no encontrado")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el plan")
	}
	if !plan.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "el plan no está disponible")
	}

	var coupon *models.Coupon
	if strings.TrimSpace(req.CouponCode) != "" {
		found, rejection, err := s.coupons.Resolve(ctx, req.CouponCode, userID, plan.ID)
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			return nil, appErrors.Clone(appErrors.ErrCouponInvalid, rejection.Message)
		}
		coupon = found
	}

	currency := plan.Currency
	if currency == "" {
		currency = s.currency
	}
	invoice := &models.Invoice{
		UserID:   userID,
		PlanID:   plan.ID,
		Subtotal: plan.Price,
		Currency: currency,
		Status:   models.PaymentStatusPending,
		Provider: s.gateway.Name(),
	}
	if coupon != nil {
		invoice.CouponID = &coupon.ID
		invoice.Discount = ComputeDiscount(*coupon, plan.Price)
	}
	invoice.Total = invoice.Subtotal - invoice.Discount
	orderID := uuid.NewString()
	invoice.Notes = "order:" + orderID

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateInvoice(ctx, tx, invoice); err != nil {
			return appErrors.Internal(err, "no se pudo crear la factura")
		}
		purchase := &models.Purchase{
			InvoiceID: invoice.ID,
			UserID:    userID,
			PlanID:    plan.ID,
			Credits:   plan.Credits,
			Status:    models.PaymentStatusPending,
		}
		if err := s.repo.CreatePurchase(ctx, tx, purchase); err != nil {
			return appErrors.Internal(err, "no se pudo registrar la compra")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order := PaymentOrder{
		OrderID:   orderID,
		UserID:    userID,
		Amount:    invoice.Total,
		Currency:  invoice.Currency,
		CardToken: req.CardToken,
		SaveCard:  req.SaveCard,
	}
	result := &CheckoutResult{OrderID: orderID, Invoice: invoice, Status: models.PaymentStatusPending}

	if req.Mode == CheckoutModeSession {
		session, err := s.gateway.CreateSession(ctx, order)
		if err != nil {
			s.logger.Error("create payment session", zap.String("order_id", orderID), zap.Error(err))
			return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "no se pudo iniciar el pago")
		}
		result.Session = session
		return result, nil
	}

	auth, err := s.gateway.Authorize(ctx, order)
	if err != nil {
		s.logger.Error("authorize payment", zap.String("order_id", orderID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "no se pudo procesar el pago")
	}
	status := models.PaymentStatusFailed
	if auth.Approved {
		status = models.PaymentStatusPaid
	}
	if _, err := s.settle(ctx, invoice, status); err != nil {
		return nil, err
	}
	invoice.Status = status
	result.Status = status
	result.AuthorizationCode = auth.AuthorizationCode
	result.DeclineReason = auth.DeclineReason

	if auth.Approved && auth.CardToken != "" {
		token := &models.CardToken{
			UserID:   userID,
			Provider: s.gateway.Name(),
			Token:    auth.CardToken,
			Brand:    auth.CardBrand,
			Last4:    auth.CardLast4,
		}
		if err := s.repo.SaveCardToken(ctx, token); err != nil {
			s.logger.Warn("store card token", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return result, nil
}

// VerifyWebhookSecret compares the shared secret sent by the provider.
func (s *CheckoutService) VerifyWebhookSecret(provided string) bool {
	if s.webhookSecret == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) == 1
}

// HandleWebhook reconciles a provider notification. Replays are no-ops.
func (s *CheckoutService) HandleWebhook(ctx context.Context, provider string, event PaymentWebhookEvent) (*models.Invoice, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, validationError(s.validator, err)
	}
	if provider != s.gateway.Name() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proveedor de pago desconocido")
	}
	invoice, err := s.repo.FindInvoiceByOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "orden no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la factura")
	}
	changed, err := s.settle(ctx, invoice, event.Status)
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.Warn("payment webhook replay ignored",
			zap.String("order_id", event.OrderID),
			zap.String("invoice_status", string(invoice.Status)),
			zap.String("event_status", string(event.Status)),
		)
		return invoice, nil
	}
	invoice.Status = event.Status
	return invoice, nil
}

// settle moves a pending invoice to status. Paying grants the plan credits and
// consumes the coupon in the same transaction.
func (s *CheckoutService) settle(ctx context.Context, invoice *models.Invoice, status models.PaymentStatus) (bool, error) {
	var changed bool
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		ok, err := s.repo.TransitionInvoice(ctx, tx, invoice.ID, status)
		if err != nil {
			return appErrors.Internal(err, "no se pudo actualizar la factura")
		}
		changed = ok
		if !ok || status != models.PaymentStatusPaid {
			return nil
		}

		purchase, err := s.repo.FindPurchaseByInvoice(ctx, tx, invoice.ID)
		if err != nil {
			return appErrors.Internal(err, "no se pudo cargar la compra")
		}
		if purchase.Credits > 0 {
			if _, err := s.credits.ApplyTx(ctx, tx, ApplyCreditRequest{
				UserID:            purchase.UserID,
				Type:              models.CreditPurchase,
				Amount:            purchase.Credits,
				RelatedEntityType: "invoice",
				RelatedEntityID:   invoice.ID,
				IdempotencyKey:    "invoice:" + invoice.ID,
				Description:       "Compra de plan",
			}); err != nil {
				return err
			}
		}
		if invoice.CouponID != nil {
			if err := s.coupons.Redeem(ctx, tx, *invoice.CouponID); err != nil {
				if !errors.Is(err, appErrors.ErrCouponInvalid) {
					return err
				}
				s.logger.Warn("coupon usage limit reached at settlement",
					zap.String("invoice_id", invoice.ID),
					zap.String("coupon_id", *invoice.CouponID),
				)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Info("invoice settled", zap.String("invoice_id", invoice.ID), zap.String("status", string(status)))
	}
	return changed, nil
}
