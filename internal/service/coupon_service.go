package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/pkg/database"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

// Coupon rejection reasons, in check order.
const (
	CouponReasonNotFound   = "not_found"
	CouponReasonInactive   = "inactive"
	CouponReasonNotStarted = "not_started"
	CouponReasonExpired    = "expired"
	CouponReasonUsage      = "usage_limit"
	CouponReasonUser       = "user_restricted"
	CouponReasonPlan       = "plan_restricted"
)

var couponMessages = map[string]string{
	CouponReasonNotFound:   "Cupón no encontrado",
	CouponReasonInactive:   "El cupón no está activo",
	CouponReasonNotStarted: "El cupón aún no está disponible",
	CouponReasonExpired:    "El cupón ha expirado",
	CouponReasonUsage:      "El cupón ha alcanzado su límite de uso",
	CouponReasonUser:       "Este cupón no está disponible para tu cuenta",
	CouponReasonPlan:       "Este cupón no es válido para este plan",
}

// CouponRejection explains why a coupon cannot be used.
type CouponRejection struct {
	Reason  string
	Message string
}

func (r *CouponRejection) Error() string {
	return r.Message
}

func reject(reason string) *CouponRejection {
	return &CouponRejection{Reason: reason, Message: couponMessages[reason]}
}

type couponStore interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, int, error)
	Redeem(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
}

type planReader interface {
	FindPlan(ctx context.Context, id string) (*models.Plan, error)
}

// ValidateCouponRequest asks whether code may be applied to a plan.
type ValidateCouponRequest struct {
	Code   string `json:"code" validate:"required,max=64"`
	PlanID string `json:"plan_id" validate:"omitempty"`
}

// CouponValidation is the outcome of Validate. Invalid coupons are not errors.
type CouponValidation struct {
	Valid    bool           `json:"valid"`
	Error    string         `json:"error,omitempty"`
	Coupon   *models.Coupon `json:"coupon,omitempty"`
	Discount *int64         `json:"discount,omitempty"`
}

// CreateCouponRequest is the admin payload for a new coupon.
type CreateCouponRequest struct {
	Code          string              `json:"code" validate:"required,alphanum,max=32"`
	Description   string              `json:"description" validate:"omitempty,max=255"`
	DiscountType  models.DiscountType `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue int64               `json:"discount_value" validate:"required,gt=0"`
	IsActive      *bool               `json:"is_active"`
	StartsAt      *time.Time          `json:"starts_at"`
	ExpiresAt     *time.Time          `json:"expires_at"`
	UsageLimit    *int                `json:"usage_limit" validate:"omitempty,gt=0"`
	UserID        string              `json:"user_id"`
	PlanID        string              `json:"plan_id"`
}

// CouponService validates, creates and redeems coupons.
type CouponService struct {
	repo      couponStore
	plans     planReader
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewCouponService constructs the service.
func NewCouponService(repo couponStore, plans planReader, metrics *MetricsService, validate *validation.Validator, logger *zap.Logger) *CouponService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponService{repo: repo, plans: plans, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// CheckCoupon applies the ordered coupon checks and returns the first failure.
// A nil coupon means the code does not exist.
func CheckCoupon(coupon *models.Coupon, userID, planID string, now time.Time) *CouponRejection {
	switch {
	case coupon == nil:
		return reject(CouponReasonNotFound)
	case !coupon.IsActive:
		return reject(CouponReasonInactive)
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return reject(CouponReasonNotStarted)
	case coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt):
		return reject(CouponReasonExpired)
	case coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit:
		return reject(CouponReasonUsage)
	case coupon.RestrictedUserID != nil && *coupon.RestrictedUserID != userID:
		return reject(CouponReasonUser)
	case coupon.RestrictedPlanID != nil && *coupon.RestrictedPlanID != planID:
		return reject(CouponReasonPlan)
	}
	return nil
}

// ComputeDiscount returns the discount for price, never more than price.
func ComputeDiscount(coupon models.Coupon, price int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case models.DiscountPercentage:
		pct := coupon.DiscountValue
		if pct > 100 {
			pct = 100
		}
		discount = price * pct / 100
	case models.DiscountFixed:
		discount = coupon.DiscountValue
	}
	if discount < 0 {
		return 0
	}
	if discount > price {
		return price
	}
	return discount
}

// Validate reports whether the coupon applies for the user and plan.
func (s *CouponService) Validate(ctx context.Context, userID string, req ValidateCouponRequest) (*CouponValidation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	coupon, rejection, err := s.Resolve(ctx, req.Code, userID, req.PlanID)
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return &CouponValidation{Valid: false, Error: rejection.Message}, nil
	}

	result := &CouponValidation{Valid: true, Coupon: coupon}
	if req.PlanID != "" && s.plans != nil {
		plan, err := s.plans.FindPlan(ctx, req.PlanID)
		switch {
		case err == nil:
			discount := ComputeDiscount(*coupon, plan.Price)
			result.Discount = &discount
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan no encontrado")
		default:
			return nil, appErrors.Internal(err, "no se pudo cargar el plan")
		}
	}
	return result, nil
}

// Resolve loads code and runs CheckCoupon. A rejection is returned separately from
// infrastructure errors so checkout and validation can report it differently.
func (s *CouponService) Resolve(ctx context.Context, code, userID, planID string) (*models.Coupon, *CouponRejection, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	var coupon *models.Coupon
	found, err := s.repo.FindByCode(ctx, normalized)
	switch {
	case err == nil:
		coupon = found
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, nil, appErrors.Internal(err, "no se pudo validar el cupón")
	}
	if rejection := CheckCoupon(coupon, userID, planID, s.now()); rejection != nil {
		s.metrics.IncCouponRejection(rejection.Reason)
		return nil, rejection, nil
	}
	return coupon, nil, nil
}

// Redeem consumes one use of the coupon inside exec. It fails when the limit was reached concurrently.
func (s *CouponService) Redeem(ctx context.Context, exec sqlx.ExtContext, couponID string) error {
	ok, err := s.repo.Redeem(ctx, exec, couponID)
	if err != nil {
		return appErrors.Internal(err, "no se pudo canjear el cupón")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrCouponInvalid, couponMessages[CouponReasonUsage])
	}
	return nil
}

// Create stores a new coupon with an upper-cased code.
func (s *CouponService) Create(ctx context.Context, req CreateCouponRequest) (*models.Coupon, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	if req.DiscountType == models.DiscountPercentage && req.DiscountValue > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "el porcentaje de descuento no puede superar 100")
	}
	if req.StartsAt != nil && req.ExpiresAt != nil && req.ExpiresAt.Before(*req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "la fecha de expiración debe ser posterior al inicio")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	coupon := &models.Coupon{
		Code:             strings.ToUpper(strings.TrimSpace(req.Code)),
		Description:      optionalString(req.Description),
		DiscountType:     req.DiscountType,
		DiscountValue:    req.DiscountValue,
		IsActive:         active,
		StartsAt:         req.StartsAt,
		ExpiresAt:        req.ExpiresAt,
		UsageLimit:       req.UsageLimit,
		RestrictedUserID: optionalString(req.UserID),
		RestrictedPlanID: optionalString(req.PlanID),
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "ya existe un cupón con ese código")
		}
		return nil, appErrors.Internal(err, "no se pudo crear el cupón")
	}
	s.logger.Info("coupon created", zap.String("coupon_id", coupon.ID), zap.String("code", coupon.Code))
	return coupon, nil
}

// List returns coupons for administration.
func (s *CouponService) List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudieron listar los cupones")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}
