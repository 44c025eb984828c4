package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/pkg/database"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

var (
	// ErrNegativeBalance is returned by ApplyToBalance when available credits would drop below zero.
	ErrNegativeBalance = errors.New("available credits would become negative")
	// ErrRefundExceedsSpent is returned when a refund returns more credits than were spent.
	ErrRefundExceedsSpent = errors.New("refund exceeds spent credits")
)

type creditStore interface {
	FindByIdempotencyKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.CreditTransaction, error)
	EnsureBalance(ctx context.Context, exec sqlx.ExtContext, userID string) error
	LockBalance(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.UserCreditBalance, error)
	GetBalance(ctx context.Context, userID string) (*models.UserCreditBalance, error)
	UpdateBalance(ctx context.Context, exec sqlx.ExtContext, balance *models.UserCreditBalance) error
	InsertTransaction(ctx context.Context, exec sqlx.ExtContext, tx *models.CreditTransaction) error
	ListTransactions(ctx context.Context, filter models.CreditTransactionFilter) ([]models.CreditTransaction, int, error)
}

// ApplyCreditRequest describes one ledger mutation.
type ApplyCreditRequest struct {
	UserID            string
	Type              models.CreditTransactionType
	Amount            int64
	RelatedEntityType string
	RelatedEntityID   string
	IdempotencyKey    string
	Description       string
}

// SpendCreditsRequest is the payload students use to consume credits.
type SpendCreditsRequest struct {
	Amount            int64  `json:"amount" validate:"required,gt=0"`
	RelatedEntityType string `json:"related_entity_type" validate:"omitempty,max=50"`
	RelatedEntityID   string `json:"related_entity_id" validate:"omitempty,max=64"`
	Description       string `json:"description" validate:"omitempty,max=255"`
}

// GrantCreditsRequest is the admin payload for bonuses and adjustments.
type GrantCreditsRequest struct {
	UserID      string                       `json:"user_id" validate:"required"`
	Type        models.CreditTransactionType `json:"type" validate:"required,oneof=BONUS ADJUSTMENT REFUND"`
	Amount      int64                        `json:"amount" validate:"required"`
	Description string                       `json:"description" validate:"omitempty,max=255"`
}

// CreditService maintains the credit ledger and its denormalized balance.
type CreditService struct {
	repo      creditStore
	tx        txProvider
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
	maxAmount int64
}

// NewCreditService constructs the service. maxAmount caps a single mutation; zero disables the cap.
func NewCreditService(repo creditStore, tx txProvider, metrics *MetricsService, validate *validation.Validator, logger *zap.Logger, maxAmount int64) *CreditService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditService{repo: repo, tx: tx, metrics: metrics, validator: validate, logger: logger, maxAmount: maxAmount}
}

// SignedAmount returns the amount as it affects available credits.
func SignedAmount(txType models.CreditTransactionType, amount int64) int64 {
	if txType == models.CreditSpend {
		return -amount
	}
	return amount
}

// ApplyToBalance returns the balance after applying one transaction. The
// invariant available = total - spent is preserved for every type.
func ApplyToBalance(balance models.UserCreditBalance, txType models.CreditTransactionType, amount int64) (models.UserCreditBalance, error) {
	next := balance
	switch txType {
	case models.CreditPurchase:
		next.TotalCredits += amount
		next.AvailableCredits += amount
	case models.CreditBonus:
		next.TotalCredits += amount
		next.AvailableCredits += amount
		next.BonusCredits += amount
	case models.CreditSpend:
		next.SpentCredits += amount
		next.AvailableCredits -= amount
	case models.CreditRefund:
		if amount > balance.SpentCredits {
			return balance, ErrRefundExceedsSpent
		}
		next.SpentCredits -= amount
		next.AvailableCredits += amount
	case models.CreditAdjustment:
		next.TotalCredits += amount
		next.AvailableCredits += amount
	default:
		return balance, fmt.Errorf("unsupported credit transaction type %q", txType)
	}
	if next.AvailableCredits < 0 {
		return balance, ErrNegativeBalance
	}
	return next, nil
}

// Apply writes one ledger entry and updates the balance in a single transaction.
func (s *CreditService) Apply(ctx context.Context, req ApplyCreditRequest) (*models.CreditTransaction, error) {
	var result *models.CreditTransaction
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.ApplyTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyTx is Apply inside a caller-owned transaction.
func (s *CreditService) ApplyTx(ctx context.Context, exec sqlx.ExtContext, req ApplyCreditRequest) (*models.CreditTransaction, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	if err := s.repo.EnsureBalance(ctx, exec, req.UserID); err != nil {
		return nil, appErrors.Internal(err, "no se pudo preparar el saldo")
	}
	balance, err := s.repo.LockBalance(ctx, exec, req.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo leer el saldo")
	}

	// Checked under the balance lock: same-key requests for one user serialize here.
	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, exec, req.IdempotencyKey)
		if err == nil {
			if !sameCreditRequest(existing, req) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "la clave de idempotencia ya se usó para otra operación")
			}
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "no se pudo verificar la transacción")
		}
	}

	next, err := ApplyToBalance(*balance, req.Type, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrNegativeBalance):
			return nil, appErrors.ErrInsufficientCredits
		case errors.Is(err, ErrRefundExceedsSpent):
			return nil, appErrors.Clone(appErrors.ErrValidation, "el reembolso excede los créditos consumidos")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tipo de transacción inválido")
	}

	entry := &models.CreditTransaction{
		UserID:            req.UserID,
		TransactionType:   req.Type,
		Amount:            SignedAmount(req.Type, req.Amount),
		BalanceBefore:     balance.AvailableCredits,
		BalanceAfter:      next.AvailableCredits,
		RelatedEntityType: optionalString(req.RelatedEntityType),
		RelatedEntityID:   optionalString(req.RelatedEntityID),
		IdempotencyKey:    optionalString(req.IdempotencyKey),
		Description:       optionalString(req.Description),
	}
	if err := s.repo.InsertTransaction(ctx, exec, entry); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "la clave de idempotencia ya se usó para otra operación")
		}
		return nil, appErrors.Internal(err, "no se pudo registrar la transacción")
	}
	if err := s.repo.UpdateBalance(ctx, exec, &next); err != nil {
		return nil, appErrors.Internal(err, "no se pudo actualizar el saldo")
	}

	s.metrics.IncCreditTransaction(string(req.Type))
	s.logger.Info("credit transaction applied",
		zap.String("user_id", req.UserID),
		zap.String("type", string(req.Type)),
		zap.Int64("amount", entry.Amount),
		zap.Int64("balance_after", entry.BalanceAfter),
	)
	return entry, nil
}

// Balance returns the user's balance, creating an empty one on first read.
func (s *CreditService) Balance(ctx context.Context, userID string) (*models.UserCreditBalance, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "no se pudo leer el saldo")
	}
	if err := s.repo.EnsureBalance(ctx, nil, userID); err != nil {
		return nil, appErrors.Internal(err, "no se pudo preparar el saldo")
	}
	return &models.UserCreditBalance{UserID: userID}, nil
}

// History pages through the user's ledger.
func (s *CreditService) History(ctx context.Context, filter models.CreditTransactionFilter) ([]models.CreditTransaction, *models.Pagination, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "tipo de transacción inválido")
	}
	items, total, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudo cargar el historial de créditos")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Spend consumes credits of the calling user.
func (s *CreditService) Spend(ctx context.Context, userID string, req SpendCreditsRequest, idempotencyKey string) (*models.CreditTransaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	return s.Apply(ctx, ApplyCreditRequest{
		UserID:            userID,
		Type:              models.CreditSpend,
		Amount:            req.Amount,
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
		IdempotencyKey:    scopedKey(userID, idempotencyKey),
		Description:       req.Description,
	})
}

// Grant lets staff add bonuses, refunds and signed adjustments.
func (s *CreditService) Grant(ctx context.Context, req GrantCreditsRequest, actor models.Actor, idempotencyKey string) (*models.CreditTransaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	return s.Apply(ctx, ApplyCreditRequest{
		UserID:            req.UserID,
		Type:              req.Type,
		Amount:            req.Amount,
		RelatedEntityType: "grant",
		RelatedEntityID:   actor.UserID,
		IdempotencyKey:    scopedKey(actor.UserID+":"+req.UserID, idempotencyKey),
		Description:       req.Description,
	})
}

func (s *CreditService) checkRequest(req ApplyCreditRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "usuario requerido")
	}
	if !req.Type.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "tipo de transacción inválido")
	}
	if req.Type == models.CreditAdjustment {
		if req.Amount == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "el ajuste no puede ser cero")
		}
	} else if req.Amount <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "el monto debe ser mayor que cero")
	}
	if s.maxAmount > 0 && (req.Amount > s.maxAmount || -req.Amount > s.maxAmount) {
		return appErrors.Clone(appErrors.ErrValidation, "el monto excede el máximo permitido")
	}
	return nil
}

func sameCreditRequest(existing *models.CreditTransaction, req ApplyCreditRequest) bool {
	return existing.UserID == req.UserID &&
		existing.TransactionType == req.Type &&
		existing.Amount == SignedAmount(req.Type, req.Amount)
}

func scopedKey(scope, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return scope + ":" + key
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
