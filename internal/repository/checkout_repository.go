package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const (
	invoiceColumns  = `id, user_id, plan_id, coupon_id, subtotal, discount, total, currency, status, provider, notes, created_at, updated_at`
	purchaseColumns = `id, invoice_id, user_id, plan_id, credits, status, created_at, updated_at`
)

// CheckoutRepository persists plans, invoices, purchases and card tokens.
type CheckoutRepository struct {
	db *sqlx.DB
}

// NewCheckoutRepository constructs the repository.
func NewCheckoutRepository(db *sqlx.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

func (r *CheckoutRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindPlan returns a plan by id.
func (r *CheckoutRepository) FindPlan(ctx context.Context, id string) (*models.Plan, error) {
	const query = `SELECT id, name, price, currency, credits, active FROM plans WHERE id = $1`
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &plan, nil
}

// CreateInvoice inserts an invoice.
func (r *CheckoutRepository) CreateInvoice(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	const query = `INSERT INTO invoices (id, user_id, plan_id, coupon_id, subtotal, discount, total, currency, status, provider, notes, created_at, updated_at)
VALUES (:id, :user_id, :plan_id, :coupon_id, :subtotal, :discount, :total, :currency, :status, :provider, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// CreatePurchase inserts a purchase.
func (r *CheckoutRepository) CreatePurchase(ctx context.Context, exec sqlx.ExtContext, purchase *models.Purchase) error {
	if purchase.ID == "" {
		purchase.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	purchase.CreatedAt = now
	purchase.UpdatedAt = now
	const query = `INSERT INTO purchases (id, invoice_id, user_id, plan_id, credits, status, created_at, updated_at)
VALUES (:id, :invoice_id, :user_id, :plan_id, :credits, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, purchase); err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindInvoiceByOrder locates the invoice whose notes reference orderID.
func (r *CheckoutRepository) FindInvoiceByOrder(ctx context.Context, orderID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE notes LIKE $1 ESCAPE '\' ORDER BY created_at DESC LIMIT 1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, "%order:"+likeEscaper.Replace(orderID)+"%"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find invoice by order: %w", err)
	}
	return &invoice, nil
}

// FindPurchaseByInvoice returns the purchase attached to an invoice.
func (r *CheckoutRepository) FindPurchaseByInvoice(ctx context.Context, exec sqlx.ExtContext, invoiceID string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE invoice_id = $1`
	var purchase models.Purchase
	if err := sqlx.GetContext(ctx, r.exec(exec), &purchase, query, invoiceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find purchase by invoice: %w", err)
	}
	return &purchase, nil
}

// TransitionInvoice moves a PENDING invoice and its purchase to status.
// It reports false when the invoice was already settled.
func (r *CheckoutRepository) TransitionInvoice(ctx context.Context, exec sqlx.ExtContext, invoiceID string, status models.PaymentStatus) (bool, error) {
	target := r.exec(exec)
	now := time.Now().UTC()
	res, err := target.ExecContext(ctx, `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'`, invoiceID, status, now)
	if err != nil {
		return false, fmt.Errorf("update invoice status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return false, nil
	}
	if _, err := target.ExecContext(ctx, `UPDATE purchases SET status = $2, updated_at = $3 WHERE invoice_id = $1`, invoiceID, status, now); err != nil {
		return false, fmt.Errorf("update purchase status: %w", err)
	}
	return true, nil
}

// SaveCardToken stores a reusable payment method.
func (r *CheckoutRepository) SaveCardToken(ctx context.Context, token *models.CardToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO card_tokens (id, user_id, provider, token, brand, last4, created_at)
VALUES (:id, :user_id, :provider, :token, :brand, :last4, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("save card token: %w", err)
	}
	return nil
}
