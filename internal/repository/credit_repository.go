package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const (
	creditTxColumns      = `id, user_id, transaction_type, amount, balance_before, balance_after, related_entity_type, related_entity_id, idempotency_key, description, created_at`
	creditBalanceColumns = `user_id, total_credits, available_credits, spent_credits, bonus_credits, updated_at`
)

// CreditRepository persists the credit ledger and the per-user balance row.
type CreditRepository struct {
	db *sqlx.DB
}

// NewCreditRepository constructs the repository.
func NewCreditRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByIdempotencyKey returns the transaction previously written with key.
func (r *CreditRepository) FindByIdempotencyKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.CreditTransaction, error) {
	query := `SELECT ` + creditTxColumns + ` FROM credit_transactions WHERE idempotency_key = $1`
	var tx models.CreditTransaction
	if err := sqlx.GetContext(ctx, r.exec(exec), &tx, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find credit transaction by key: %w", err)
	}
	return &tx, nil
}

// EnsureBalance creates an all-zero balance row for userID when missing.
func (r *CreditRepository) EnsureBalance(ctx context.Context, exec sqlx.ExtContext, userID string) error {
	const query = `INSERT INTO user_credit_balances (user_id, total_credits, available_credits, spent_credits, bonus_credits, updated_at)
VALUES ($1, 0, 0, 0, 0, $2) ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure credit balance: %w", err)
	}
	return nil
}

// LockBalance reads the balance row with a row lock held until the transaction ends.
func (r *CreditRepository) LockBalance(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.UserCreditBalance, error) {
	query := `SELECT ` + creditBalanceColumns + ` FROM user_credit_balances WHERE user_id = $1 FOR UPDATE`
	var balance models.UserCreditBalance
	if err := sqlx.GetContext(ctx, r.exec(exec), &balance, query, userID); err != nil {
		return nil, fmt.Errorf("lock credit balance: %w", err)
	}
	return &balance, nil
}

// GetBalance reads the balance row without locking.
func (r *CreditRepository) GetBalance(ctx context.Context, userID string) (*models.UserCreditBalance, error) {
	query := `SELECT ` + creditBalanceColumns + ` FROM user_credit_balances WHERE user_id = $1`
	var balance models.UserCreditBalance
	if err := r.db.GetContext(ctx, &balance, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get credit balance: %w", err)
	}
	return &balance, nil
}

// UpdateBalance overwrites the counters of a locked balance row.
func (r *CreditRepository) UpdateBalance(ctx context.Context, exec sqlx.ExtContext, balance *models.UserCreditBalance) error {
	balance.UpdatedAt = time.Now().UTC()
	const query = `UPDATE user_credit_balances
SET total_credits = $2, available_credits = $3, spent_credits = $4, bonus_credits = $5, updated_at = $6
WHERE user_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, balance.UserID, balance.TotalCredits, balance.AvailableCredits,
		balance.SpentCredits, balance.BonusCredits, balance.UpdatedAt); err != nil {
		return fmt.Errorf("update credit balance: %w", err)
	}
	return nil
}

// InsertTransaction appends a ledger entry.
func (r *CreditRepository) InsertTransaction(ctx context.Context, exec sqlx.ExtContext, tx *models.CreditTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO credit_transactions (id, user_id, transaction_type, amount, balance_before, balance_after, related_entity_type, related_entity_id, idempotency_key, description, created_at)
VALUES (:id, :user_id, :transaction_type, :amount, :balance_before, :balance_after, :related_entity_type, :related_entity_id, :idempotency_key, :description, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, tx); err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

// ListTransactions pages through a user's ledger, newest first.
func (r *CreditRepository) ListTransactions(ctx context.Context, filter models.CreditTransactionFilter) ([]models.CreditTransaction, int, error) {
	var f filterSet
	f.add("user_id = $%d", filter.UserID)
	if filter.Type != "" {
		f.add("transaction_type = $%d", filter.Type)
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM credit_transactions%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		creditTxColumns, f.where(), limit, offset)
	var txs []models.CreditTransaction
	if err := r.db.SelectContext(ctx, &txs, query, f.args...); err != nil {
		return nil, 0, fmt.Errorf("list credit transactions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM credit_transactions"+f.where(), f.args...); err != nil {
		return nil, 0, fmt.Errorf("count credit transactions: %w", err)
	}
	return txs, total, nil
}
