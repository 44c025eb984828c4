package models

import "time"

// CreditTransactionType is the business reason for a wallet mutation.
type CreditTransactionType string

const (
	CreditPurchase   CreditTransactionType = "PURCHASE"
	CreditSpend      CreditTransactionType = "SPEND"
	CreditBonus      CreditTransactionType = "BONUS"
	CreditRefund     CreditTransactionType = "REFUND"
	CreditAdjustment CreditTransactionType = "ADJUSTMENT"
)

// Valid reports whether the type is supported.
func (t CreditTransactionType) Valid() bool {
	switch t {
	case CreditPurchase, CreditSpend, CreditBonus, CreditRefund, CreditAdjustment:
		return true
	default:
		return false
	}
}

// CreditTransaction is one append-only ledger entry.
type CreditTransaction struct {
	ID                string                `db:"id" json:"id"`
	UserID            string                `db:"user_id" json:"user_id"`
	TransactionType   CreditTransactionType `db:"transaction_type" json:"transaction_type"`
	Amount            int64                 `db:"amount" json:"amount"`
	BalanceBefore     int64                 `db:"balance_before" json:"balance_before"`
	BalanceAfter      int64                 `db:"balance_after" json:"balance_after"`
	RelatedEntityType *string               `db:"related_entity_type" json:"related_entity_type,omitempty"`
	RelatedEntityID   *string               `db:"related_entity_id" json:"related_entity_id,omitempty"`
	IdempotencyKey    *string               `db:"idempotency_key" json:"-"`
	Description       *string               `db:"description" json:"description,omitempty"`
	CreatedAt         time.Time             `db:"created_at" json:"created_at"`
}

// UserCreditBalance is the denormalized wallet of a user.
type UserCreditBalance struct {
	UserID           string    `db:"user_id" json:"user_id"`
	TotalCredits     int64     `db:"total_credits" json:"total_credits"`
	AvailableCredits int64     `db:"available_credits" json:"available_credits"`
	SpentCredits     int64     `db:"spent_credits" json:"spent_credits"`
	BonusCredits     int64     `db:"bonus_credits" json:"bonus_credits"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// CreditTransactionFilter scopes history queries.
type CreditTransactionFilter struct {
	UserID   string
	Type     CreditTransactionType
	Page     int
	PageSize int
}
