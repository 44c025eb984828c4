package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
)

func TestCreditLockingSequence(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCreditRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO NOTHING")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_credit_balances WHERE user_id = $1 FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total_credits", "available_credits", "spent_credits", "bonus_credits", "updated_at"}).
			AddRow("u1", 100, 100, 0, 0, time.Now()))
	mock.ExpectExec("INSERT INTO credit_transactions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_credit_balances SET total_credits = $2")).
		WithArgs("u1", int64(100), int64(70), int64(30), int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureBalance(ctx, tx, "u1"))
	balance, err := repo.LockBalance(ctx, tx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.AvailableCredits)

	require.NoError(t, repo.InsertTransaction(ctx, tx, &models.CreditTransaction{UserID: "u1", TransactionType: models.CreditSpend, Amount: 30, BalanceBefore: 100, BalanceAfter: 70}))
	balance.AvailableCredits = 70
	balance.SpentCredits = 30
	require.NoError(t, repo.UpdateBalance(ctx, tx, balance))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditFindByIdempotencyKeyMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCreditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE idempotency_key = $1")).WithArgs("invoice:1").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIdempotencyKey(context.Background(), nil, "invoice:1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreditListTransactions(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCreditRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_transactions WHERE user_id = $1 AND transaction_type = $2 ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WithArgs("u1", models.CreditSpend).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "transaction_type", "amount"}).AddRow("tx1", "u1", "SPEND", 30))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1")).
		WithArgs("u1", models.CreditSpend).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	txs, total, err := repo.ListTransactions(context.Background(), models.CreditTransactionFilter{UserID: "u1", Type: models.CreditSpend})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 1, total)
}
