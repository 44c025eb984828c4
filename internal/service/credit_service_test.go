package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type memoryCreditStore struct {
	balances  map[string]*models.UserCreditBalance
	txs       []models.CreditTransaction
	calls     []string
	insertErr error
}

func newMemoryCreditStore() *memoryCreditStore {
	return &memoryCreditStore{balances: map[string]*models.UserCreditBalance{}}
}

func (m *memoryCreditStore) FindByIdempotencyKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.CreditTransaction, error) {
	m.calls = append(m.calls, "find")
	for i := range m.txs {
		if m.txs[i].IdempotencyKey != nil && *m.txs[i].IdempotencyKey == key {
			tx := m.txs[i]
			return &tx, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryCreditStore) EnsureBalance(ctx context.Context, exec sqlx.ExtContext, userID string) error {
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = &models.UserCreditBalance{UserID: userID}
	}
	return nil
}

func (m *memoryCreditStore) LockBalance(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.UserCreditBalance, error) {
	m.calls = append(m.calls, "lock")
	b, ok := m.balances[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func (m *memoryCreditStore) GetBalance(ctx context.Context, userID string) (*models.UserCreditBalance, error) {
	return m.LockBalance(ctx, nil, userID)
}

func (m *memoryCreditStore) UpdateBalance(ctx context.Context, exec sqlx.ExtContext, balance *models.UserCreditBalance) error {
	copied := *balance
	m.balances[balance.UserID] = &copied
	return nil
}

func (m *memoryCreditStore) InsertTransaction(ctx context.Context, exec sqlx.ExtContext, tx *models.CreditTransaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if tx.ID == "" {
		tx.ID = fmt.Sprintf("tx-%d", len(m.txs)+1)
	}
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memoryCreditStore) ListTransactions(ctx context.Context, filter models.CreditTransactionFilter) ([]models.CreditTransaction, int, error) {
	var out []models.CreditTransaction
	for _, tx := range m.txs {
		if tx.UserID == filter.UserID {
			out = append(out, tx)
		}
	}
	return out, len(out), nil
}

func TestApplyToBalance(t *testing.T) {
	start := models.UserCreditBalance{TotalCredits: 100, AvailableCredits: 60, SpentCredits: 40, BonusCredits: 10}
	cases := []struct {
		txType models.CreditTransactionType
		amount int64
		want   models.UserCreditBalance
	}{
		{models.CreditPurchase, 50, models.UserCreditBalance{TotalCredits: 150, AvailableCredits: 110, SpentCredits: 40, BonusCredits: 10}},
		{models.CreditBonus, 5, models.UserCreditBalance{TotalCredits: 105, AvailableCredits: 65, SpentCredits: 40, BonusCredits: 15}},
		{models.CreditSpend, 60, models.UserCreditBalance{TotalCredits: 100, AvailableCredits: 0, SpentCredits: 100, BonusCredits: 10}},
		{models.CreditRefund, 20, models.UserCreditBalance{TotalCredits: 100, AvailableCredits: 80, SpentCredits: 20, BonusCredits: 10}},
		{models.CreditAdjustment, -30, models.UserCreditBalance{TotalCredits: 70, AvailableCredits: 30, SpentCredits: 40, BonusCredits: 10}},
	}
	for _, tc := range cases {
		t.Run(string(tc.txType), func(t *testing.T) {
			got, err := ApplyToBalance(start, tc.txType, tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got.TotalCredits-got.SpentCredits, got.AvailableCredits)
		})
	}

	_, err := ApplyToBalance(start, models.CreditSpend, 61)
	assert.ErrorIs(t, err, ErrNegativeBalance)
	_, err = ApplyToBalance(start, models.CreditAdjustment, -61)
	assert.ErrorIs(t, err, ErrNegativeBalance)
	_, err = ApplyToBalance(start, models.CreditRefund, 41)
	assert.ErrorIs(t, err, ErrRefundExceedsSpent)
}

func TestCreditServiceSpendScenario(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newMemoryCreditStore()
	store.balances["stu-1"] = &models.UserCreditBalance{UserID: "stu-1", TotalCredits: 100, AvailableCredits: 100}
	svc := NewCreditService(store, tx, nil, nil, nil, 0)

	mock.ExpectBegin()
	mock.ExpectCommit()
	entry, err := svc.Spend(context.Background(), "stu-1", SpendCreditsRequest{Amount: 30}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.BalanceBefore)
	assert.Equal(t, int64(70), entry.BalanceAfter)
	assert.Equal(t, int64(-30), entry.Amount)
	assert.Equal(t, int64(70), store.balances["stu-1"].AvailableCredits)
	assert.Equal(t, int64(30), store.balances["stu-1"].SpentCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditServiceInsufficientCredits(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newMemoryCreditStore()
	store.balances["stu-1"] = &models.UserCreditBalance{UserID: "stu-1", TotalCredits: 10, AvailableCredits: 10}
	svc := NewCreditService(store, tx, nil, nil, nil, 0)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Spend(context.Background(), "stu-1", SpendCreditsRequest{Amount: 11}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInsufficientCredits))
	assert.Empty(t, store.txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditServiceIdempotencyKeyReturnsExisting(t *testing.T) {
	store := newMemoryCreditStore()
	svc := NewCreditService(store, nil, nil, nil, nil, 0)
	req := ApplyCreditRequest{UserID: "stu-1", Type: models.CreditPurchase, Amount: 40, IdempotencyKey: "invoice:1"}

	first, err := svc.ApplyTx(context.Background(), nil, req)
	require.NoError(t, err)
	second, err := svc.ApplyTx(context.Background(), nil, req)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.txs, 1)
	assert.Equal(t, int64(40), store.balances["stu-1"].AvailableCredits)
}

func TestCreditServiceRunningSumProperty(t *testing.T) {
	store := newMemoryCreditStore()
	svc := NewCreditService(store, nil, nil, nil, nil, 0)
	rng := rand.New(rand.NewSource(42))
	types := []models.CreditTransactionType{
		models.CreditPurchase, models.CreditSpend, models.CreditBonus, models.CreditRefund, models.CreditAdjustment,
	}

	for i := 0; i < 300; i++ {
		txType := types[rng.Intn(len(types))]
		amount := int64(rng.Intn(50) + 1)
		if txType == models.CreditAdjustment && rng.Intn(2) == 0 {
			amount = -amount
		}
		_, err := svc.ApplyTx(context.Background(), nil, ApplyCreditRequest{UserID: "u", Type: txType, Amount: amount})
		if err != nil {
			require.True(t, errors.Is(err, appErrors.ErrInsufficientCredits) || errors.Is(err, appErrors.ErrValidation), "unexpected error %v", err)
		}
	}

	var sum, prevAfter int64
	for i, tx := range store.txs {
		sum += tx.Amount
		assert.Equal(t, tx.BalanceBefore+tx.Amount, tx.BalanceAfter)
		if i > 0 {
			assert.Equal(t, prevAfter, tx.BalanceBefore)
		}
		assert.GreaterOrEqual(t, tx.BalanceAfter, int64(0))
		prevAfter = tx.BalanceAfter
	}
	balance := store.balances["u"]
	assert.Equal(t, sum, balance.AvailableCredits)
	assert.Equal(t, balance.TotalCredits-balance.SpentCredits, balance.AvailableCredits)
	assert.GreaterOrEqual(t, balance.SpentCredits, int64(0))
}

func TestCreditServiceGrantKeyIsScopedToRecipient(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	store := newMemoryCreditStore()
	svc := NewCreditService(store, tx, nil, nil, nil, 0)
	admin := models.Actor{UserID: "admin-1", Role: models.RoleAdmin}

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := svc.Grant(context.Background(), GrantCreditsRequest{UserID: "stu-A", Type: models.CreditBonus, Amount: 50}, admin, "k1")
	require.NoError(t, err)
	second, err := svc.Grant(context.Background(), GrantCreditsRequest{UserID: "stu-B", Type: models.CreditBonus, Amount: 50}, admin, "k1")
	require.NoError(t, err)

	assert.Equal(t, "stu-A", first.UserID)
	assert.Equal(t, "stu-B", second.UserID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, store.txs, 2)
	assert.Equal(t, int64(50), store.balances["stu-B"].AvailableCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditServiceKeyReuseWithDifferentRequestConflicts(t *testing.T) {
	store := newMemoryCreditStore()
	svc := NewCreditService(store, nil, nil, nil, nil, 0)
	req := ApplyCreditRequest{UserID: "stu-1", Type: models.CreditPurchase, Amount: 40, IdempotencyKey: "invoice:1"}
	_, err := svc.ApplyTx(context.Background(), nil, req)
	require.NoError(t, err)

	changed := req
	changed.Amount = 45
	_, err = svc.ApplyTx(context.Background(), nil, changed)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	otherUser := req
	otherUser.UserID = "stu-2"
	_, err = svc.ApplyTx(context.Background(), nil, otherUser)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Len(t, store.txs, 1)
}

func TestCreditServiceChecksKeyUnderBalanceLock(t *testing.T) {
	store := newMemoryCreditStore()
	svc := NewCreditService(store, nil, nil, nil, nil, 0)
	_, err := svc.ApplyTx(context.Background(), nil, ApplyCreditRequest{UserID: "stu-1", Type: models.CreditPurchase, Amount: 10, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lock", "find"}, store.calls)

	store.insertErr = &pq.Error{Code: "23505"}
	_, err = svc.ApplyTx(context.Background(), nil, ApplyCreditRequest{UserID: "stu-1", Type: models.CreditPurchase, Amount: 10, IdempotencyKey: "other"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestCreditServiceRefundCannotExceedSpent(t *testing.T) {
	store := newMemoryCreditStore()
	store.balances["stu-1"] = &models.UserCreditBalance{UserID: "stu-1", TotalCredits: 100, AvailableCredits: 90, SpentCredits: 10}
	svc := NewCreditService(store, nil, nil, nil, nil, 0)

	_, err := svc.ApplyTx(context.Background(), nil, ApplyCreditRequest{UserID: "stu-1", Type: models.CreditRefund, Amount: 11})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, int64(10), store.balances["stu-1"].SpentCredits)

	entry, err := svc.ApplyTx(context.Background(), nil, ApplyCreditRequest{UserID: "stu-1", Type: models.CreditRefund, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.BalanceAfter)
	assert.Equal(t, int64(0), store.balances["stu-1"].SpentCredits)
}

func TestCreditServiceRejectsBadAmounts(t *testing.T) {
	svc := NewCreditService(newMemoryCreditStore(), nil, nil, nil, nil, 1000)
	cases := []ApplyCreditRequest{
		{UserID: "u", Type: models.CreditPurchase, Amount: 0},
		{UserID: "u", Type: models.CreditSpend, Amount: -5},
		{UserID: "u", Type: models.CreditAdjustment, Amount: 0},
		{UserID: "u", Type: models.CreditPurchase, Amount: 1001},
		{UserID: "u", Type: "GIFT", Amount: 10},
		{Type: models.CreditPurchase, Amount: 10},
	}
	for _, req := range cases {
		_, err := svc.ApplyTx(context.Background(), nil, req)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "request %+v", req)
	}
}

func TestCreditServiceBalanceCreatesEmptyRow(t *testing.T) {
	store := newMemoryCreditStore()
	svc := NewCreditService(store, nil, nil, nil, nil, 0)
	balance, err := svc.Balance(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.AvailableCredits)
	assert.Contains(t, store.balances, "new-user")
}
