package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
)

func TestFindInvoiceByOrderMatchesNotes(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckoutRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE notes LIKE $1")).
		WithArgs("%order:ord-1%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "notes"}).AddRow("inv1", "u1", "PENDING", "order:ord-1"))

	invoice, err := repo.FindInvoiceByOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "inv1", invoice.ID)
}

func TestFindInvoiceByOrderEscapesWildcards(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckoutRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE notes LIKE $1 ESCAPE '\'`)).
		WithArgs(`%order:\%\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindInvoiceByOrder(context.Background(), "%_")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionInvoiceSkipsSettled(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckoutRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = $2")).
		WithArgs("inv1", models.PaymentStatusPaid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.TransitionInvoice(context.Background(), nil, "inv1", models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionInvoiceUpdatesPurchase(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckoutRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = $2")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET status = $2")).
		WithArgs("inv1", models.PaymentStatusPaid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.TransitionInvoice(context.Background(), nil, "inv1", models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
