package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
)

func TestBookingBusySlots(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	from := time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT teacher_id AS participant_id, day, start_time FROM class_bookings")).
		WithArgs("e1", models.DateOf(from), to, sqlmock.AnyArg(), "s1").
		WillReturnRows(sqlmock.NewRows([]string{"participant_id", "day", "start_time"}).
			AddRow("t1", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), "10:00"))

	slots, err := repo.BusySlots(context.Background(), []string{"t1"}, "s1", from, to, "e1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "t1", slots[0].ParticipantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCancelFutureUnattended(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	from := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("NOT EXISTS (SELECT 1 FROM teacher_attendances ta WHERE ta.class_id = b.id)")).
		WithArgs("e1", from, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.CancelFuture(context.Background(), nil, "e1", from, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingCancelOnlyBeforeDay(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	today := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'CONFIRMED' AND day > $2")).
		WithArgs("b1", models.DateOf(today), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Cancel(context.Background(), "b1", today)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestBookingCompletePast(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	today := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'COMPLETED'")).
		WithArgs(today, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.CompletePast(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestBookingBulkInsertAssignsIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO class_bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO class_bookings").WillReturnResult(sqlmock.NewResult(0, 1))

	bookings := []models.ClassBooking{{EnrollmentID: "e1"}, {EnrollmentID: "e1"}}
	require.NoError(t, repo.BulkInsert(context.Background(), nil, bookings))
	assert.NotEmpty(t, bookings[0].ID)
	assert.NotEqual(t, bookings[0].ID, bookings[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
