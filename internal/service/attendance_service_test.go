package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type attendanceStoreStub struct {
	teacher map[string]bool
	student map[string]bool
}

func newAttendanceStoreStub() *attendanceStoreStub {
	return &attendanceStoreStub{teacher: map[string]bool{}, student: map[string]bool{}}
}

func (s *attendanceStoreStub) InsertTeacher(ctx context.Context, row *models.TeacherAttendance) error {
	if s.teacher[row.ClassID] {
		return &pq.Error{Code: "23505"}
	}
	s.teacher[row.ClassID] = true
	row.ID = "ta-" + row.ClassID
	return nil
}

func (s *attendanceStoreStub) InsertStudent(ctx context.Context, row *models.ClassAttendance) error {
	if s.student[row.ClassID] {
		return &pq.Error{Code: "23505"}
	}
	s.student[row.ClassID] = true
	row.ID = "ca-" + row.ClassID
	return nil
}

func (s *attendanceStoreStub) Presence(ctx context.Context, bookingID string) (bool, bool, error) {
	return s.teacher[bookingID], s.student[bookingID], nil
}

func newAttendanceFixture(status models.BookingStatus) (*AttendanceService, *attendanceStoreStub) {
	store := newAttendanceStoreStub()
	bookings := &bookingStoreStub{booking: &models.ClassBooking{ID: "b1", TeacherID: "tea-1", StudentID: "stu-1", Status: status}}
	return NewAttendanceService(store, bookings, nil, nil, nil), store
}

func TestAttendancePayableProgression(t *testing.T) {
	svc, _ := newAttendanceFixture(models.BookingStatusConfirmed)
	ctx := context.Background()
	admin := models.Actor{UserID: "admin", Role: models.RoleAdmin}
	payableCount := func() int {
		check, err := svc.Check(ctx, "b1", admin)
		require.NoError(t, err)
		if check.Payable {
			return 1
		}
		return 0
	}

	assert.Equal(t, 0, payableCount())

	_, err := svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "tea-1", Role: models.ParticipantTeacher}, models.Actor{UserID: "tea-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, 0, payableCount())

	rec, err := svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "stu-1", Role: models.ParticipantStudent}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, rec.Status)
	assert.Equal(t, 1, payableCount())
}

func TestAttendanceRecordIsImmutable(t *testing.T) {
	svc, _ := newAttendanceFixture(models.BookingStatusConfirmed)
	actor := models.Actor{UserID: "stu-1", Role: models.RoleStudent}
	req := RecordAttendanceRequest{ParticipantID: "stu-1", Role: models.ParticipantStudent}

	_, err := svc.Record(context.Background(), "b1", req, actor)
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), "b1", req, actor)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAttendanceRecordRejections(t *testing.T) {
	svc, _ := newAttendanceFixture(models.BookingStatusConfirmed)
	ctx := context.Background()

	_, err := svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "stu-1", Role: models.ParticipantTeacher}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "participant must match role")

	_, err = svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "tea-1", Role: models.ParticipantTeacher}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden), "students cannot record for teachers")

	_, err = svc.Record(ctx, "missing", RecordAttendanceRequest{ParticipantID: "stu-1", Role: models.ParticipantStudent}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	cancelled, _ := newAttendanceFixture(models.BookingStatusCancelled)
	_, err = cancelled.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "stu-1", Role: models.ParticipantStudent}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestAttendanceRecordRejectsFutureClass(t *testing.T) {
	svc, store := newAttendanceFixture(models.BookingStatusConfirmed)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	svc.bookings.(*bookingStoreStub).booking.Day = time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "tea-1", Role: models.ParticipantTeacher}, models.Actor{UserID: "tea-1", Role: models.RoleTeacher})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	_, err = svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "stu-1", Role: models.ParticipantStudent}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.False(t, store.teacher["b1"])
	assert.False(t, store.student["b1"])

	check, err := svc.Check(ctx, "b1", models.Actor{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.False(t, check.Payable)

	svc.now = func() time.Time { return time.Date(2026, 12, 15, 18, 30, 0, 0, time.UTC) }
	_, err = svc.Record(ctx, "b1", RecordAttendanceRequest{ParticipantID: "tea-1", Role: models.ParticipantTeacher}, models.Actor{UserID: "tea-1", Role: models.RoleTeacher})
	require.NoError(t, err, "class day is allowed")
}

func TestAttendanceAdminRecordsForAnyone(t *testing.T) {
	svc, store := newAttendanceFixture(models.BookingStatusCompleted)
	_, err := svc.Record(context.Background(), "b1", RecordAttendanceRequest{ParticipantID: "tea-1", Role: models.ParticipantTeacher, Status: models.AttendanceStatusLate}, models.Actor{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, store.teacher["b1"])
	assert.False(t, store.student["b1"])
}

func TestIsPayable(t *testing.T) {
	assert.False(t, IsPayable(models.BookingStatusConfirmed, false, false))
	assert.False(t, IsPayable(models.BookingStatusConfirmed, true, false))
	assert.False(t, IsPayable(models.BookingStatusConfirmed, false, true))
	assert.True(t, IsPayable(models.BookingStatusConfirmed, true, true))
	assert.True(t, IsPayable(models.BookingStatusCompleted, true, true))
	assert.False(t, IsPayable(models.BookingStatusCancelled, true, true))
}
