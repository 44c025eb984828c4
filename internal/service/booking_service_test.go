package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type enrollmentStoreStub struct {
	enrollment *models.Enrollment
	markedKey  string
	cancelled  bool
}

func (s *enrollmentStoreStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if s.enrollment == nil || s.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	e := *s.enrollment
	return &e, nil
}

func (s *enrollmentStoreStub) MarkScheduled(ctx context.Context, exec sqlx.ExtContext, id, scheduleKey string) (bool, error) {
	if s.cancelled {
		return false, nil
	}
	s.markedKey = scheduleKey
	return true, nil
}

type periodStub struct {
	period *models.AcademicPeriod
}

func (s periodStub) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	if s.period == nil || s.period.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.period, nil
}

type scheduleStoreStub struct {
	superseded bool
	inserted   []models.Schedule
}

func (s *scheduleStoreStub) SupersedeByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, at time.Time) (int64, error) {
	s.superseded = true
	return 1, nil
}

func (s *scheduleStoreStub) BulkInsert(ctx context.Context, exec sqlx.ExtContext, schedules []models.Schedule) error {
	s.inserted = append(s.inserted, schedules...)
	return nil
}

type bookingStoreStub struct {
	booking      *models.ClassBooking
	active       []models.ClassBooking
	busy         []models.BusySlot
	inserted     []models.ClassBooking
	cancelFuture int
	cancelled    bool
	completed    int64
	insertErr    error
}

func (s *bookingStoreStub) FindByID(ctx context.Context, id string) (*models.ClassBooking, error) {
	if s.booking == nil || s.booking.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.booking, nil
}

func (s *bookingStoreStub) ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.ClassBooking, error) {
	return s.active, nil
}

func (s *bookingStoreStub) List(ctx context.Context, filter models.BookingFilter) ([]models.ClassBooking, int, error) {
	var out []models.ClassBooking
	for _, b := range s.active {
		if filter.StudentID != "" && b.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && b.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (s *bookingStoreStub) BusySlots(ctx context.Context, teacherIDs []string, studentID string, from, to time.Time, excludeEnrollmentID string) ([]models.BusySlot, error) {
	return s.busy, nil
}

func (s *bookingStoreStub) BulkInsert(ctx context.Context, exec sqlx.ExtContext, bookings []models.ClassBooking) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, bookings...)
	return nil
}

func (s *bookingStoreStub) CancelFuture(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, from time.Time, unattendedOnly bool) (int64, error) {
	s.cancelFuture++
	return 0, nil
}

func (s *bookingStoreStub) Cancel(ctx context.Context, id string, today time.Time) (bool, error) {
	s.cancelled = true
	return true, nil
}

func (s *bookingStoreStub) CompletePast(ctx context.Context, today time.Time) (int64, error) {
	return s.completed, nil
}

type lockerStub struct {
	held     bool
	err      error
	released bool
}

func (l *lockerStub) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { l.released = true; return nil }, true, nil
}

type bookingFixture struct {
	svc         *BookingService
	enrollments *enrollmentStoreStub
	schedules   *scheduleStoreStub
	bookings    *bookingStoreStub
	locker      *lockerStub
}

func newBookingFixture(t *testing.T, tx txProvider) *bookingFixture {
	f := &bookingFixture{
		enrollments: &enrollmentStoreStub{enrollment: &models.Enrollment{
			ID: "enr-1", StudentID: "stu-1", CourseID: "course-1", AcademicPeriodID: "per-1", Status: models.EnrollmentStatusPending,
		}},
		schedules: &scheduleStoreStub{},
		bookings:  &bookingStoreStub{},
		locker:    &lockerStub{},
	}
	f.svc = NewBookingService(BookingServiceDeps{
		Enrollments: f.enrollments,
		Periods: periodStub{period: &models.AcademicPeriod{
			ID: "per-1", StartDate: date(2025, time.January, 6), EndDate: date(2025, time.January, 31), IsActive: true,
		}},
		Schedules: f.schedules,
		Bookings:  f.bookings,
		Locker:    f.locker,
		Tx:        tx,
	})
	f.svc.now = func() time.Time { return time.Date(2025, time.January, 2, 15, 0, 0, 0, time.UTC) }
	return f
}

var mondaySlots = GenerateScheduleRequest{Slots: []models.WeeklySlot{{DayOfWeek: time.Monday, StartTime: "10:00", TeacherID: "tea-1"}}}

func TestBookingServiceGenerate(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	f := newBookingFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectCommit()

	res, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Len(t, res.Bookings, 4)
	assert.Len(t, f.bookings.inserted, 4)
	assert.Len(t, f.schedules.inserted, 1)
	assert.True(t, f.schedules.superseded)
	assert.Equal(t, 1, f.bookings.cancelFuture)
	assert.Equal(t, ScheduleKey("enr-1", mondaySlots.Slots), f.enrollments.markedKey)
	assert.True(t, f.locker.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceGenerateReusesMatchingKey(t *testing.T) {
	f := newBookingFixture(t, nil)
	key := ScheduleKey("enr-1", mondaySlots.Slots)
	f.enrollments.enrollment.ScheduleKey = &key
	f.bookings.active = []models.ClassBooking{{ID: "b1"}, {ID: "b2"}}

	res, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Len(t, res.Bookings, 2)
	assert.Empty(t, f.bookings.inserted)
}

func TestBookingServiceGenerateRejections(t *testing.T) {
	t.Run("other student", func(t *testing.T) {
		f := newBookingFixture(t, nil)
		_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-2", Role: models.RoleStudent})
		assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	})
	t.Run("teacher without manage capability", func(t *testing.T) {
		f := newBookingFixture(t, nil)
		_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "tea-1", Role: models.RoleTeacher})
		assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	})
	t.Run("cancelled enrollment", func(t *testing.T) {
		f := newBookingFixture(t, nil)
		f.enrollments.enrollment.Status = models.EnrollmentStatusCancelled
		_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
		assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	})
	t.Run("lock held", func(t *testing.T) {
		f := newBookingFixture(t, nil)
		f.locker.held = true
		_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
		assert.True(t, errors.Is(err, appErrors.ErrConflict))
	})
	t.Run("overlapping slots", func(t *testing.T) {
		f := newBookingFixture(t, nil)
		req := GenerateScheduleRequest{Slots: []models.WeeklySlot{
			{DayOfWeek: time.Monday, StartTime: "10:00", TeacherID: "tea-1"},
			{DayOfWeek: time.Monday, StartTime: "10:00", TeacherID: "tea-2"},
		}}
		_, err := f.svc.Generate(context.Background(), "enr-1", req, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	})
	t.Run("period elapsed", func(t *testing.T) {
		f := newBookingFixture(t, nil)
		f.svc.now = func() time.Time { return date(2025, time.March, 1) }
		_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
		assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	})
}

func TestBookingServiceGenerateRollsBackWhenCancelledConcurrently(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	f := newBookingFixture(t, tx)
	// the enrollment was read as PENDING but is cancelled before the write
	f.enrollments.cancelled = true
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	assert.Empty(t, f.bookings.inserted)
	assert.False(t, f.schedules.superseded)
	assert.Empty(t, f.enrollments.markedKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceGenerateRollsBackOnInsertFailure(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	f := newBookingFixture(t, tx)
	f.bookings.insertErr = errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := f.svc.Generate(context.Background(), "enr-1", mondaySlots, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Empty(t, f.bookings.inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingServiceListScopesStudents(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.bookings.active = []models.ClassBooking{
		{ID: "b1", StudentID: "stu-1", TeacherID: "tea-1"},
		{ID: "b2", StudentID: "stu-2", TeacherID: "tea-1"},
	}
	items, _, err := f.svc.List(context.Background(), models.BookingFilter{}, models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b1", items[0].ID)

	items, _, err = f.svc.List(context.Background(), models.BookingFilter{}, models.Actor{UserID: "tea-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestBookingServiceCancel(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.bookings.booking = &models.ClassBooking{ID: "b1", StudentID: "stu-1", TeacherID: "tea-1", Day: date(2025, time.January, 13), Status: models.BookingStatusConfirmed}

	err := f.svc.Cancel(context.Background(), "b1", models.Actor{UserID: "stu-9", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, f.svc.Cancel(context.Background(), "b1", models.Actor{UserID: "tea-1", Role: models.RoleTeacher}))
	assert.True(t, f.bookings.cancelled)

	f.bookings.booking.Day = date(2025, time.January, 2)
	err = f.svc.Cancel(context.Background(), "b1", models.Actor{UserID: "stu-1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestBookingAdvancerRun(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.bookings.completed = 3
	advancer, err := NewBookingAdvancer(f.svc, "@hourly", time.Second, nil)
	require.NoError(t, err)
	advancer.Run()

	_, err = NewBookingAdvancer(f.svc, "not a spec", time.Second, nil)
	assert.Error(t, err)
}
