package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

type bookingEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	MarkScheduled(ctx context.Context, exec sqlx.ExtContext, id, scheduleKey string) (bool, error)
}

type bookingScheduleStore interface {
	SupersedeByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, at time.Time) (int64, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, schedules []models.Schedule) error
}

type bookingStore interface {
	FindByID(ctx context.Context, id string) (*models.ClassBooking, error)
	ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.ClassBooking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.ClassBooking, int, error)
	BusySlots(ctx context.Context, teacherIDs []string, studentID string, from, to time.Time, excludeEnrollmentID string) ([]models.BusySlot, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, bookings []models.ClassBooking) error
	CancelFuture(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, from time.Time, unattendedOnly bool) (int64, error)
	Cancel(ctx context.Context, id string, today time.Time) (bool, error)
	CompletePast(ctx context.Context, today time.Time) (int64, error)
}

type bookingLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// GenerateScheduleRequest carries the weekly slots chosen for an enrollment.
type GenerateScheduleRequest struct {
	Slots []models.WeeklySlot `json:"slots" validate:"required,min=1,dive"`
}

// GenerateScheduleResult is returned by BookingService.Generate.
type GenerateScheduleResult struct {
	EnrollmentID string                     `json:"enrollment_id"`
	Reused       bool                       `json:"reused"`
	Bookings     []models.ClassBooking      `json:"bookings"`
	Skipped      []models.SkippedOccurrence `json:"skipped"`
}

// BookingService turns weekly schedules into dated class bookings.
type BookingService struct {
	enrollments bookingEnrollmentStore
	periods     periodReader
	schedules   bookingScheduleStore
	bookings    bookingStore
	locker      bookingLocker
	tx          txProvider
	metrics     *MetricsService
	validator   *validation.Validator
	logger      *zap.Logger
	lockTTL     time.Duration
	now         func() time.Time
}

// BookingServiceDeps groups collaborators of BookingService.
type BookingServiceDeps struct {
	Enrollments bookingEnrollmentStore
	Periods     periodReader
	Schedules   bookingScheduleStore
	Bookings    bookingStore
	Locker      bookingLocker
	Tx          txProvider
	Metrics     *MetricsService
	Validator   *validation.Validator
	Logger      *zap.Logger
	LockTTL     time.Duration
}

// NewBookingService constructs the service.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	return &BookingService{
		enrollments: deps.Enrollments,
		periods:     deps.Periods,
		schedules:   deps.Schedules,
		bookings:    deps.Bookings,
		locker:      deps.Locker,
		tx:          deps.Tx,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
		lockTTL:     deps.LockTTL,
		now:         time.Now,
	}
}

// Generate replaces the weekly schedule of an enrollment and books every
// matching date left in its academic period.
func (s *BookingService) Generate(ctx context.Context, enrollmentID string, req GenerateScheduleRequest, actor models.Actor) (*GenerateScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matrícula no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la matrícula")
	}
	if !actor.Can(models.CapBookingsManageAll) && enrollment.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "la matrícula está cancelada")
	}

	period, err := s.periods.FindByID(ctx, enrollment.AcademicPeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no hay un periodo académico activo")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el periodo académico")
	}
	if !period.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no hay un periodo académico activo")
	}

	key := ScheduleKey(enrollment.ID, req.Slots)
	if enrollment.ScheduleKey != nil && *enrollment.ScheduleKey == key {
		existing, err := s.bookings.ListActiveByEnrollment(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "no se pudieron cargar las clases")
		}
		s.metrics.AddBookings("reused", len(existing))
		return &GenerateScheduleResult{EnrollmentID: enrollment.ID, Reused: true, Bookings: existing}, nil
	}

	release, ok, err := s.locker.Acquire(ctx, "bookings:lock:"+enrollment.ID, s.lockTTL)
	if err != nil {
		s.logger.Error("booking lock unavailable", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "no se pudo reservar el horario, intenta nuevamente")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "ya se está generando el horario de esta matrícula")
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.logger.Warn("release booking lock", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}()

	today := models.DateOf(s.now())
	teacherIDs := uniqueTeachers(req.Slots)
	busy, err := s.bookings.BusySlots(ctx, teacherIDs, enrollment.StudentID, today, period.EndDate, enrollment.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo consultar la disponibilidad")
	}

	generated, err := GenerateBookings(GenerateInput{
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		PeriodStart:  period.StartDate,
		PeriodEnd:    period.EndDate,
		From:         today,
		Slots:        req.Slots,
		Busy:         busy,
	})
	if err != nil {
		return nil, generatorError(err)
	}

	var replaced int64
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		// Activate first: the enrollment row lock orders this write against a concurrent cancel.
		activated, err := s.enrollments.MarkScheduled(ctx, tx, enrollment.ID, key)
		if err != nil {
			return appErrors.Internal(err, "no se pudo activar la matrícula")
		}
		if !activated {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "la matrícula está cancelada")
		}
		if _, err := s.schedules.SupersedeByEnrollment(ctx, tx, enrollment.ID, s.now()); err != nil {
			return appErrors.Internal(err, "no se pudo reemplazar el horario")
		}
		n, err := s.bookings.CancelFuture(ctx, tx, enrollment.ID, today, true)
		if err != nil {
			return appErrors.Internal(err, "no se pudieron cancelar las clases anteriores")
		}
		replaced = n
		if err := s.schedules.BulkInsert(ctx, tx, generated.Schedules); err != nil {
			return appErrors.Internal(err, "no se pudo guardar el horario")
		}
		if err := s.bookings.BulkInsert(ctx, tx, generated.Bookings); err != nil {
			return appErrors.Internal(err, "no se pudieron guardar las clases")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddBookings("created", len(generated.Bookings))
	s.metrics.AddBookings("skipped", len(generated.Skipped))
	s.logger.Info("schedule generated",
		zap.String("enrollment_id", enrollment.ID),
		zap.Int("slots", len(req.Slots)),
		zap.Int("bookings", len(generated.Bookings)),
		zap.Int("skipped", len(generated.Skipped)),
		zap.Int64("replaced", replaced),
	)
	return &GenerateScheduleResult{
		EnrollmentID: enrollment.ID,
		Bookings:     generated.Bookings,
		Skipped:      generated.Skipped,
	}, nil
}

// List returns bookings; students and teachers only see classes they take part in.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter, actor models.Actor) ([]models.ClassBooking, *models.Pagination, error) {
	if !actor.Can(models.CapBookingsManageAll) {
		switch actor.Role {
		case models.RoleTeacher:
			filter.TeacherID = actor.UserID
		default:
			filter.StudentID = actor.UserID
		}
	}
	items, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudieron listar las clases")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Cancel cancels a CONFIRMED booking before its day.
func (s *BookingService) Cancel(ctx context.Context, id string, actor models.Actor) error {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "clase no encontrada")
		}
		return appErrors.Internal(err, "no se pudo cargar la clase")
	}
	if !actor.Can(models.CapBookingsManageAll) && booking.StudentID != actor.UserID && booking.TeacherID != actor.UserID {
		return appErrors.ErrForbidden
	}
	if booking.Status != models.BookingStatusConfirmed {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "solo se pueden cancelar clases confirmadas")
	}
	today := models.DateOf(s.now())
	if !models.DateOf(booking.Day).After(today) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "la clase ya no se puede cancelar")
	}
	changed, err := s.bookings.Cancel(ctx, id, today)
	if err != nil {
		return appErrors.Internal(err, "no se pudo cancelar la clase")
	}
	if !changed {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "la clase ya no se puede cancelar")
	}
	s.metrics.AddBookings("cancelled", 1)
	return nil
}

// CompletePast marks CONFIRMED bookings dated before today as COMPLETED.
func (s *BookingService) CompletePast(ctx context.Context) (int64, error) {
	n, err := s.bookings.CompletePast(ctx, s.now())
	if err != nil {
		return 0, appErrors.Internal(err, "no se pudieron completar las clases")
	}
	s.metrics.AddBookings("completed", int(n))
	return n, nil
}

func uniqueTeachers(slots []models.WeeklySlot) []string {
	seen := make(map[string]struct{}, len(slots))
	ids := make([]string, 0, len(slots))
	for _, slot := range slots {
		if _, ok := seen[slot.TeacherID]; ok {
			continue
		}
		seen[slot.TeacherID] = struct{}{}
		ids = append(ids, slot.TeacherID)
	}
	return ids
}

func generatorError(err error) error {
	switch {
	case errors.Is(err, ErrNoSlots):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "debes indicar al menos un horario semanal")
	case errors.Is(err, ErrInvalidSlot):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "horario semanal inválido")
	case errors.Is(err, ErrOverlapSlots):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "hay horarios repetidos en el mismo día y hora")
	case errors.Is(err, ErrPeriodElapsed), errors.Is(err, ErrInvalidPeriod):
		return appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "el periodo académico ya terminó")
	default:
		return appErrors.Internal(err, "no se pudo generar el horario")
	}
}
