package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/pkg/database"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

type attendanceStore interface {
	InsertTeacher(ctx context.Context, row *models.TeacherAttendance) error
	InsertStudent(ctx context.Context, row *models.ClassAttendance) error
	Presence(ctx context.Context, bookingID string) (teacher, student bool, err error)
}

type bookingFinder interface {
	FindByID(ctx context.Context, id string) (*models.ClassBooking, error)
}

// RecordAttendanceRequest marks one participant present in a booking.
type RecordAttendanceRequest struct {
	ParticipantID string                  `json:"participant_id" validate:"required"`
	Role          models.ParticipantRole  `json:"role" validate:"required,oneof=TEACHER STUDENT"`
	Status        models.AttendanceStatus `json:"status" validate:"omitempty,oneof=PRESENT LATE"`
}

// AttendanceService records immutable presence rows per participant and booking.
type AttendanceService struct {
	repo      attendanceStore
	bookings  bookingFinder
	metrics   *MetricsService
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceStore, bookings bookingFinder, metrics *MetricsService, validate *validation.Validator, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, bookings: bookings, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Record stores the participant's row. The other side is neither required nor touched.
func (s *AttendanceService) Record(ctx context.Context, bookingID string, req RecordAttendanceRequest, actor models.Actor) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "la clase está cancelada")
	}
	if models.DateOf(booking.Day).After(models.DateOf(s.now())) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "la asistencia solo se registra el día de la clase")
	}

	expected := booking.StudentID
	if req.Role == models.ParticipantTeacher {
		expected = booking.TeacherID
	}
	if req.ParticipantID != expected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "el participante no corresponde a la clase")
	}
	if !actor.Can(models.CapAttendanceOverride) && actor.UserID != req.ParticipantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "solo puedes registrar tu propia asistencia")
	}

	status := req.Status
	if status == "" {
		status = models.AttendanceStatusPresent
	}
	record := &models.AttendanceRecord{
		BookingID:     booking.ID,
		ParticipantID: req.ParticipantID,
		Role:          req.Role,
		Status:        status,
		AttendedAt:    s.now().UTC(),
	}

	switch req.Role {
	case models.ParticipantTeacher:
		row := &models.TeacherAttendance{ClassID: booking.ID, TeacherID: req.ParticipantID, Status: status, AttendedAt: record.AttendedAt}
		err = s.repo.InsertTeacher(ctx, row)
		record.ID = row.ID
	default:
		row := &models.ClassAttendance{ClassID: booking.ID, StudentID: req.ParticipantID, Status: status, AttendedAt: record.AttendedAt}
		err = s.repo.InsertStudent(ctx, row)
		record.ID = row.ID
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "la asistencia ya fue registrada")
		}
		return nil, appErrors.Internal(err, "no se pudo registrar la asistencia")
	}

	s.metrics.IncAttendance(string(req.Role))
	s.logger.Info("attendance recorded",
		zap.String("booking_id", booking.ID),
		zap.String("participant_id", req.ParticipantID),
		zap.String("role", string(req.Role)),
	)
	return record, nil
}

// Check reports which sides attended and whether the booking is payable.
func (s *AttendanceService) Check(ctx context.Context, bookingID string, actor models.Actor) (*models.AttendanceCheck, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Can(models.CapBookingsManageAll) && actor.UserID != booking.TeacherID && actor.UserID != booking.StudentID {
		return nil, appErrors.ErrForbidden
	}
	teacher, student, err := s.repo.Presence(ctx, booking.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo consultar la asistencia")
	}
	return &models.AttendanceCheck{
		BookingID:       booking.ID,
		BookingStatus:   booking.Status,
		TeacherAttended: teacher,
		StudentAttended: student,
		Payable:         IsPayable(booking.Status, teacher, student),
	}, nil
}

// IsPayable applies the payroll rule: both sides attended a live booking.
func IsPayable(status models.BookingStatus, teacherAttended, studentAttended bool) bool {
	return status.Payable() && teacherAttended && studentAttended
}

func (s *AttendanceService) loadBooking(ctx context.Context, id string) (*models.ClassBooking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clase no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la clase")
	}
	return booking, nil
}
