package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/pkg/database"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsOpen(ctx context.Context, studentID, courseID, periodID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus) error
}

type enrollmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
}

type scheduleReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Schedule, error)
}

type futureBookingCanceller interface {
	CancelFuture(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, from time.Time, unattendedOnly bool) (int64, error)
}

// CreateEnrollmentRequest is the admin payload for a new enrollment.
type CreateEnrollmentRequest struct {
	StudentID        string `json:"student_id" validate:"required"`
	CourseID         string `json:"course_id" validate:"required"`
	AcademicPeriodID string `json:"academic_period_id" validate:"required"`
}

// EnrollmentService manages enrollments. Enrollments are never deleted; they
// move between PENDING, ACTIVE and CANCELLED.
type EnrollmentService struct {
	repo      enrollmentRepository
	users     enrollmentUserReader
	courses   courseReader
	periods   periodReader
	schedules scheduleReader
	bookings  futureBookingCanceller
	tx        txProvider
	validator *validation.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// EnrollmentServiceDeps groups collaborators of EnrollmentService.
type EnrollmentServiceDeps struct {
	Repo      enrollmentRepository
	Users     enrollmentUserReader
	Courses   courseReader
	Periods   periodReader
	Schedules scheduleReader
	Bookings  futureBookingCanceller
	Tx        txProvider
	Validator *validation.Validator
	Logger    *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      deps.Repo,
		users:     deps.Users,
		courses:   deps.Courses,
		periods:   deps.Periods,
		schedules: deps.Schedules,
		bookings:  deps.Bookings,
		tx:        deps.Tx,
		validator: deps.Validator,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// Create registers a student in a course for a period with status PENDING.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "estudiante no encontrado")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el estudiante")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "el usuario no es un estudiante")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "curso no encontrado")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el curso")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "el curso no está activo")
	}
	if _, err := s.periods.FindByID(ctx, req.AcademicPeriodID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "periodo académico no encontrado")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el periodo académico")
	}

	exists, err := s.repo.ExistsOpen(ctx, req.StudentID, req.CourseID, req.AcademicPeriodID)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo verificar la matrícula")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "el estudiante ya está matriculado en este curso para el periodo")
	}

	enrollment := &models.Enrollment{
		StudentID:        req.StudentID,
		CourseID:         req.CourseID,
		AcademicPeriodID: req.AcademicPeriodID,
		Status:           models.EnrollmentStatusPending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "el estudiante ya está matriculado en este curso para el periodo")
		}
		return nil, appErrors.Internal(err, "no se pudo crear la matrícula")
	}
	s.logger.Info("enrollment created", zap.String("enrollment_id", enrollment.ID), zap.String("student_id", enrollment.StudentID))
	return enrollment, nil
}

// Get returns an enrollment; students may only read their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor models.Actor) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matrícula no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la matrícula")
	}
	if !actor.Can(models.CapEnrollmentsReadAll) && detail.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// List returns enrollments; non-staff callers are scoped to themselves.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, actor models.Actor) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if !actor.Can(models.CapEnrollmentsReadAll) {
		filter.StudentID = actor.UserID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "no se pudieron listar las matrículas")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Schedules returns the weekly schedule of an enrollment the actor can see.
func (s *EnrollmentService) Schedules(ctx context.Context, id string, actor models.Actor) ([]models.Schedule, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	schedules, err := s.schedules.ListByEnrollment(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo cargar el horario")
	}
	return schedules, nil
}

// Cancel marks the enrollment CANCELLED and cancels its upcoming bookings atomically.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matrícula no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la matrícula")
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "la matrícula ya está cancelada")
	}

	var cancelled int64
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateStatus(ctx, tx, id, models.EnrollmentStatusCancelled); err != nil {
			return appErrors.Internal(err, "no se pudo cancelar la matrícula")
		}
		n, err := s.bookings.CancelFuture(ctx, tx, id, s.now(), false)
		if err != nil {
			return appErrors.Internal(err, "no se pudieron cancelar las clases programadas")
		}
		cancelled = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	enrollment.Status = models.EnrollmentStatusCancelled
	s.logger.Info("enrollment cancelled", zap.String("enrollment_id", id), zap.Int64("bookings_cancelled", cancelled))
	return enrollment, nil
}
