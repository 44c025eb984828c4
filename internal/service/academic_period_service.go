package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

const periodCachePattern = "periods:*"

type academicPeriodRepository interface {
	List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriod, error)
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
	Create(ctx context.Context, period *models.AcademicPeriod) error
}

// CreateAcademicPeriodRequest is the admin payload for a new period.
type CreateAcademicPeriodRequest struct {
	Name      string    `json:"name" validate:"required,max=80"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsActive  bool      `json:"is_active"`
}

// AcademicPeriodService serves period lookups backed by a short-lived cache.
type AcademicPeriodService struct {
	repo      academicPeriodRepository
	cache     *CacheService
	validator *validation.Validator
	ttl       time.Duration
	logger    *zap.Logger
}

// NewAcademicPeriodService constructs the service. cache may be nil.
func NewAcademicPeriodService(repo academicPeriodRepository, cache *CacheService, validate *validation.Validator, ttl time.Duration, logger *zap.Logger) *AcademicPeriodService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicPeriodService{repo: repo, cache: cache, validator: validate, ttl: ttl, logger: logger}
}

// List returns periods, optionally only active ones.
func (s *AcademicPeriodService) List(ctx context.Context, activeOnly bool) ([]models.AcademicPeriod, error) {
	key := "periods:list:all"
	if activeOnly {
		key = "periods:list:active"
	}
	var cached []models.AcademicPeriod
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	periods, err := s.repo.List(ctx, models.AcademicPeriodFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudieron listar los periodos")
	}
	s.cache.Set(ctx, key, periods, s.ttl)
	return periods, nil
}

// Active returns the current active period.
func (s *AcademicPeriodService) Active(ctx context.Context) (*models.AcademicPeriod, error) {
	var cached models.AcademicPeriod
	if s.cache.Get(ctx, "periods:active", &cached) {
		return &cached, nil
	}
	period, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no hay un periodo académico activo")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el periodo activo")
	}
	s.cache.Set(ctx, "periods:active", period, s.ttl)
	return period, nil
}

// Get returns a period by id.
func (s *AcademicPeriodService) Get(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "periodo académico no encontrado")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar el periodo académico")
	}
	return period, nil
}

// Create persists a new period and drops cached listings.
func (s *AcademicPeriodService) Create(ctx context.Context, req CreateAcademicPeriodRequest) (*models.AcademicPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	start, end := models.DateOf(req.StartDate), models.DateOf(req.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "la fecha de fin debe ser posterior a la de inicio")
	}
	period := &models.AcademicPeriod{Name: req.Name, StartDate: start, EndDate: end, IsActive: req.IsActive}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear el periodo académico")
	}
	s.cache.Invalidate(ctx, periodCachePattern)
	s.logger.Info("academic period created", zap.String("period_id", period.ID))
	return period, nil
}
