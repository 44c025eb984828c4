package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const periodColumns = `id, name, start_date, end_date, is_active, created_at, updated_at`

// AcademicPeriodRepository persists academic periods.
type AcademicPeriodRepository struct {
	db *sqlx.DB
}

// NewAcademicPeriodRepository constructs the repository.
func NewAcademicPeriodRepository(db *sqlx.DB) *AcademicPeriodRepository {
	return &AcademicPeriodRepository{db: db}
}

// List returns periods ordered by start date, newest first.
func (r *AcademicPeriodRepository) List(ctx context.Context, filter models.AcademicPeriodFilter) ([]models.AcademicPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM academic_periods`
	if filter.ActiveOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY start_date DESC`

	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list academic periods: %w", err)
	}
	return periods, nil
}

// FindByID fetches one period.
func (r *AcademicPeriodRepository) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM academic_periods WHERE id = $1`
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find academic period: %w", err)
	}
	return &period, nil
}

// FindActive returns the active period covering the most recent start date.
func (r *AcademicPeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM academic_periods WHERE is_active = TRUE ORDER BY start_date DESC LIMIT 1`
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active academic period: %w", err)
	}
	return &period, nil
}

// Create inserts a period.
func (r *AcademicPeriodRepository) Create(ctx context.Context, period *models.AcademicPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now

	const query = `INSERT INTO academic_periods (id, name, start_date, end_date, is_active, created_at, updated_at)
VALUES (:id, :name, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create academic period: %w", err)
	}
	return nil
}
