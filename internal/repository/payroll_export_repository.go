package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const exportJobColumns = `id, params, status, progress, result_url, created_by, created_at, finished_at, error_message`

// PayrollExportRepository persists export job metadata.
type PayrollExportRepository struct {
	db *sqlx.DB
}

// NewPayrollExportRepository constructs the repository.
func NewPayrollExportRepository(db *sqlx.DB) *PayrollExportRepository {
	return &PayrollExportRepository{db: db}
}

// Create inserts a queued job.
func (r *PayrollExportRepository) Create(ctx context.Context, job *models.PayrollExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payroll_export_jobs (id, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create payroll export job: %w", err)
	}
	return nil
}

// FindByID returns a job row.
func (r *PayrollExportRepository) FindByID(ctx context.Context, id string) (*models.PayrollExportJob, error) {
	query := `SELECT ` + exportJobColumns + ` FROM payroll_export_jobs WHERE id = $1`
	var job models.PayrollExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payroll export job: %w", err)
	}
	return &job, nil
}

// ExportJobUpdate lists the mutable fields of a job; nil fields are left untouched.
type ExportJobUpdate struct {
	Status       *models.ExportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update applies the non-nil fields of upd.
func (r *PayrollExportRepository) Update(ctx context.Context, id string, upd ExportJobUpdate) error {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.Progress != nil {
		set("progress", *upd.Progress)
	}
	if upd.ResultURL != nil {
		set("result_url", *upd.ResultURL)
	}
	if upd.ErrorMessage != nil {
		set("error_message", *upd.ErrorMessage)
	}
	if upd.FinishedAt != nil {
		set("finished_at", *upd.FinishedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE payroll_export_jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update payroll export job: %w", err)
	}
	return nil
}

// ListByStatus returns up to limit jobs in status, oldest first.
func (r *PayrollExportRepository) ListByStatus(ctx context.Context, status models.ExportStatus, limit int) ([]models.PayrollExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + exportJobColumns + ` FROM payroll_export_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var jobs []models.PayrollExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, status, limit); err != nil {
		return nil, fmt.Errorf("list payroll export jobs: %w", err)
	}
	return jobs, nil
}
