package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/repository"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/export"
	"github.com/noah-isme/lingowow-api/pkg/jobs"
	"github.com/noah-isme/lingowow-api/pkg/storage"
	"github.com/noah-isme/lingowow-api/pkg/validation"
)

// TaskKindPayrollExport tags queued payroll export tasks.
const TaskKindPayrollExport = "payroll_export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.PayrollExportJob) error
	FindByID(ctx context.Context, id string) (*models.PayrollExportJob, error)
	Update(ctx context.Context, id string, upd repository.ExportJobUpdate) error
	ListByStatus(ctx context.Context, status models.ExportStatus, limit int) ([]models.PayrollExportJob, error)
}

type exportFileStore interface {
	Put(name string, data []byte) error
	Open(name string) (io.ReadCloser, error)
	Prune(maxAge time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(jobID, path string) (string, time.Time, error)
	Verify(token string) (storage.DownloadClaims, error)
}

type taskQueue interface {
	Enqueue(ctx context.Context, task jobs.Task) error
}

// PayrollExportRequest asks for an earnings export.
type PayrollExportRequest struct {
	AcademicPeriodID string              `json:"academic_period_id"`
	TeacherID        string              `json:"teacher_id"`
	Format           models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// PayrollExportConfig tunes file retention and download URLs.
type PayrollExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// PayrollDownload is an opened export ready to stream.
type PayrollDownload struct {
	Reader    io.ReadCloser
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// PayrollExportService renders earnings reports in the background.
type PayrollExportService struct {
	jobs      exportJobStore
	payroll   payableClassSource
	files     exportFileStore
	signer    downloadSigner
	queue     taskQueue
	validator *validation.Validator
	logger    *zap.Logger
	cfg       PayrollExportConfig
	now       func() time.Time
}

// NewPayrollExportService constructs the service. Call SetQueue before Request
// once the worker pool using Process exists.
func NewPayrollExportService(jobStore exportJobStore, payroll payableClassSource, files exportFileStore, signer downloadSigner, validate *validation.Validator, logger *zap.Logger, cfg PayrollExportConfig) *PayrollExportService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &PayrollExportService{
		jobs:      jobStore,
		payroll:   payroll,
		files:     files,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetQueue attaches the dispatcher that runs Process.
func (s *PayrollExportService) SetQueue(queue taskQueue) {
	s.queue = queue
}

// Request persists a queued export job and dispatches it.
func (s *PayrollExportService) Request(ctx context.Context, req PayrollExportRequest, actor models.Actor) (*models.PayrollExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(s.validator, err)
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "las exportaciones no están habilitadas")
	}
	job := &models.PayrollExportJob{
		Params: models.PayrollExportParams{
			AcademicPeriodID: req.AcademicPeriodID,
			TeacherID:        req.TeacherID,
			Format:           req.Format,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "no se pudo crear la exportación")
	}
	if err := s.queue.Enqueue(ctx, jobs.Task{ID: job.ID, Kind: TaskKindPayrollExport}); err != nil {
		s.fail(ctx, job.ID, "no se pudo encolar la exportación")
		return nil, appErrors.Internal(err, "no se pudo encolar la exportación")
	}
	return job, nil
}

// Status returns the job to its creator or to actors that read all payroll.
func (s *PayrollExportService) Status(ctx context.Context, id string, actor models.Actor) (*models.PayrollExportJob, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exportación no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la exportación")
	}
	if !actor.Can(models.CapPayrollReadAll) && job.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

// Process renders one job. It is the handler of the export worker pool.
func (s *PayrollExportService) Process(ctx context.Context, task jobs.Task) error {
	job, err := s.jobs.FindByID(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", task.ID, err)
	}
	if job.Status == models.ExportStatusFinished {
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := s.jobs.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	rows, err := s.payroll.PayableClasses(ctx, models.PayrollFilter{
		AcademicPeriodID: job.Params.AcademicPeriodID,
		TeacherID:        job.Params.TeacherID,
	})
	if err != nil {
		return fmt.Errorf("load payable classes: %w", err)
	}
	table := earningsTable(AggregateEarnings(rows))

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = export.RenderCSV(table)
	case models.ExportFormatPDF:
		payload, err = export.RenderPDF(table)
	default:
		err = fmt.Errorf("unsupported export format %q", job.Params.Format)
	}
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	name := fmt.Sprintf("payroll_%s_%s.%s", job.ID, s.now().UTC().Format("20060102_150405"), job.Params.Format)
	if err := s.files.Put(name, payload); err != nil {
		return fmt.Errorf("store export: %w", err)
	}
	token, _, err := s.signer.Sign(job.ID, name)
	if err != nil {
		return fmt.Errorf("sign export: %w", err)
	}

	url := strings.TrimRight(s.cfg.APIPrefix, "/") + "/payroll/exports/download/" + token
	finished := models.ExportStatusFinished
	done := 100
	finishedAt := s.now().UTC()
	if err := s.jobs.Update(ctx, job.ID, repository.ExportJobUpdate{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &url,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}
	s.logger.Info("payroll export finished", zap.String("job_id", job.ID), zap.Int("rows", len(table.Rows)))
	return nil
}

// GiveUp marks a job failed once its retries are spent.
func (s *PayrollExportService) GiveUp(task jobs.Task, cause error) {
	s.logger.Error("payroll export failed", zap.String("job_id", task.ID), zap.Int("attempt", task.Attempt), zap.Error(cause))
	s.fail(context.Background(), task.ID, "no se pudo generar la exportación")
}

// Download resolves a signed token into the stored file.
func (s *PayrollExportService) Download(ctx context.Context, token string) (*PayrollDownload, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enlace de descarga inválido o expirado")
	}
	job, err := s.jobs.FindByID(ctx, claims.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exportación no encontrada")
		}
		return nil, appErrors.Internal(err, "no se pudo cargar la exportación")
	}
	if job.Status != models.ExportStatusFinished || job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "la exportación no está disponible")
	}
	reader, err := s.files.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "el archivo de exportación ya no existe")
	}
	return &PayrollDownload{
		Reader:    reader,
		Filename:  path.Base(claims.Path),
		Format:    job.Params.Format,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// RecoverQueued re-dispatches jobs left QUEUED by a previous process.
func (s *PayrollExportService) RecoverQueued(ctx context.Context) {
	if s.queue == nil {
		return
	}
	pending, err := s.jobs.ListByStatus(ctx, models.ExportStatusQueued, 50)
	if err != nil {
		s.logger.Warn("recover queued payroll exports", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(ctx, jobs.Task{ID: job.ID, Kind: TaskKindPayrollExport}); err != nil {
			s.logger.Warn("requeue payroll export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup prunes expired export files every interval until ctx ends.
func (s *PayrollExportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup removes files older than the result TTL.
func (s *PayrollExportService) Cleanup() {
	removed, err := s.files.Prune(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("prune payroll exports", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("payroll exports pruned", zap.Int("files", len(removed)))
	}
}

func (s *PayrollExportService) fail(ctx context.Context, id, message string) {
	failed := models.ExportStatusFailed
	done := 100
	now := s.now().UTC()
	if err := s.jobs.Update(ctx, id, repository.ExportJobUpdate{
		Status:       &failed,
		Progress:     &done,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("mark payroll export failed", zap.String("job_id", id), zap.Error(err))
	}
}

func earningsTable(earnings []models.TeacherEarnings) export.Table {
	table := export.Table{
		Title: "Nómina de profesores",
		Columns: []export.Column{
			{Key: "teacher", Label: "Profesor"},
			{Key: "period", Label: "Periodo"},
			{Key: "classes", Label: "Clases pagables", Align: "R"},
			{Key: "total", Label: "Total", Align: "R"},
			{Key: "currency", Label: "Moneda", Align: "C"},
		},
		Rows: make([]map[string]string, 0, len(earnings)),
	}
	var classes int
	for _, e := range earnings {
		classes += e.PayableClasses
		table.Rows = append(table.Rows, map[string]string{
			"teacher":  e.TeacherName,
			"period":   e.PeriodName,
			"classes":  strconv.Itoa(e.PayableClasses),
			"total":    strconv.FormatInt(e.Total, 10),
			"currency": e.Currency,
		})
	}
	table.Footer = map[string]string{"teacher": "Total", "classes": strconv.Itoa(classes)}
	return table
}
