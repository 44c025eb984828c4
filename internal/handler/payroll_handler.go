package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

type payrollService interface {
	Earnings(ctx context.Context, filter models.PayrollFilter, actor models.Actor) ([]models.TeacherEarnings, error)
}

type payrollExportService interface {
	Request(ctx context.Context, req service.PayrollExportRequest, actor models.Actor) (*models.PayrollExportJob, error)
	Status(ctx context.Context, id string, actor models.Actor) (*models.PayrollExportJob, error)
	Download(ctx context.Context, token string) (*service.PayrollDownload, error)
}

// PayrollHandler serves teacher earnings and their exports.
type PayrollHandler struct {
	payroll payrollService
	exports payrollExportService
}

// NewPayrollHandler constructs PayrollHandler. exports may be nil when exports are disabled.
func NewPayrollHandler(payroll payrollService, exports payrollExportService) *PayrollHandler {
	return &PayrollHandler{payroll: payroll, exports: exports}
}

// Earnings godoc
// @Summary Teacher earnings per academic period
// @Description Counts classes where both teacher and student attended. Teachers only see their own earnings.
// @Tags Payroll
// @Produce json
// @Param periodId query string false "Academic period"
// @Param teacherId query string false "Teacher"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payroll/earnings [get]
func (h *PayrollHandler) Earnings(c *gin.Context) {
	filter := models.PayrollFilter{
		AcademicPeriodID: c.Query("periodId"),
		TeacherID:        c.Query("teacherId"),
	}
	earnings, err := h.payroll.Earnings(c.Request.Context(), filter, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, earnings, nil)
}

// RequestExport godoc
// @Summary Queue a payroll export
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body service.PayrollExportRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Security BearerAuth
// @Router /payroll/exports [post]
func (h *PayrollHandler) RequestExport(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "las exportaciones no están habilitadas"))
		return
	}
	var req service.PayrollExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	job, err := h.exports.Request(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// ExportStatus godoc
// @Summary Payroll export status
// @Tags Payroll
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /payroll/exports/{id} [get]
func (h *PayrollHandler) ExportStatus(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "las exportaciones no están habilitadas"))
		return
	}
	job, err := h.exports.Status(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished payroll export
// @Tags Payroll
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /payroll/exports/download/{token} [get]
func (h *PayrollHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	download, err := h.exports.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Reader.Close()

	contentType := "text/csv; charset=utf-8"
	if download.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, download.Reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "no-store",
	})
}
