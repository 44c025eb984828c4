package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

type bookingService interface {
	Generate(ctx context.Context, enrollmentID string, req service.GenerateScheduleRequest, actor models.Actor) (*service.GenerateScheduleResult, error)
	List(ctx context.Context, filter models.BookingFilter, actor models.Actor) ([]models.ClassBooking, *models.Pagination, error)
	Cancel(ctx context.Context, id string, actor models.Actor) error
}

// BookingHandler exposes schedule generation and booking endpoints.
type BookingHandler struct {
	bookings bookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings bookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Generate godoc
// @Summary Configure the weekly schedule and generate bookings
// @Description Replaces the enrollment schedule and books every weekly occurrence until the period ends. Occurrences where a participant is busy are skipped and reported.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.GenerateScheduleRequest true "Weekly slots"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "Schedule unchanged, existing bookings returned"
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/schedule [post]
func (h *BookingHandler) Generate(c *gin.Context) {
	var req service.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.bookings.Generate(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

// List godoc
// @Summary List bookings
// @Description Teachers and students only see their own classes.
// @Tags Bookings
// @Produce json
// @Param enrollmentId query string false "Filter by enrollment"
// @Param teacherId query string false "Filter by teacher"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var filter models.BookingFilter
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.TeacherID = c.Query("teacherId")
	filter.StudentID = c.Query("studentId")
	filter.Status = models.BookingStatus(strings.ToUpper(c.Query("status")))
	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Cancel godoc
// @Summary Cancel a future booking
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	if err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
