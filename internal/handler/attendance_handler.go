package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/internal/service"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

type attendanceService interface {
	Record(ctx context.Context, bookingID string, req service.RecordAttendanceRequest, actor models.Actor) (*models.AttendanceRecord, error)
	Check(ctx context.Context, bookingID string, actor models.Actor) (*models.AttendanceCheck, error)
}

// AttendanceHandler records and reports class attendance.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Record godoc
// @Summary Record attendance for one participant
// @Description Each participant can be recorded once per booking; rows are immutable.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body service.RecordAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	record, err := h.attendance.Record(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Check godoc
// @Summary Attendance state of a booking
// @Tags Attendance
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/attendance [get]
func (h *AttendanceHandler) Check(c *gin.Context) {
	check, err := h.attendance.Check(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check, nil)
}
