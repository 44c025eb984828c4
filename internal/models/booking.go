package models

import "time"

// BookingStatus tracks a dated class session.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Payable reports whether a booking with this status may count towards payroll.
func (s BookingStatus) Payable() bool {
	return s == BookingStatusConfirmed || s == BookingStatusCompleted
}

// ClassBooking is one concrete dated class session.
type ClassBooking struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	ScheduleID   string        `db:"schedule_id" json:"schedule_id"`
	TeacherID    string        `db:"teacher_id" json:"teacher_id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	Day          time.Time     `db:"day" json:"day"`
	StartTime    string        `db:"start_time" json:"start_time"`
	Status       BookingStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter scopes booking listings.
type BookingFilter struct {
	EnrollmentID string
	TeacherID    string
	StudentID    string
	Status       BookingStatus
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// BusySlot marks a participant as occupied at a date and time.
type BusySlot struct {
	ParticipantID string    `db:"participant_id"`
	Day           time.Time `db:"day"`
	StartTime     string    `db:"start_time"`
}

// SkippedOccurrence reports a weekly occurrence that was not booked.
type SkippedOccurrence struct {
	Day       time.Time `json:"day"`
	StartTime string    `json:"start_time"`
	TeacherID string    `json:"teacher_id"`
	Reason    string    `json:"reason"`
}
