package models

import "time"

// ParticipantRole identifies which side of a class an attendance row belongs to.
type ParticipantRole string

const (
	ParticipantTeacher ParticipantRole = "TEACHER"
	ParticipantStudent ParticipantRole = "STUDENT"
)

// Valid reports whether the role is supported.
func (r ParticipantRole) Valid() bool {
	return r == ParticipantTeacher || r == ParticipantStudent
}

// AttendanceStatus is recorded with each presence row.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// TeacherAttendance is the teacher's presence record for a booking.
type TeacherAttendance struct {
	ID         string           `db:"id" json:"id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	TeacherID  string           `db:"teacher_id" json:"teacher_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	AttendedAt time.Time        `db:"attended_at" json:"attended_at"`
}

// ClassAttendance is the student's presence record for a booking.
type ClassAttendance struct {
	ID         string           `db:"id" json:"id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	AttendedAt time.Time        `db:"attended_at" json:"attended_at"`
}

// AttendanceRecord is the role-agnostic view returned by the recorder.
type AttendanceRecord struct {
	ID            string           `json:"id"`
	BookingID     string           `json:"booking_id"`
	ParticipantID string           `json:"participant_id"`
	Role          ParticipantRole  `json:"role"`
	Status        AttendanceStatus `json:"status"`
	AttendedAt    time.Time        `json:"attended_at"`
}

// AttendanceCheck summarises both sides of a booking.
type AttendanceCheck struct {
	BookingID       string        `json:"booking_id"`
	BookingStatus   BookingStatus `json:"booking_status"`
	TeacherAttended bool          `json:"teacher_attended"`
	StudentAttended bool          `json:"student_attended"`
	Payable         bool          `json:"payable"`
}
