package models

import "time"

// Schedule is a recurring weekly slot bound to an enrollment.
type Schedule struct {
	ID           string       `db:"id" json:"id"`
	EnrollmentID string       `db:"enrollment_id" json:"enrollment_id"`
	TeacherID    string       `db:"teacher_id" json:"teacher_id"`
	DayOfWeek    time.Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime    string       `db:"start_time" json:"start_time"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	ReplacedAt   *time.Time   `db:"replaced_at" json:"replaced_at,omitempty"`
}

// WeeklySlot is one (day, time, teacher) tuple chosen by a student.
type WeeklySlot struct {
	DayOfWeek time.Weekday `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string       `json:"start_time" validate:"required,clock"`
	TeacherID string       `json:"teacher_id" validate:"required"`
}
