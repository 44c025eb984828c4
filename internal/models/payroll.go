package models

import "time"

// PayableClassRow is one booking where both teacher and student attended.
type PayableClassRow struct {
	BookingID        string    `db:"booking_id" json:"booking_id"`
	TeacherID        string    `db:"teacher_id" json:"teacher_id"`
	TeacherName      string    `db:"teacher_name" json:"teacher_name"`
	AcademicPeriodID string    `db:"academic_period_id" json:"academic_period_id"`
	PeriodName       string    `db:"period_name" json:"period_name"`
	Day              time.Time `db:"day" json:"day"`
	Rate             int64     `db:"rate" json:"rate"`
	Currency         string    `db:"currency" json:"currency"`
}

// TeacherEarnings aggregates payable classes per teacher and period.
type TeacherEarnings struct {
	TeacherID        string `json:"teacher_id"`
	TeacherName      string `json:"teacher_name"`
	AcademicPeriodID string `json:"academic_period_id"`
	PeriodName       string `json:"period_name"`
	PayableClasses   int    `json:"payable_classes"`
	Total            int64  `json:"total"`
	Currency         string `json:"currency"`
}

// PayrollFilter narrows the earnings report.
type PayrollFilter struct {
	AcademicPeriodID string
	TeacherID        string
}
