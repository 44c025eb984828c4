package models

import "time"

// AcademicPeriod is a bounded date range against which schedules and bookings are validated.
type AcademicPeriod struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether day (truncated to a date) falls inside the period, inclusive.
func (p AcademicPeriod) Contains(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(p.StartDate)) && !d.After(DateOf(p.EndDate))
}

// AcademicPeriodFilter narrows list queries.
type AcademicPeriodFilter struct {
	ActiveOnly bool
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
