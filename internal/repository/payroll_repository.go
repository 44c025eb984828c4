package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

// PayrollRepository reads payable classes. Results are never cached.
type PayrollRepository struct {
	db *sqlx.DB
}

// NewPayrollRepository constructs the repository.
func NewPayrollRepository(db *sqlx.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

// PayableClasses returns one row per booking where both teacher and student
// attendance exist and the booking is CONFIRMED or COMPLETED.
func (r *PayrollRepository) PayableClasses(ctx context.Context, filter models.PayrollFilter) ([]models.PayableClassRow, error) {
	var f filterSet
	if filter.AcademicPeriodID != "" {
		f.add("e.academic_period_id = $%d", filter.AcademicPeriodID)
	}
	if filter.TeacherID != "" {
		f.add("b.teacher_id = $%d", filter.TeacherID)
	}

	query := `SELECT b.id AS booking_id, b.teacher_id, t.full_name AS teacher_name,
e.academic_period_id, p.name AS period_name, b.day,
COALESCE(tr.class_rate, c.class_rate) AS rate, c.currency
FROM class_bookings b
JOIN teacher_attendances ta ON ta.class_id = b.id
JOIN class_attendances ca ON ca.class_id = b.id AND ca.student_id = b.student_id
JOIN enrollments e ON e.id = b.enrollment_id
JOIN courses c ON c.id = e.course_id
JOIN academic_periods p ON p.id = e.academic_period_id
JOIN users t ON t.id = b.teacher_id
LEFT JOIN teachers_rates tr ON tr.teacher_id = b.teacher_id
WHERE b.status IN ('CONFIRMED', 'COMPLETED')`
	for _, cond := range f.conditions {
		query += " AND " + cond
	}
	query += `
ORDER BY t.full_name ASC, p.name ASC, b.day ASC`

	var rows []models.PayableClassRow
	if err := r.db.SelectContext(ctx, &rows, query, f.args...); err != nil {
		return nil, fmt.Errorf("list payable classes: %w", err)
	}
	return rows, nil
}
