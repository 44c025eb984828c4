package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, academic_period_id, status, schedule_key, created_at, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.academic_period_id, e.status, e.schedule_key, e.created_at, e.updated_at,
u.full_name AS student_name, c.title AS course_title, p.name AS period_name
FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN courses c ON c.id = e.course_id
JOIN academic_periods p ON p.id = e.academic_period_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var f filterSet
	if filter.StudentID != "" {
		f.add("e.student_id = $%d", filter.StudentID)
	}
	if filter.CourseID != "" {
		f.add("e.course_id = $%d", filter.CourseID)
	}
	if filter.AcademicPeriodID != "" {
		f.add("e.academic_period_id = $%d", filter.AcademicPeriodID)
	}
	if filter.Status != "" {
		f.add("e.status = $%d", filter.Status)
	}

	orderBy := map[string]string{
		"created_at":   "e.created_at",
		"student_name": "u.full_name",
		"course_title": "c.title",
	}[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d",
		enrollmentDetailSelect, f.where(), orderBy, sortOrder(filter.SortOrder, "DESC"), limit, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, f.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM enrollments e` + f.where()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, f.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student, course and period names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment detail: %w", err)
	}
	return &detail, nil
}

// ExistsOpen reports whether a non-cancelled enrollment exists for the tuple.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, studentID, courseID, periodID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND academic_period_id = $3 AND status <> 'CANCELLED')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, periodID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, course_id, academic_period_id, status, schedule_key, created_at, updated_at)
VALUES (:id, :student_id, :course_id, :academic_period_id, :status, :schedule_key, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus moves an enrollment to status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// MarkScheduled stores the schedule fingerprint and activates the enrollment.
// It reports false when the enrollment was cancelled in the meantime.
func (r *EnrollmentRepository) MarkScheduled(ctx context.Context, exec sqlx.ExtContext, id, scheduleKey string) (bool, error) {
	const query = `UPDATE enrollments SET schedule_key = $2, status = 'ACTIVE', updated_at = $3 WHERE id = $1 AND status <> 'CANCELLED'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, scheduleKey, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark enrollment scheduled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark enrollment scheduled: %w", err)
	}
	return n > 0, nil
}
