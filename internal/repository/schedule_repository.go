package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

// ScheduleRepository stores the weekly slots of enrollments.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByEnrollment returns the current weekly schedule.
func (r *ScheduleRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Schedule, error) {
	const query = `SELECT id, enrollment_id, teacher_id, day_of_week, start_time, created_at, replaced_at
FROM schedules WHERE enrollment_id = $1 AND replaced_at IS NULL ORDER BY day_of_week ASC, start_time ASC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// SupersedeByEnrollment retires the current weekly schedule. Rows are kept so
// past bookings still reference the slot they were generated from.
func (r *ScheduleRepository) SupersedeByEnrollment(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, at time.Time) (int64, error) {
	const query = `UPDATE schedules SET replaced_at = $2 WHERE enrollment_id = $1 AND replaced_at IS NULL`
	res, err := r.exec(exec).ExecContext(ctx, query, enrollmentID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("supersede schedules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("supersede schedules: %w", err)
	}
	return n, nil
}

// BulkInsert persists schedules, assigning IDs when missing.
func (r *ScheduleRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, schedules []models.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO schedules (id, enrollment_id, teacher_id, day_of_week, start_time, created_at)
VALUES (:id, :enrollment_id, :teacher_id, :day_of_week, :start_time, :created_at)`
	for i := range schedules {
		s := &schedules[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, s); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	return nil
}
