package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const bookingColumns = `id, enrollment_id, schedule_id, teacher_id, student_id, day, start_time, status, created_at, updated_at`

// BookingRepository persists dated class bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a booking.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.ClassBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM class_bookings WHERE id = $1`
	var booking models.ClassBooking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

// ListActiveByEnrollment returns the enrollment's non-cancelled bookings in calendar order.
func (r *BookingRepository) ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.ClassBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM class_bookings
WHERE enrollment_id = $1 AND status <> 'CANCELLED' ORDER BY day ASC, start_time ASC`
	var bookings []models.ClassBooking
	if err := r.db.SelectContext(ctx, &bookings, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment bookings: %w", err)
	}
	return bookings, nil
}

// List returns bookings matching the filter with the total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.ClassBooking, int, error) {
	var f filterSet
	if filter.EnrollmentID != "" {
		f.add("enrollment_id = $%d", filter.EnrollmentID)
	}
	if filter.TeacherID != "" {
		f.add("teacher_id = $%d", filter.TeacherID)
	}
	if filter.StudentID != "" {
		f.add("student_id = $%d", filter.StudentID)
	}
	if filter.Status != "" {
		f.add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		f.add("day >= $%d", models.DateOf(*filter.From))
	}
	if filter.To != nil {
		f.add("day <= $%d", models.DateOf(*filter.To))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM class_bookings%s ORDER BY day ASC, start_time ASC LIMIT %d OFFSET %d",
		bookingColumns, f.where(), limit, offset)
	var bookings []models.ClassBooking
	if err := r.db.SelectContext(ctx, &bookings, query, f.args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM class_bookings"+f.where(), f.args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// BusySlots returns the occupied (participant, day, time) tuples of the given
// teachers and student between from and to, ignoring excludeEnrollmentID.
func (r *BookingRepository) BusySlots(ctx context.Context, teacherIDs []string, studentID string, from, to time.Time, excludeEnrollmentID string) ([]models.BusySlot, error) {
	const query = `SELECT teacher_id AS participant_id, day, start_time FROM class_bookings
WHERE status <> 'CANCELLED' AND enrollment_id <> $1 AND day BETWEEN $2 AND $3 AND teacher_id = ANY($4)
UNION ALL
SELECT student_id AS participant_id, day, start_time FROM class_bookings
WHERE status <> 'CANCELLED' AND enrollment_id <> $1 AND day BETWEEN $2 AND $3 AND student_id = $5`
	var slots []models.BusySlot
	if err := r.db.SelectContext(ctx, &slots, query, excludeEnrollmentID, models.DateOf(from), models.DateOf(to), pq.Array(teacherIDs), studentID); err != nil {
		return nil, fmt.Errorf("load busy slots: %w", err)
	}
	return slots, nil
}

// BulkInsert persists generated bookings.
func (r *BookingRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, bookings []models.ClassBooking) error {
	if len(bookings) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO class_bookings (id, enrollment_id, schedule_id, teacher_id, student_id, day, start_time, status, created_at, updated_at)
VALUES (:id, :enrollment_id, :schedule_id, :teacher_id, :student_id, :day, :start_time, :status, :created_at, :updated_at)`
	for i := range bookings {
		b := &bookings[i]
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.CreatedAt = now
		b.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
	}
	return nil
}

// CancelFuture cancels CONFIRMED bookings of an enrollment on or after from.
// With unattendedOnly, bookings that already have an attendance row are kept.
func (r *BookingRepository) CancelFuture(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, from time.Time, unattendedOnly bool) (int64, error) {
	query := `UPDATE class_bookings b SET status = 'CANCELLED', updated_at = $3
WHERE b.enrollment_id = $1 AND b.status = 'CONFIRMED' AND b.day >= $2`
	if unattendedOnly {
		query += `
AND NOT EXISTS (SELECT 1 FROM teacher_attendances ta WHERE ta.class_id = b.id)
AND NOT EXISTS (SELECT 1 FROM class_attendances ca WHERE ca.class_id = b.id)`
	}
	res, err := r.exec(exec).ExecContext(ctx, query, enrollmentID, models.DateOf(from), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cancel future bookings: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// Cancel cancels one CONFIRMED booking scheduled after today. It reports
// whether a row changed.
func (r *BookingRepository) Cancel(ctx context.Context, id string, today time.Time) (bool, error) {
	const query = `UPDATE class_bookings SET status = 'CANCELLED', updated_at = $3
WHERE id = $1 AND status = 'CONFIRMED' AND day > $2`
	res, err := r.db.ExecContext(ctx, query, id, models.DateOf(today), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// CompletePast moves CONFIRMED bookings dated before today to COMPLETED.
func (r *BookingRepository) CompletePast(ctx context.Context, today time.Time) (int64, error) {
	const query = `UPDATE class_bookings SET status = 'COMPLETED', updated_at = $2 WHERE status = 'CONFIRMED' AND day < $1`
	res, err := r.db.ExecContext(ctx, query, models.DateOf(today), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
