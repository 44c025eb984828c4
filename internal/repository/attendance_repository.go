package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

// AttendanceRepository writes teacher and student presence rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertTeacher stores the teacher row. Duplicates surface as unique violations.
func (r *AttendanceRepository) InsertTeacher(ctx context.Context, row *models.TeacherAttendance) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	const query = `INSERT INTO teacher_attendances (id, class_id, teacher_id, status, attended_at)
VALUES (:id, :class_id, :teacher_id, :status, :attended_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert teacher attendance: %w", err)
	}
	return nil
}

// InsertStudent stores the student row. Duplicates surface as unique violations.
func (r *AttendanceRepository) InsertStudent(ctx context.Context, row *models.ClassAttendance) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	const query = `INSERT INTO class_attendances (id, class_id, student_id, status, attended_at)
VALUES (:id, :class_id, :student_id, :status, :attended_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert class attendance: %w", err)
	}
	return nil
}

// Presence reports which sides have recorded attendance for a booking.
func (r *AttendanceRepository) Presence(ctx context.Context, bookingID string) (teacher, student bool, err error) {
	const query = `SELECT
EXISTS(SELECT 1 FROM teacher_attendances WHERE class_id = $1) AS teacher,
EXISTS(SELECT 1 FROM class_attendances WHERE class_id = $1) AS student`
	var row struct {
		Teacher bool `db:"teacher"`
		Student bool `db:"student"`
	}
	if err := r.db.GetContext(ctx, &row, query, bookingID); err != nil {
		return false, false, fmt.Errorf("check attendance: %w", err)
	}
	return row.Teacher, row.Student, nil
}
