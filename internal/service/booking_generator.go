package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lingowow-api/internal/models"
)

// Generator failures. Callers map them to validation or precondition errors.
var (
	ErrNoSlots       = errors.New("no weekly slots provided")
	ErrInvalidSlot   = errors.New("invalid weekly slot")
	ErrOverlapSlots  = errors.New("overlapping weekly slots")
	ErrPeriodElapsed = errors.New("academic period already elapsed")
	ErrInvalidPeriod = errors.New("academic period ends before it starts")
)

// SkipReasonBusy marks an occurrence dropped because a participant is already booked.
const SkipReasonBusy = "participant_busy"

// GenerateInput is everything the pure generator needs.
type GenerateInput struct {
	EnrollmentID string
	StudentID    string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	From         time.Time
	Slots        []models.WeeklySlot
	Busy         []models.BusySlot
}

// GenerateResult holds the schedules to persist and the bookings they produce.
type GenerateResult struct {
	Schedules []models.Schedule
	Bookings  []models.ClassBooking
	Skipped   []models.SkippedOccurrence
}

type busyKey struct {
	participant string
	day         string
	start       string
}

// GenerateBookings expands weekly slots into dated CONFIRMED bookings between
// max(PeriodStart, From) and PeriodEnd inclusive. Occurrences where the
// teacher or the student is busy are reported as skipped.
func GenerateBookings(in GenerateInput) (*GenerateResult, error) {
	if len(in.Slots) == 0 {
		return nil, ErrNoSlots
	}

	seen := make(map[string]struct{}, len(in.Slots))
	for _, slot := range in.Slots {
		if slot.DayOfWeek < time.Sunday || slot.DayOfWeek > time.Saturday {
			return nil, fmt.Errorf("%w: day %d", ErrInvalidSlot, slot.DayOfWeek)
		}
		if !validClock(slot.StartTime) {
			return nil, fmt.Errorf("%w: start time %q", ErrInvalidSlot, slot.StartTime)
		}
		if strings.TrimSpace(slot.TeacherID) == "" {
			return nil, fmt.Errorf("%w: missing teacher", ErrInvalidSlot)
		}
		key := fmt.Sprintf("%d|%s", slot.DayOfWeek, slot.StartTime)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s %s", ErrOverlapSlots, slot.DayOfWeek, slot.StartTime)
		}
		seen[key] = struct{}{}
	}

	start := models.DateOf(in.PeriodStart)
	end := models.DateOf(in.PeriodEnd)
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}
	from := models.DateOf(in.From)
	if from.After(end) {
		return nil, ErrPeriodElapsed
	}
	if from.After(start) {
		start = from
	}

	busy := make(map[busyKey]struct{}, len(in.Busy))
	for _, b := range in.Busy {
		busy[busyKey{b.ParticipantID, models.DateOf(b.Day).Format("2006-01-02"), b.StartTime}] = struct{}{}
	}

	result := &GenerateResult{Schedules: make([]models.Schedule, 0, len(in.Slots))}
	byDay := make(map[time.Weekday][]int)
	for i, slot := range in.Slots {
		result.Schedules = append(result.Schedules, models.Schedule{
			ID:           uuid.NewString(),
			EnrollmentID: in.EnrollmentID,
			TeacherID:    slot.TeacherID,
			DayOfWeek:    slot.DayOfWeek,
			StartTime:    slot.StartTime,
		})
		byDay[slot.DayOfWeek] = append(byDay[slot.DayOfWeek], i)
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, idx := range byDay[day.Weekday()] {
			slot := in.Slots[idx]
			date := day.Format("2006-01-02")
			_, teacherBusy := busy[busyKey{slot.TeacherID, date, slot.StartTime}]
			_, studentBusy := busy[busyKey{in.StudentID, date, slot.StartTime}]
			if teacherBusy || studentBusy {
				result.Skipped = append(result.Skipped, models.SkippedOccurrence{
					Day:       day,
					StartTime: slot.StartTime,
					TeacherID: slot.TeacherID,
					Reason:    SkipReasonBusy,
				})
				continue
			}
			result.Bookings = append(result.Bookings, models.ClassBooking{
				EnrollmentID: in.EnrollmentID,
				ScheduleID:   result.Schedules[idx].ID,
				TeacherID:    slot.TeacherID,
				StudentID:    in.StudentID,
				Day:          day,
				StartTime:    slot.StartTime,
				Status:       models.BookingStatusConfirmed,
			})
		}
	}

	sort.SliceStable(result.Bookings, func(i, j int) bool {
		a, b := result.Bookings[i], result.Bookings[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		return a.StartTime < b.StartTime
	})
	return result, nil
}

// ScheduleKey fingerprints an enrollment's slot set independent of input order.
func ScheduleKey(enrollmentID string, slots []models.WeeklySlot) string {
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, fmt.Sprintf("%d|%s|%s", slot.DayOfWeek, slot.StartTime, slot.TeacherID))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(enrollmentID + "#" + strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}

func validClock(raw string) bool {
	if len(raw) != 5 {
		return false
	}
	_, err := time.Parse("15:04", raw)
	return err == nil
}
