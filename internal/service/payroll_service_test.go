package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type payableSourceStub struct {
	rows       []models.PayableClassRow
	lastFilter models.PayrollFilter
}

func (s *payableSourceStub) PayableClasses(ctx context.Context, filter models.PayrollFilter) ([]models.PayableClassRow, error) {
	s.lastFilter = filter
	var out []models.PayableClassRow
	for _, r := range s.rows {
		if filter.TeacherID != "" && r.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func payrollRows() []models.PayableClassRow {
	return []models.PayableClassRow{
		{BookingID: "b1", TeacherID: "t2", TeacherName: "Zoe", AcademicPeriodID: "p1", PeriodName: "2025-I", Rate: 30, Currency: "PEN"},
		{BookingID: "b2", TeacherID: "t1", TeacherName: "Ana", AcademicPeriodID: "p2", PeriodName: "2025-II", Rate: 25, Currency: "PEN"},
		{BookingID: "b3", TeacherID: "t1", TeacherName: "Ana", AcademicPeriodID: "p1", PeriodName: "2025-I", Rate: 25, Currency: "PEN"},
		{BookingID: "b4", TeacherID: "t1", TeacherName: "Ana", AcademicPeriodID: "p1", PeriodName: "2025-I", Rate: 40, Currency: "PEN"},
	}
}

func TestAggregateEarnings(t *testing.T) {
	got := AggregateEarnings(payrollRows())
	require.Len(t, got, 3)

	assert.Equal(t, "Ana", got[0].TeacherName)
	assert.Equal(t, "2025-I", got[0].PeriodName)
	assert.Equal(t, 2, got[0].PayableClasses)
	assert.Equal(t, int64(65), got[0].Total)

	assert.Equal(t, "2025-II", got[1].PeriodName)
	assert.Equal(t, 1, got[1].PayableClasses)

	assert.Equal(t, "Zoe", got[2].TeacherName)
	assert.Equal(t, int64(30), got[2].Total)

	assert.Empty(t, AggregateEarnings(nil))
}

func TestAggregateEarningsSeparatesCurrencies(t *testing.T) {
	rows := []models.PayableClassRow{
		{BookingID: "b1", TeacherID: "t1", TeacherName: "Ana", AcademicPeriodID: "p1", PeriodName: "2025-I", Rate: 25, Currency: "USD"},
		{BookingID: "b2", TeacherID: "t1", TeacherName: "Ana", AcademicPeriodID: "p1", PeriodName: "2025-I", Rate: 40, Currency: "PEN"},
		{BookingID: "b3", TeacherID: "t1", TeacherName: "Ana", AcademicPeriodID: "p1", PeriodName: "2025-I", Rate: 40, Currency: "PEN"},
	}
	got := AggregateEarnings(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "PEN", got[0].Currency)
	assert.Equal(t, int64(80), got[0].Total)
	assert.Equal(t, 2, got[0].PayableClasses)
	assert.Equal(t, "USD", got[1].Currency)
	assert.Equal(t, int64(25), got[1].Total)
}

func TestPayrollServiceScopesTeachers(t *testing.T) {
	src := &payableSourceStub{rows: payrollRows()}
	svc := NewPayrollService(src)

	got, err := svc.Earnings(context.Background(), models.PayrollFilter{TeacherID: "t1"}, models.Actor{UserID: "t2", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, "t2", src.lastFilter.TeacherID)
	require.Len(t, got, 1)
	assert.Equal(t, "Zoe", got[0].TeacherName)

	got, err = svc.Earnings(context.Background(), models.PayrollFilter{}, models.Actor{UserID: "admin", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.Earnings(context.Background(), models.PayrollFilter{}, models.Actor{UserID: "s", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
