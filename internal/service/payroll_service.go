package service

import (
	"context"
	"sort"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type payableClassSource interface {
	PayableClasses(ctx context.Context, filter models.PayrollFilter) ([]models.PayableClassRow, error)
}

// PayrollService reports teacher earnings from payable classes. Results are
// recomputed from attendance on every call.
type PayrollService struct {
	repo payableClassSource
}

// NewPayrollService constructs the service.
func NewPayrollService(repo payableClassSource) *PayrollService {
	return &PayrollService{repo: repo}
}

// Earnings returns earnings per teacher and period. Teachers without the
// read-all capability only see their own.
func (s *PayrollService) Earnings(ctx context.Context, filter models.PayrollFilter, actor models.Actor) ([]models.TeacherEarnings, error) {
	if !actor.Can(models.CapPayrollReadAll) {
		if !actor.Can(models.CapPayrollRead) {
			return nil, appErrors.ErrForbidden
		}
		filter.TeacherID = actor.UserID
	}
	rows, err := s.repo.PayableClasses(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "no se pudo calcular la nómina")
	}
	return AggregateEarnings(rows), nil
}

// AggregateEarnings groups payable rows by teacher, period and currency,
// ordered by teacher name, period name then currency.
func AggregateEarnings(rows []models.PayableClassRow) []models.TeacherEarnings {
	type groupKey struct{ teacher, period, currency string }
	index := make(map[groupKey]int)
	result := make([]models.TeacherEarnings, 0)
	for _, row := range rows {
		key := groupKey{row.TeacherID, row.AcademicPeriodID, row.Currency}
		i, ok := index[key]
		if !ok {
			i = len(result)
			index[key] = i
			result = append(result, models.TeacherEarnings{
				TeacherID:        row.TeacherID,
				TeacherName:      row.TeacherName,
				AcademicPeriodID: row.AcademicPeriodID,
				PeriodName:       row.PeriodName,
				Currency:         row.Currency,
			})
		}
		result[i].PayableClasses++
		result[i].Total += row.Rate
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TeacherName != result[j].TeacherName {
			return result[i].TeacherName < result[j].TeacherName
		}
		if result[i].PeriodName != result[j].PeriodName {
			return result[i].PeriodName < result[j].PeriodName
		}
		return result[i].Currency < result[j].Currency
	})
	return result
}
