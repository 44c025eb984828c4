package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotPayload struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,clock"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

func TestValidatorUsesJSONNames(t *testing.T) {
	v := New()
	err := v.Struct(slotPayload{DayOfWeek: 9, StartTime: "25:00"})
	require.Error(t, err)

	messages := v.Messages(err)
	assert.Contains(t, messages, "day_of_week")
	assert.Contains(t, messages, "teacher_id")
	assert.Equal(t, "start_time debe tener el formato HH:MM", messages["start_time"])
	assert.NotEmpty(t, v.Describe(err))
}

func TestValidatorAcceptsClock(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(slotPayload{DayOfWeek: 1, StartTime: "10:00", TeacherID: "t1"}))
}
