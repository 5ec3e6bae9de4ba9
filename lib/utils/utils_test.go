package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("coach@gainz.fit"))
	assert.True(t, ValidateEmail("First.Last+tag@mail.example.com"))
	assert.False(t, ValidateEmail("no-at-sign"))
	assert.False(t, ValidateEmail("user@localhost"))
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, ValidatePassword("Test1234"))
	assert.False(t, ValidatePassword("short1"))
	assert.False(t, ValidatePassword("lettersonly"))
	assert.False(t, ValidatePassword("12345678"))
}

func TestValidateUsername(t *testing.T) {
	assert.True(t, ValidateUsername("gainz_user.1"))
	assert.False(t, ValidateUsername("ab"))
	assert.False(t, ValidateUsername("has space"))
}

type sample struct {
	Name  string `json:"name" validate:"required"`
	Day   string `json:"day" validate:"omitempty,day"`
	Wake  string `json:"wakeUpTime" validate:"omitempty,clock"`
	Count int    `json:"count" validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "x", Day: "2024-02-29", Wake: "06:30"}))

	err := ValidateStruct(sample{Day: "29/02/2024", Wake: "25:00", Count: -1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "must be a date formatted YYYY-MM-DD", verr.Fields["day"])
	assert.Equal(t, "must be a time formatted HH:MM", verr.Fields["wakeUpTime"])
	assert.Equal(t, "must be at least 0", verr.Fields["count"])
	assert.Contains(t, verr.Error(), "name is required")
}

func TestDayHelpers(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	// 03:00 UTC is still the previous evening in Lima.
	ts := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01", DayKey(ts, nil))
	assert.Equal(t, "2024-02-29", DayKey(ts, lima))

	assert.Equal(t, "2024-02-29", ShiftDay("2024-03-01", -1))
	assert.Equal(t, "2025-01-01", ShiftDay("2024-12-31", 1))
	assert.Equal(t, "garbage", ShiftDay("garbage", 1))

	n, err := DaysBetween("2024-02-25", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}
