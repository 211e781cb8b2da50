package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-registration-api/pkg/config"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

func testCalendar(t *testing.T) *config.Calendar {
	t.Helper()
	cal, err := config.ParseCalendar([]byte(`
trimesters:
  - name: fall
    start: 2026-09-01
    end: 2026-12-19
    enrollment_opens: 2026-08-01
  - name: winter
    start: 2027-01-05
    end: 2027-03-27
    enrollment_opens: 2026-12-01
  - name: spring
    start: 2027-04-06
    end: 2027-06-12
`), 21*24*time.Hour)
	require.NoError(t, err)
	return cal
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func TestTrimesterServiceResolve(t *testing.T) {
	svc, err := NewTrimesterService(testCalendar(t), nil)
	require.NoError(t, err)

	cases := []struct {
		name       string
		at         time.Time
		current    string
		enrollment string
		window     bool
	}{
		{"before calendar", at(2026, time.July, 1), "registrations_fall", "registrations_fall", false},
		{"steady fall", at(2026, time.October, 16), "registrations_fall", "registrations_fall", false},
		{"winter enrollment", at(2026, time.December, 1), "registrations_fall", "registrations_winter", true},
		{"winter", at(2027, time.February, 1), "registrations_winter", "registrations_winter", false},
		{"spring enrollment uses lead", at(2027, time.March, 16), "registrations_winter", "registrations_spring", true},
		{"last trimester", at(2027, time.May, 1), "registrations_spring", "registrations_spring", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Resolve(tc.at)
			assert.Equal(t, tc.current, got.Current)
			assert.Equal(t, tc.enrollment, got.Enrollment)
			assert.Equal(t, tc.window, got.EnrollmentWindow)
		})
	}
}

func TestTrimesterServiceUsesClock(t *testing.T) {
	svc, err := NewTrimesterService(testCalendar(t), func() time.Time { return at(2026, time.December, 2) })
	require.NoError(t, err)
	assert.Equal(t, "registrations_fall", svc.CurrentTable())
	assert.Equal(t, "registrations_winter", svc.EnrollmentTable())
	assert.Len(t, svc.Windows(), 3)
}

func TestTrimesterServiceTableFor(t *testing.T) {
	svc, err := NewTrimesterService(testCalendar(t), func() time.Time { return at(2026, time.December, 2) })
	require.NoError(t, err)

	table, err := svc.TableFor("")
	require.NoError(t, err)
	assert.Equal(t, "registrations_fall", table)

	table, err = svc.TableFor("enrollment")
	require.NoError(t, err)
	assert.Equal(t, "registrations_winter", table)

	table, err = svc.TableFor("spring")
	require.NoError(t, err)
	assert.Equal(t, "registrations_spring", table)

	_, err = svc.TableFor("summer")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.NoError(t, svc.ValidateTable("registrations_winter"))
	assert.ErrorIs(t, svc.ValidateTable("students"), appErrors.ErrValidation)
}

func TestNewTrimesterServiceRejectsUnknownNames(t *testing.T) {
	_, err := NewTrimesterService(&config.Calendar{Trimesters: []config.TrimesterDates{{Name: "summer"}}}, nil)
	assert.Error(t, err)
	_, err = NewTrimesterService(&config.Calendar{}, nil)
	assert.Error(t, err)
}
