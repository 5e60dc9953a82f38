package rules

import (
	"testing"
	"time"

	"alertcore/internal/domain"
)

func TestScheduleActiveDaysWeekdaysOnly(t *testing.T) {
	t.Parallel()

	schedule := &domain.Schedule{Timezone: "UTC", ActiveDays: []int{1, 2, 3, 4, 5}}
	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	active, err := ScheduleActiveAt(schedule, saturday)
	if err != nil || active {
		t.Fatalf("saturday must be inactive, active=%t err=%v", active, err)
	}
	active, err = ScheduleActiveAt(schedule, monday)
	if err != nil || !active {
		t.Fatalf("monday must be active, active=%t err=%v", active, err)
	}
}

func TestScheduleSundayAcceptsZeroAndSeven(t *testing.T) {
	t.Parallel()

	sunday := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	for _, day := range []int{0, 7} {
		active, err := ScheduleActiveAt(&domain.Schedule{ActiveDays: []int{day}}, sunday)
		if err != nil || !active {
			t.Fatalf("day %d should match sunday, active=%t err=%v", day, active, err)
		}
	}
}

func TestScheduleOvernightWindowUsesStartDay(t *testing.T) {
	t.Parallel()

	schedule := &domain.Schedule{
		Timezone:    "Europe/Moscow",
		ActiveDays:  []int{1},
		ActiveHours: []string{"22:00-08:00"},
	}
	location, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	checks := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "monday late evening", at: time.Date(2026, 3, 2, 23, 0, 0, 0, location), want: true},
		{name: "tuesday early morning", at: time.Date(2026, 3, 3, 7, 30, 0, 0, location), want: true},
		{name: "monday early morning", at: time.Date(2026, 3, 2, 7, 30, 0, 0, location), want: false},
		{name: "tuesday late evening", at: time.Date(2026, 3, 3, 23, 0, 0, 0, location), want: false},
	}
	for _, check := range checks {
		t.Run(check.name, func(t *testing.T) {
			active, err := ScheduleActiveAt(schedule, check.at.UTC())
			if err != nil {
				t.Fatalf("ScheduleActiveAt error: %v", err)
			}
			if active != check.want {
				t.Fatalf("ScheduleActiveAt=%t, want %t", active, check.want)
			}
		})
	}
}

func TestScheduleBusinessHours(t *testing.T) {
	t.Parallel()

	schedule := &domain.Schedule{ActiveHours: []string{"09:00-18:00"}}
	if active, _ := ScheduleActiveAt(schedule, time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)); !active {
		t.Fatalf("09:00 must be inside window")
	}
	if active, _ := ScheduleActiveAt(schedule, time.Date(2026, 3, 7, 18, 0, 0, 0, time.UTC)); active {
		t.Fatalf("18:00 must be outside window")
	}
}

func TestValidateScheduleRejectsInvalid(t *testing.T) {
	t.Parallel()

	invalid := []*domain.Schedule{
		{Timezone: "Mars/Olympus"},
		{ActiveDays: []int{8}},
		{ActiveHours: []string{"25:00-08:00"}},
		{ActiveHours: []string{"10:00-10:00"}},
		{ActiveHours: []string{"10:00"}},
	}
	for _, schedule := range invalid {
		if err := ValidateSchedule(schedule); err == nil {
			t.Fatalf("expected validation error for %+v", schedule)
		}
	}
	if err := ValidateSchedule(nil); err != nil {
		t.Fatalf("nil schedule is valid: %v", err)
	}
}
