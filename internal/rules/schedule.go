package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"alertcore/internal/domain"
)

const minutesPerDay = 24 * 60

// hoursWindow is one parsed HH:MM-HH:MM interval in minutes since midnight.
type hoursWindow struct {
	from int
	to   int
}

// overnight reports whether window ends on the next day.
func (w hoursWindow) overnight() bool {
	return w.to <= w.from
}

// ScheduleActiveAt reports whether a rule schedule allows firing at t.
// Params: optional schedule (nil means always active) and evaluation instant.
// Returns: activity flag or error for invalid timezone/day/window definitions.
func ScheduleActiveAt(schedule *domain.Schedule, t time.Time) (bool, error) {
	if schedule == nil {
		return true, nil
	}
	if schedule.Window != nil {
		return schedule.Window.ActiveAt(t), nil
	}
	window, err := CompileSchedule(schedule)
	if err != nil {
		return false, err
	}
	return window.ActiveAt(t), nil
}

// scheduleWindow is a schedule with timezone, days, and hours already parsed.
type scheduleWindow struct {
	location *time.Location
	days     map[time.Weekday]struct{}
	hours    []hoursWindow
}

// CompileSchedule parses schedule once for repeated membership checks.
// Params: schedule definition.
// Returns: parsed window or the first definition error.
func CompileSchedule(schedule *domain.Schedule) (domain.ActiveWindow, error) {
	location, err := scheduleLocation(schedule.Timezone)
	if err != nil {
		return nil, err
	}
	days, err := parseActiveDays(schedule.ActiveDays)
	if err != nil {
		return nil, err
	}
	hours, err := parseActiveHours(schedule.ActiveHours)
	if err != nil {
		return nil, err
	}
	return &scheduleWindow{location: location, days: days, hours: hours}, nil
}

// ActiveAt reports whether t falls inside the window.
func (w *scheduleWindow) ActiveAt(t time.Time) bool {
	local := t.In(w.location)
	if len(w.hours) == 0 {
		return dayAllowed(w.days, local.Weekday())
	}

	minute := local.Hour()*60 + local.Minute()
	previousDay := local.AddDate(0, 0, -1).Weekday()
	for _, window := range w.hours {
		if !window.overnight() {
			if minute >= window.from && minute < window.to && dayAllowed(w.days, local.Weekday()) {
				return true
			}
			continue
		}
		// Overnight windows belong to the day they start on.
		if minute >= window.from && dayAllowed(w.days, local.Weekday()) {
			return true
		}
		if minute < window.to && dayAllowed(w.days, previousDay) {
			return true
		}
	}
	return false
}

// ValidateSchedule checks timezone, days, and hour windows.
// Params: optional schedule.
// Returns: first validation error.
func ValidateSchedule(schedule *domain.Schedule) error {
	if schedule == nil {
		return nil
	}
	_, err := CompileSchedule(schedule)
	return err
}

func scheduleLocation(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone %q: %w", name, err)
	}
	return location, nil
}

// parseActiveDays converts ISO weekday numbers (1=Mon..7=Sun, 0=Sun) into a weekday set.
// Params: configured day numbers.
// Returns: nil set for "every day" or error for out-of-range entries.
func parseActiveDays(days []int) (map[time.Weekday]struct{}, error) {
	if len(days) == 0 {
		return nil, nil
	}
	out := make(map[time.Weekday]struct{}, len(days))
	for _, day := range days {
		if day < 0 || day > 7 {
			return nil, fmt.Errorf("schedule.active_days: day %d must be within 0..7", day)
		}
		out[time.Weekday(day%7)] = struct{}{}
	}
	return out, nil
}

func dayAllowed(days map[time.Weekday]struct{}, day time.Weekday) bool {
	if days == nil {
		return true
	}
	_, ok := days[day]
	return ok
}

func parseActiveHours(raw []string) ([]hoursWindow, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]hoursWindow, 0, len(raw))
	for _, item := range raw {
		fromRaw, toRaw, ok := strings.Cut(strings.TrimSpace(item), "-")
		if !ok {
			return nil, fmt.Errorf("schedule.active_hours %q: expected HH:MM-HH:MM", item)
		}
		from, err := parseClock(fromRaw)
		if err != nil {
			return nil, fmt.Errorf("schedule.active_hours %q: %w", item, err)
		}
		to, err := parseClock(toRaw)
		if err != nil {
			return nil, fmt.Errorf("schedule.active_hours %q: %w", item, err)
		}
		if from == to {
			return nil, fmt.Errorf("schedule.active_hours %q: zero-length window", item)
		}
		out = append(out, hoursWindow{from: from, to: to})
	}
	return out, nil
}

// parseClock parses HH:MM (24:00 allowed as end of day).
// Params: clock string.
// Returns: minutes since midnight.
func parseClock(raw string) (int, error) {
	hoursRaw, minutesRaw, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || len(hoursRaw) != 2 || len(minutesRaw) != 2 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	hours, err := strconv.Atoi(hoursRaw)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	minutes, err := strconv.Atoi(minutesRaw)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	total := hours*60 + minutes
	if hours < 0 || minutes < 0 || minutes > 59 || total > minutesPerDay {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return total, nil
}
