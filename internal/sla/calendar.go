package sla

import (
	"fmt"
	"time"
)

// CalendarConfig mirrors the business-calendar block of the SLA settings file.
// Working days use time.Weekday numbering (Sunday=0). Holidays are ISO dates.
type CalendarConfig struct {
	Timezone    string   `yaml:"timezone"`
	WorkingDays []int    `yaml:"working_days"`
	Holidays    []string `yaml:"holidays"`
	DayStart    string   `yaml:"day_start"`
	DayEnd      string   `yaml:"day_end"`
	LunchStart  string   `yaml:"lunch_start"`
	LunchEnd    string   `yaml:"lunch_end"`
}

// DefaultCalendarConfig is Mon-Fri 08:00-17:00 with a 12:00-13:00 lunch break.
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		Timezone:    "UTC",
		WorkingDays: []int{1, 2, 3, 4, 5},
		DayStart:    "08:00",
		DayEnd:      "17:00",
		LunchStart:  "12:00",
		LunchEnd:    "13:00",
	}
}

// Calendar answers whether an instant counts as business time. Immutable after
// construction; safe for concurrent use.
type Calendar struct {
	loc         *time.Location
	workingDays map[time.Weekday]bool
	holidays    map[string]bool
	dayStart    int // minutes from midnight
	dayEnd      int
	lunchStart  int // -1 when no lunch break configured
	lunchEnd    int
}

// NewCalendar validates the configuration and builds a calendar.
func NewCalendar(cfg CalendarConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	if len(cfg.WorkingDays) == 0 {
		return nil, fmt.Errorf("calendar requires at least one working day")
	}
	workingDays := make(map[time.Weekday]bool, len(cfg.WorkingDays))
	for _, day := range cfg.WorkingDays {
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("invalid working day %d", day)
		}
		workingDays[time.Weekday(day)] = true
	}

	holidays := make(map[string]bool, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		if _, err := time.ParseInLocation("2006-01-02", h, loc); err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		holidays[h] = true
	}

	dayStart, err := parseClockMinutes(cfg.DayStart)
	if err != nil {
		return nil, fmt.Errorf("invalid day_start: %w", err)
	}
	dayEnd, err := parseClockMinutes(cfg.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid day_end: %w", err)
	}
	if dayEnd <= dayStart {
		return nil, fmt.Errorf("day_end %s must be after day_start %s", cfg.DayEnd, cfg.DayStart)
	}

	lunchStart, lunchEnd := -1, -1
	if cfg.LunchStart != "" || cfg.LunchEnd != "" {
		lunchStart, err = parseClockMinutes(cfg.LunchStart)
		if err != nil {
			return nil, fmt.Errorf("invalid lunch_start: %w", err)
		}
		lunchEnd, err = parseClockMinutes(cfg.LunchEnd)
		if err != nil {
			return nil, fmt.Errorf("invalid lunch_end: %w", err)
		}
		if lunchEnd <= lunchStart || lunchStart < dayStart || lunchEnd > dayEnd {
			return nil, fmt.Errorf("lunch break %s-%s must sit inside %s-%s",
				cfg.LunchStart, cfg.LunchEnd, cfg.DayStart, cfg.DayEnd)
		}
	}

	return &Calendar{
		loc:         loc,
		workingDays: workingDays,
		holidays:    holidays,
		dayStart:    dayStart,
		dayEnd:      dayEnd,
		lunchStart:  lunchStart,
		lunchEnd:    lunchEnd,
	}, nil
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsWorkingDay reports whether t falls on a working weekday that is not a
// holiday. A holiday on a non-working weekday is a harmless redundancy.
func (c *Calendar) IsWorkingDay(t time.Time) bool {
	t = t.In(c.loc)
	if !c.workingDays[t.Weekday()] {
		return false
	}
	return !c.holidays[t.Format("2006-01-02")]
}

// IsWithinBusinessHours reports whether t sits inside the daily window and
// outside the lunch break. The day itself is not checked here.
func (c *Calendar) IsWithinBusinessHours(t time.Time) bool {
	m := minuteOfDay(t.In(c.loc))
	if m < c.dayStart || m >= c.dayEnd {
		return false
	}
	if c.lunchStart >= 0 && m >= c.lunchStart && m < c.lunchEnd {
		return false
	}
	return true
}

// IsBusinessTime reports whether t counts toward business-time budgets.
func (c *Calendar) IsBusinessTime(t time.Time) bool {
	return c.IsWorkingDay(t) && c.IsWithinBusinessHours(t)
}

// NextBusinessDay returns midnight of the next working day after t.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	t = t.In(c.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	for {
		day = day.AddDate(0, 0, 1)
		if c.IsWorkingDay(day) {
			return day
		}
	}
}

// BusinessDayStart returns the window start instant on t's date.
func (c *Calendar) BusinessDayStart(t time.Time) time.Time {
	return c.atMinute(t, c.dayStart)
}

// BusinessDayEnd returns the window end instant on t's date.
func (c *Calendar) BusinessDayEnd(t time.Time) time.Time {
	return c.atMinute(t, c.dayEnd)
}

// LunchSpan returns the lunch-break boundaries on t's date; ok is false when
// no lunch break is configured.
func (c *Calendar) LunchSpan(t time.Time) (start, end time.Time, ok bool) {
	if c.lunchStart < 0 {
		return time.Time{}, time.Time{}, false
	}
	return c.atMinute(t, c.lunchStart), c.atMinute(t, c.lunchEnd), true
}

func (c *Calendar) atMinute(t time.Time, minutes int) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), minutes/60, minutes%60, 0, 0, c.loc)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func parseClockMinutes(v string) (int, error) {
	parsed, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
