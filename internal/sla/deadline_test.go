package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testCalculator(t *testing.T) *Calculator {
	t.Helper()
	return NewCalculator(testCalendar(t))
}

func TestDeadlineCalendarTime(t *testing.T) {
	calc := testCalculator(t)

	// Saturday 22:00 with a 15-minute calendar-time budget: working-day
	// configuration is irrelevant.
	start := mustTime(t, "2025-03-08 22:00")
	require.Equal(t, mustTime(t, "2025-03-08 22:15"), calc.Deadline(start, 15, false))
}

func TestDeadlineWithinOneBusinessDay(t *testing.T) {
	calc := testCalculator(t)

	// Monday 09:00, 60 business minutes: 10:00 the same day.
	start := mustTime(t, "2025-03-03 09:00")
	require.Equal(t, mustTime(t, "2025-03-03 10:00"), calc.Deadline(start, 60, true))
}

func TestDeadlineSkipsLunchBreak(t *testing.T) {
	calc := testCalculator(t)

	// Monday 11:30 + 60 business minutes: 30 before lunch, 30 after 13:00.
	start := mustTime(t, "2025-03-03 11:30")
	require.Equal(t, mustTime(t, "2025-03-03 13:30"), calc.Deadline(start, 60, true))
}

func TestDeadlineSkipsWeekend(t *testing.T) {
	calc := testCalculator(t)

	// Friday 16:45 + 480 business minutes: 15 on Friday, weekend skipped,
	// 465 on Monday (240 before lunch, 225 after) landing 16:45. Sunday is
	// never a candidate.
	start := mustTime(t, "2025-03-07 16:45")
	deadline := calc.Deadline(start, 480, true)
	require.Equal(t, mustTime(t, "2025-03-10 16:45"), deadline)
	require.NotEqual(t, time.Sunday, deadline.Weekday())
}

func TestDeadlineStartsOutsideBusinessHours(t *testing.T) {
	calc := testCalculator(t)

	cases := []struct {
		name   string
		start  string
		budget int
		want   string
	}{
		{"before window", "2025-03-03 06:00", 30, "2025-03-03 08:30"},
		{"after window", "2025-03-03 18:00", 30, "2025-03-04 08:30"},
		{"on weekend", "2025-03-08 12:00", 30, "2025-03-10 08:30"},
		{"on holiday", "2025-03-05 09:00", 30, "2025-03-06 08:30"},
		{"during lunch", "2025-03-03 12:15", 30, "2025-03-03 13:30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.Deadline(mustTime(t, tc.start), tc.budget, true)
			require.Equal(t, mustTime(t, tc.want), got)
		})
	}
}

func TestDeadlineZeroOrNegativeBudgetReturnsStart(t *testing.T) {
	calc := testCalculator(t)

	start := mustTime(t, "2025-03-03 09:00")
	require.Equal(t, start, calc.Deadline(start, 0, true))
	require.Equal(t, start, calc.Deadline(start, -10, true))
	require.Equal(t, start, calc.Deadline(start, 0, false))
}

func TestElapsedRoundTrip(t *testing.T) {
	calc := testCalculator(t)

	starts := []string{
		"2025-03-03 09:00",
		"2025-03-03 11:55",
		"2025-03-07 16:45",
		"2025-03-08 22:00",
		"2025-03-04 16:59",
	}
	budgets := []int{1, 15, 60, 240, 480, 1337, 2880}
	for _, startStr := range starts {
		for _, budget := range budgets {
			start := mustTime(t, startStr)
			deadline := calc.Deadline(start, budget, true)
			require.Equal(t, budget, calc.ElapsedMinutes(start, deadline, true),
				"start=%s budget=%d", startStr, budget)
		}
	}
}

func TestElapsedCalendarTime(t *testing.T) {
	calc := testCalculator(t)

	start := mustTime(t, "2025-03-08 22:00")
	end := mustTime(t, "2025-03-09 01:30")
	require.Equal(t, 210, calc.ElapsedMinutes(start, end, false))
}

func TestElapsedZeroWhenEndNotAfterStart(t *testing.T) {
	calc := testCalculator(t)

	start := mustTime(t, "2025-03-03 09:00")
	require.Zero(t, calc.Elapsed(start, start, true))
	require.Zero(t, calc.Elapsed(start, start.Add(-time.Hour), true))
}

func TestElapsedCountsOnlyBusinessTime(t *testing.T) {
	calc := testCalculator(t)

	// Friday 16:00 to Monday 09:00: one hour Friday plus one hour Monday.
	start := mustTime(t, "2025-03-07 16:00")
	end := mustTime(t, "2025-03-10 09:00")
	require.Equal(t, 120, calc.ElapsedMinutes(start, end, true))
}

func TestRemainingIsSigned(t *testing.T) {
	calc := testCalculator(t)

	deadline := mustTime(t, "2025-03-03 10:00")
	before := mustTime(t, "2025-03-03 09:00")
	after := mustTime(t, "2025-03-03 11:30")

	require.Equal(t, 60*time.Minute, calc.Remaining(deadline, before, true))
	require.Equal(t, -90*time.Minute, calc.Remaining(deadline, after, true))
	require.Zero(t, calc.Remaining(deadline, deadline, true))
}

func TestRemainingOverdueAcrossWeekend(t *testing.T) {
	calc := testCalculator(t)

	// Deadline Friday 16:00, evaluated Monday 09:00: one business hour on
	// Friday plus one on Monday are overdue.
	deadline := mustTime(t, "2025-03-07 16:00")
	now := mustTime(t, "2025-03-10 09:00")
	require.Equal(t, -120*time.Minute, calc.Remaining(deadline, now, true))
}
