package sla

import (
	"math"
	"time"
)

// Calculator walks forward through business time to turn minute budgets into
// deadlines and back. All methods are pure; the calendar is never mutated.
type Calculator struct {
	cal *Calendar
}

// NewCalculator wraps a calendar.
func NewCalculator(cal *Calendar) *Calculator {
	return &Calculator{cal: cal}
}

// Deadline computes the instant at which budgetMinutes of working time run
// out, starting at start. With businessHoursOnly=false this is plain calendar
// arithmetic. A zero or negative budget returns start unchanged so disabled
// SLA clocks compose cleanly.
func (c *Calculator) Deadline(start time.Time, budgetMinutes int, businessHoursOnly bool) time.Time {
	if budgetMinutes <= 0 {
		return start
	}
	budget := time.Duration(budgetMinutes) * time.Minute
	if !businessHoursOnly {
		return start.Add(budget)
	}

	cur := start.In(c.cal.Location())
	for {
		cur = c.skipToBusinessTime(cur)
		segEnd := c.segmentEnd(cur)
		seg := segEnd.Sub(cur)
		if budget <= seg {
			return cur.Add(budget)
		}
		budget -= seg
		cur = segEnd
	}
}

// Elapsed returns the working time between start and end, zero when end is
// not after start.
func (c *Calculator) Elapsed(start, end time.Time, businessHoursOnly bool) time.Duration {
	if !end.After(start) {
		return 0
	}
	if !businessHoursOnly {
		return end.Sub(start)
	}

	cur := start.In(c.cal.Location())
	end = end.In(c.cal.Location())
	var total time.Duration
	for cur.Before(end) {
		cur = c.skipToBusinessTime(cur)
		if !cur.Before(end) {
			break
		}
		segEnd := c.segmentEnd(cur)
		if end.Before(segEnd) {
			segEnd = end
		}
		total += segEnd.Sub(cur)
		cur = segEnd
	}
	return total
}

// ElapsedMinutes rounds Elapsed to the nearest minute.
func (c *Calculator) ElapsedMinutes(start, end time.Time, businessHoursOnly bool) int {
	return int(math.Round(c.Elapsed(start, end, businessHoursOnly).Minutes()))
}

// Remaining returns the signed working time between now and deadline:
// positive before the deadline, negative once overdue.
func (c *Calculator) Remaining(deadline, now time.Time, businessHoursOnly bool) time.Duration {
	if now.After(deadline) {
		return -c.Elapsed(deadline, now, businessHoursOnly)
	}
	return c.Elapsed(now, deadline, businessHoursOnly)
}

// skipToBusinessTime advances cur to the next instant that counts as business
// time: next working day's window start when the day is out, window start when
// early, next day when past the window, lunch end during the break.
func (c *Calculator) skipToBusinessTime(cur time.Time) time.Time {
	for {
		if !c.cal.IsWorkingDay(cur) {
			cur = c.cal.BusinessDayStart(c.cal.NextBusinessDay(cur))
			continue
		}
		dayStart := c.cal.BusinessDayStart(cur)
		dayEnd := c.cal.BusinessDayEnd(cur)
		if cur.Before(dayStart) {
			cur = dayStart
			continue
		}
		if !cur.Before(dayEnd) {
			cur = c.cal.BusinessDayStart(c.cal.NextBusinessDay(cur))
			continue
		}
		if lunchStart, lunchEnd, ok := c.cal.LunchSpan(cur); ok && !cur.Before(lunchStart) && cur.Before(lunchEnd) {
			cur = lunchEnd
			continue
		}
		return cur
	}
}

// segmentEnd returns the end of the uninterrupted working stretch containing
// cur: the lunch start when it lies ahead on the same day, else the window end.
// cur must already be business time.
func (c *Calculator) segmentEnd(cur time.Time) time.Time {
	if lunchStart, _, ok := c.cal.LunchSpan(cur); ok && cur.Before(lunchStart) {
		return lunchStart
	}
	return c.cal.BusinessDayEnd(cur)
}
