// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field bounds, in expression order.
const (
	minuteMin, minuteMax = 0, 59
	hourMin, hourMax     = 0, 23
	domMin, domMax       = 1, 31
	monthMin, monthMax   = 1, 12
	dowMin, dowMax       = 0, 7 // 7 is Sunday again, folded onto 0 after parsing
)

// CronSchedule is a parsed five-field cron expression. Each field is a bit
// set over the field's value range, so matching a time is five bit tests.
type CronSchedule struct {
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64

	// Standard cron quirk: day-of-month and day-of-week OR together, but
	// only when both are restricted. A bare "*" on either side defers the
	// day decision to the other field.
	domStar bool
	dowStar bool
}

// ParseCron parses a standard five-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Supported syntax per field:
//   - "*"     any value
//   - "n"     one value
//   - "n-m"   inclusive range
//   - "a,b,c" list of any of the above
//   - "/s"    step suffix on "*", a value, or a range
//
// Day-of-week accepts 0-7, with both 0 and 7 meaning Sunday.
//
// Examples:
//   - "0 7 * * *"    every day at 07:00
//   - "*/15 * * * *" every 15 minutes
//   - "30 6 * * 1"   Mondays at 06:30
func ParseCron(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	c := &CronSchedule{
		domStar: fields[2] == "*",
		dowStar: fields[4] == "*",
	}

	var err error
	if c.minute, err = parseField(fields[0], minuteMin, minuteMax); err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	if c.hour, err = parseField(fields[1], hourMin, hourMax); err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	if c.dom, err = parseField(fields[2], domMin, domMax); err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}
	if c.month, err = parseField(fields[3], monthMin, monthMax); err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	if c.dow, err = parseField(fields[4], dowMin, dowMax); err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}

	// Fold Sunday-as-7 onto Sunday-as-0.
	if c.dow&(1<<7) != 0 {
		c.dow = c.dow&^(1<<7) | 1
	}

	return c, nil
}

// NextRun returns the first time after the given one that matches the
// schedule, at minute granularity. If loc is nil, UTC is used. An
// expression that can never match (such as February 30th) returns the
// zero time.
func (c *CronSchedule) NextRun(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	// Start from the next whole minute.
	t := after.In(loc).Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)

	// Walk minute by minute. Four years bounds the search past every
	// leap-day pattern, so impossible dates terminate instead of spinning.
	limit := t.AddDate(4, 0, 0)
	for t.Before(limit) {
		if c.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// matches reports whether the given time satisfies the expression.
func (c *CronSchedule) matches(t time.Time) bool {
	if c.minute&(1<<t.Minute()) == 0 {
		return false
	}
	if c.hour&(1<<t.Hour()) == 0 {
		return false
	}
	if c.month&(1<<int(t.Month())) == 0 {
		return false
	}

	domHit := c.dom&(1<<t.Day()) != 0
	dowHit := c.dow&(1<<int(t.Weekday())) != 0

	switch {
	case c.domStar && c.dowStar:
		return true
	case c.domStar:
		return dowHit
	case c.dowStar:
		return domHit
	default:
		// Both day fields restricted: either matching is sufficient.
		return domHit || dowHit
	}
}

// parseField parses one cron field into a bit set over [minVal, maxVal].
func parseField(field string, minVal, maxVal int) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		m, err := parsePart(part, minVal, maxVal)
		if err != nil {
			return 0, err
		}
		mask |= m
	}
	return mask, nil
}

// parsePart parses a single list element: "*", "n", or "n-m", each with an
// optional "/step" suffix.
func parsePart(part string, minVal, maxVal int) (uint64, error) {
	body, step, stepped := part, 1, false
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		n, err := strconv.Atoi(part[idx+1:])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step value: %s", part[idx+1:])
		}
		body, step, stepped = part[:idx], n, true
	}

	start, end := minVal, maxVal
	switch {
	case body == "*":
		// Full span.
	case strings.Contains(body, "-"):
		lo, hi, _ := strings.Cut(body, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return 0, fmt.Errorf("invalid range start: %s", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return 0, fmt.Errorf("invalid range end: %s", hi)
		}
		if start > end {
			return 0, fmt.Errorf("invalid range: %d-%d", start, end)
		}
	default:
		var err error
		if start, err = strconv.Atoi(body); err != nil {
			return 0, fmt.Errorf("invalid value: %s", body)
		}
		end = start
		if stepped {
			// "n/s" runs from n to the field maximum in steps of s.
			end = maxVal
		}
	}

	if start < minVal || end > maxVal {
		return 0, fmt.Errorf("value out of range: %s (allowed %d-%d)", body, minVal, maxVal)
	}

	var mask uint64
	for v := start; v <= end; v += step {
		mask |= 1 << v
	}
	return mask, nil
}
