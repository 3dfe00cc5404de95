// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package scheduler

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{
			name: "daily at 7am",
			expr: "0 7 * * *",
		},
		{
			name: "every 5 minutes",
			expr: "*/5 * * * *",
		},
		{
			name: "monday at 9am",
			expr: "0 9 * * 1",
		},
		{
			name: "first of month at midnight",
			expr: "0 0 1 * *",
		},
		{
			name: "every hour on weekdays",
			expr: "0 * * * 1-5",
		},
		{
			name: "quarter hours",
			expr: "0,15,30,45 * * * *",
		},
		{
			name: "sunday as seven",
			expr: "0 9 * * 7",
		},
		{
			name: "range with step",
			expr: "0-30/10 * * * *",
		},
		{
			name:    "too few fields",
			expr:    "0 9 * *",
			wantErr: true,
		},
		{
			name:    "too many fields",
			expr:    "0 9 * * * *",
			wantErr: true,
		},
		{
			name:    "minute out of range",
			expr:    "60 9 * * *",
			wantErr: true,
		},
		{
			name:    "hour out of range",
			expr:    "0 24 * * *",
			wantErr: true,
		},
		{
			name:    "day of month zero",
			expr:    "0 0 0 * *",
			wantErr: true,
		},
		{
			name:    "zero step",
			expr:    "*/0 * * * *",
			wantErr: true,
		},
		{
			name:    "not numbers",
			expr:    "a b c d e",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCron(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNextRun(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "daily at 9am from 8am",
			expr:  "0 9 * * *",
			after: time.Date(2026, 3, 2, 8, 0, 0, 0, loc),
			want:  time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
		},
		{
			name:  "daily at 9am from 10am rolls to next day",
			expr:  "0 9 * * *",
			after: time.Date(2026, 3, 2, 10, 0, 0, 0, loc),
			want:  time.Date(2026, 3, 3, 9, 0, 0, 0, loc),
		},
		{
			name:  "every 5 minutes from an off minute",
			expr:  "*/5 * * * *",
			after: time.Date(2026, 3, 2, 12, 1, 0, 0, loc),
			want:  time.Date(2026, 3, 2, 12, 5, 0, 0, loc),
		},
		{
			name:  "every 5 minutes from a matching minute",
			expr:  "*/5 * * * *",
			after: time.Date(2026, 3, 2, 12, 5, 0, 0, loc),
			want:  time.Date(2026, 3, 2, 12, 10, 0, 0, loc),
		},
		{
			name:  "seconds are dropped",
			expr:  "*/5 * * * *",
			after: time.Date(2026, 3, 2, 12, 4, 30, 0, loc),
			want:  time.Date(2026, 3, 2, 12, 5, 0, 0, loc),
		},
		{
			name:  "monday at 9am from sunday",
			expr:  "0 9 * * 1",
			after: time.Date(2026, 3, 1, 10, 0, 0, 0, loc), // Sunday
			want:  time.Date(2026, 3, 2, 9, 0, 0, 0, loc),  // Monday
		},
		{
			name:  "first of month from mid-month",
			expr:  "0 0 1 * *",
			after: time.Date(2026, 3, 15, 0, 0, 0, 0, loc),
			want:  time.Date(2026, 4, 1, 0, 0, 0, 0, loc),
		},
		{
			name:  "minute 30 within the hour",
			expr:  "30 * * * *",
			after: time.Date(2026, 3, 2, 12, 20, 0, 0, loc),
			want:  time.Date(2026, 3, 2, 12, 30, 0, 0, loc),
		},
		{
			name:  "minute 30 rolls to next hour",
			expr:  "30 * * * *",
			after: time.Date(2026, 3, 2, 12, 35, 0, 0, loc),
			want:  time.Date(2026, 3, 2, 13, 30, 0, 0, loc),
		},
		{
			name:  "leap day",
			expr:  "0 0 29 2 *",
			after: time.Date(2026, 3, 1, 0, 0, 0, 0, loc),
			want:  time.Date(2028, 2, 29, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cron, err := ParseCron(tt.expr)
			if err != nil {
				t.Fatalf("ParseCron(%q) error = %v", tt.expr, err)
			}

			got := cron.NextRun(tt.after, loc)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunNeverMatches(t *testing.T) {
	cron, err := ParseCron("0 0 30 2 *") // February 30th
	if err != nil {
		t.Fatalf("ParseCron() error = %v", err)
	}

	got := cron.NextRun(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC)
	if !got.IsZero() {
		t.Errorf("NextRun() = %v, want zero time for an impossible date", got)
	}
}

func TestNextRunTimezone(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("America/New_York timezone not available")
	}

	cron, err := ParseCron("0 9 * * *")
	if err != nil {
		t.Fatalf("ParseCron() error = %v", err)
	}

	after := time.Date(2026, 3, 2, 8, 0, 0, 0, newYork)
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, newYork)
	if got := cron.NextRun(after, newYork); !got.Equal(want) {
		t.Errorf("NextRun() = %v, want %v", got, want)
	}

	// Nil location falls back to UTC.
	afterUTC := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	wantUTC := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if got := cron.NextRun(afterUTC, nil); !got.Equal(wantUTC) {
		t.Errorf("NextRun(nil loc) = %v, want %v", got, wantUTC)
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		min     int
		max     int
		want    []int
		wantErr bool
	}{
		{
			name:  "wildcard",
			field: "*",
			min:   0,
			max:   5,
			want:  []int{0, 1, 2, 3, 4, 5},
		},
		{
			name:  "single value",
			field: "5",
			min:   0,
			max:   59,
			want:  []int{5},
		},
		{
			name:  "range",
			field: "1-5",
			min:   0,
			max:   10,
			want:  []int{1, 2, 3, 4, 5},
		},
		{
			name:  "step from start",
			field: "*/15",
			min:   0,
			max:   59,
			want:  []int{0, 15, 30, 45},
		},
		{
			name:  "step in range",
			field: "0-30/10",
			min:   0,
			max:   59,
			want:  []int{0, 10, 20, 30},
		},
		{
			name:  "step from value runs to max",
			field: "50/3",
			min:   0,
			max:   59,
			want:  []int{50, 53, 56, 59},
		},
		{
			name:  "list",
			field: "1,3,5",
			min:   0,
			max:   10,
			want:  []int{1, 3, 5},
		},
		{
			name:  "overlapping list parts collapse",
			field: "1-3,2-4",
			min:   0,
			max:   10,
			want:  []int{1, 2, 3, 4},
		},
		{
			name:    "value out of range",
			field:   "60",
			min:     0,
			max:     59,
			wantErr: true,
		},
		{
			name:    "inverted range",
			field:   "10-5",
			min:     0,
			max:     59,
			wantErr: true,
		},
		{
			name:    "range end out of bounds",
			field:   "5-70",
			min:     0,
			max:     59,
			wantErr: true,
		},
		{
			name:    "negative step",
			field:   "*/-2",
			min:     0,
			max:     59,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := parseField(tt.field, tt.min, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseField(%q) error = %v, wantErr %v", tt.field, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got := maskValues(mask); !equalInts(got, tt.want) {
				t.Errorf("parseField(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		time    time.Time
		matches bool
	}{
		{
			name:    "exact match",
			expr:    "30 9 15 1 *",
			time:    time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
			matches: true,
		},
		{
			name:    "minute mismatch",
			expr:    "30 9 15 1 *",
			time:    time.Date(2026, 1, 15, 9, 31, 0, 0, time.UTC),
			matches: false,
		},
		{
			name:    "hour mismatch",
			expr:    "30 9 15 1 *",
			time:    time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
			matches: false,
		},
		{
			name:    "month mismatch",
			expr:    "30 9 15 1 *",
			time:    time.Date(2026, 2, 15, 9, 30, 0, 0, time.UTC),
			matches: false,
		},
		{
			name:    "weekday match",
			expr:    "0 9 * * 1",
			time:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), // Monday
			matches: true,
		},
		{
			name:    "weekday mismatch",
			expr:    "0 9 * * 1",
			time:    time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), // Tuesday
			matches: false,
		},
		{
			name:    "sunday as seven",
			expr:    "0 9 * * 7",
			time:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), // Sunday
			matches: true,
		},
		{
			// Both day fields restricted: day-of-month alone may match.
			name:    "restricted days match on day of month",
			expr:    "0 0 13 * 5",
			time:    time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC), // Tuesday the 13th
			matches: true,
		},
		{
			// Both day fields restricted: day-of-week alone may match.
			name:    "restricted days match on weekday",
			expr:    "0 0 13 * 5",
			time:    time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), // Friday the 16th
			matches: true,
		},
		{
			name:    "restricted days match on neither",
			expr:    "0 0 13 * 5",
			time:    time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), // Wednesday the 14th
			matches: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cron, err := ParseCron(tt.expr)
			if err != nil {
				t.Fatalf("ParseCron(%q) error = %v", tt.expr, err)
			}

			if got := cron.matches(tt.time); got != tt.matches {
				t.Errorf("matches(%v) = %v, want %v", tt.time, got, tt.matches)
			}
		})
	}
}

// maskValues expands a field bit set into its member values.
func maskValues(mask uint64) []int {
	var vals []int
	for v := 0; v < 64; v++ {
		if mask&(1<<v) != 0 {
			vals = append(vals, v)
		}
	}
	return vals
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
