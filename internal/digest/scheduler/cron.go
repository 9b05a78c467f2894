// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package scheduler triggers digest composition on per-cadence wall-clock
// schedules.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Supported syntax per field: * (any), n, n-m, n,m,o, */s and n-m/s.
// Day-of-week accepts 0-7 with 7 normalized to Sunday (0). When both
// day-of-month and day-of-week are restricted, either matching is
// sufficient, as in standard cron.
type Schedule struct {
	minutes     fieldSet
	hours       fieldSet
	daysOfMonth fieldSet
	months      fieldSet
	daysOfWeek  fieldSet
}

type fieldSet struct {
	values   map[int]struct{}
	wildcard bool
}

func (f fieldSet) contains(v int) bool {
	if f.wildcard {
		return true
	}
	_, ok := f.values[v]
	return ok
}

// Parse parses a 5-field cron expression.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(fields))
	}

	specs := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 7},
	}

	parsed := make([]fieldSet, len(fields))
	for i, field := range fields {
		fs, err := parseField(field, specs[i].min, specs[i].max)
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s field: %w", expr, specs[i].name, err)
		}
		parsed[i] = fs
	}

	// Fold day-of-week 7 into Sunday (0).
	if _, ok := parsed[4].values[7]; ok {
		delete(parsed[4].values, 7)
		parsed[4].values[0] = struct{}{}
	}

	return &Schedule{
		minutes:     parsed[0],
		hours:       parsed[1],
		daysOfMonth: parsed[2],
		months:      parsed[3],
		daysOfWeek:  parsed[4],
	}, nil
}

// Next returns the first time strictly after the given one that matches the
// schedule, in the given location (UTC when nil). The scan is bounded at
// four years; a valid expression always matches well within that.
func (s *Schedule) Next(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Add(time.Minute).Truncate(time.Minute)

	const maxMinutes = 4 * 366 * 24 * 60
	for i := 0; i < maxMinutes; i++ {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (s *Schedule) matches(t time.Time) bool {
	if !s.minutes.contains(t.Minute()) ||
		!s.hours.contains(t.Hour()) ||
		!s.months.contains(int(t.Month())) {
		return false
	}

	// Standard cron: when both day fields are restricted, either suffices.
	switch {
	case s.daysOfMonth.wildcard && s.daysOfWeek.wildcard:
		return true
	case s.daysOfMonth.wildcard:
		return s.daysOfWeek.contains(int(t.Weekday()))
	case s.daysOfWeek.wildcard:
		return s.daysOfMonth.contains(t.Day())
	default:
		return s.daysOfMonth.contains(t.Day()) || s.daysOfWeek.contains(int(t.Weekday()))
	}
}

func parseField(field string, minVal, maxVal int) (fieldSet, error) {
	if field == "*" {
		return fieldSet{wildcard: true}, nil
	}

	fs := fieldSet{values: make(map[int]struct{})}
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(part, minVal, maxVal, fs.values); err != nil {
			return fieldSet{}, err
		}
	}
	return fs, nil
}

func parsePart(part string, minVal, maxVal int, into map[int]struct{}) error {
	step := 1
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		s, err := strconv.Atoi(part[idx+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("bad step %q", part[idx+1:])
		}
		step = s
		part = part[:idx]
	}

	start, end := minVal, maxVal
	switch {
	case part == "*":
		// full range with step
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		var err error
		if start, err = strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("bad range start %q", bounds[0])
		}
		if end, err = strconv.Atoi(bounds[1]); err != nil {
			return fmt.Errorf("bad range end %q", bounds[1])
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("bad value %q", part)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start > end || start < minVal || end > maxVal {
		return fmt.Errorf("range %d-%d outside [%d,%d]", start, end, minVal, maxVal)
	}
	for v := start; v <= end; v += step {
		into[v] = struct{}{}
	}
	return nil
}
