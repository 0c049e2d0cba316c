package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Spec is a parsed five-field cron expression. Each field is a bitmask of
// the values it allows.
type Spec struct {
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
}

type bounds struct {
	name     string
	min, max int
}

var fields = [5]bounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// Parse accepts "*", values, ranges, lists and steps ("*/15", "9-17/2").
func Parse(expr string) (Spec, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(fields) {
		return Spec{}, fmt.Errorf("expected %d fields, got %d", len(fields), len(parts))
	}

	var masks [5]uint64
	for i, p := range parts {
		m, err := parseField(p, fields[i])
		if err != nil {
			return Spec{}, fmt.Errorf("%s: %w", fields[i].name, err)
		}
		masks[i] = m
	}

	return Spec{minute: masks[0], hour: masks[1], dom: masks[2], month: masks[3], dow: masks[4]}, nil
}

// Matches reports whether t (to the minute) is a firing time.
func (s Spec) Matches(t time.Time) bool {
	return s.minute&bit(t.Minute()) != 0 &&
		s.hour&bit(t.Hour()) != 0 &&
		s.dom&bit(t.Day()) != 0 &&
		s.month&bit(int(t.Month())) != 0 &&
		s.dow&bit(int(t.Weekday())) != 0
}

// Next returns the first firing minute strictly after t, or the zero time if
// none exists within four years (e.g. "0 0 31 2 *").
func (s Spec) Next(t time.Time) time.Time {
	cur := t.Truncate(time.Minute).Add(time.Minute)
	limit := cur.AddDate(4, 0, 0)
	for cur.Before(limit) {
		if s.Matches(cur) {
			return cur
		}
		cur = cur.Add(time.Minute)
	}
	return time.Time{}
}

func bit(v int) uint64 { return 1 << uint(v) }

func parseField(token string, b bounds) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(token, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty list element in %q", token)
		}

		rng, step := part, 1
		if i := strings.IndexByte(part, '/'); i >= 0 {
			n, err := strconv.Atoi(part[i+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid step %q", part)
			}
			rng, step = part[:i], n
		}

		lo, hi := b.min, b.max
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			ends := strings.SplitN(rng, "-", 2)
			var errA, errB error
			lo, errA = strconv.Atoi(ends[0])
			hi, errB = strconv.Atoi(ends[1])
			if errA != nil || errB != nil || lo > hi {
				return 0, fmt.Errorf("invalid range %q", part)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", part)
			}
			lo, hi = v, v
		}

		if lo < b.min || hi > b.max {
			return 0, fmt.Errorf("%q out of bounds %d-%d", part, b.min, b.max)
		}
		for v := lo; v <= hi; v += step {
			mask |= bit(v)
		}
	}
	return mask, nil
}
