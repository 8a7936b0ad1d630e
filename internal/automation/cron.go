package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronSchedule is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week). Each field is either a
// wildcard or a set of allowed values. Day-of-week accepts three-letter
// names; steps are not supported.
type cronSchedule struct {
	minute  map[int]bool
	hour    map[int]bool
	dom     map[int]bool
	month   map[int]bool
	dow     map[int]bool
	domStar bool
	dowStar bool
}

var dayNames = map[string]int{
	"SUN": 0, "MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6,
}

// parseCron parses a five-field cron pattern. A malformed pattern is an
// error; callers treat it as never-matching.
func parseCron(expr string) (*cronSchedule, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron pattern must have 5 fields, got %d", len(fields))
	}

	s := &cronSchedule{}
	var err error
	if s.minute, _, err = parseCronField(fields[0], 0, 59, nil); err != nil {
		return nil, fmt.Errorf("minute: %w", err)
	}
	if s.hour, _, err = parseCronField(fields[1], 0, 23, nil); err != nil {
		return nil, fmt.Errorf("hour: %w", err)
	}
	if s.dom, s.domStar, err = parseCronField(fields[2], 1, 31, nil); err != nil {
		return nil, fmt.Errorf("day of month: %w", err)
	}
	if s.month, _, err = parseCronField(fields[3], 1, 12, nil); err != nil {
		return nil, fmt.Errorf("month: %w", err)
	}
	if s.dow, s.dowStar, err = parseCronField(fields[4], 0, 6, dayNames); err != nil {
		return nil, fmt.Errorf("day of week: %w", err)
	}
	return s, nil
}

// parseCronField parses one field: "*", a literal, a range "a-b", or a
// comma list mixing literals and ranges. names maps symbolic values
// (e.g. MON) to numbers when allowed for the field.
func parseCronField(field string, min, max int, names map[string]int) (map[int]bool, bool, error) {
	if field == "*" {
		all := make(map[int]bool, max-min+1)
		for v := min; v <= max; v++ {
			all[v] = true
		}
		return all, true, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return nil, false, fmt.Errorf("empty list entry in %q", field)
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := parseCronValue(lo, min, max, names)
			if err != nil {
				return nil, false, err
			}
			to, err := parseCronValue(hi, min, max, names)
			if err != nil {
				return nil, false, err
			}
			if from > to {
				return nil, false, fmt.Errorf("descending range %q", part)
			}
			for v := from; v <= to; v++ {
				values[v] = true
			}
			continue
		}
		v, err := parseCronValue(part, min, max, names)
		if err != nil {
			return nil, false, err
		}
		values[v] = true
	}
	return values, false, nil
}

func parseCronValue(s string, min, max int, names map[string]int) (int, error) {
	if names != nil {
		if v, ok := names[strings.ToUpper(s)]; ok {
			return v, nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range [%d,%d]", v, min, max)
	}
	return v, nil
}

// matches reports whether t (already in the rule's timezone) satisfies
// the schedule at minute granularity. When both day fields are
// restricted, either one matching is enough, per classic cron.
func (s *cronSchedule) matches(t time.Time) bool {
	if !s.minute[t.Minute()] || !s.hour[t.Hour()] || !s.month[int(t.Month())] {
		return false
	}
	domOK := s.dom[t.Day()]
	dowOK := s.dow[int(t.Weekday())]
	if !s.domStar && !s.dowStar {
		return domOK || dowOK
	}
	return domOK && dowOK
}
