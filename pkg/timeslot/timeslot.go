// Package timeslot normalises timetable text into comparable day sets and minute ranges.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DaySet is a bitmask of weekdays, bit n set for time.Weekday(n).
type DaySet uint8

// Days in the order they are rendered.
var renderOrder = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}

var dayNames = map[string]time.Weekday{
	"MON": time.Monday, "MONDAY": time.Monday,
	"TUE": time.Tuesday, "TUES": time.Tuesday, "TUESDAY": time.Tuesday,
	"WED": time.Wednesday, "WEDNESDAY": time.Wednesday,
	"THU": time.Thursday, "THUR": time.Thursday, "THURS": time.Thursday, "THURSDAY": time.Thursday,
	"FRI": time.Friday, "FRIDAY": time.Friday,
	"SAT": time.Saturday, "SATURDAY": time.Saturday,
	"SUN": time.Sunday, "SUNDAY": time.Sunday,
}

// Of builds a set from individual weekdays.
func Of(days ...time.Weekday) DaySet {
	var set DaySet
	for _, d := range days {
		set |= 1 << uint(d)
	}
	return set
}

// Has reports whether the weekday is part of the set.
func (s DaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Intersect returns the days present in both sets.
func (s DaySet) Intersect(other DaySet) DaySet {
	return s & other
}

// Empty reports whether the set has no days.
func (s DaySet) Empty() bool {
	return s == 0
}

// Days lists the weekdays Monday first.
func (s DaySet) Days() []time.Weekday {
	var out []time.Weekday
	for _, d := range renderOrder {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// String renders the set as "Mon,Wed,Fri".
func (s DaySet) String() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = d.String()[:3]
	}
	return strings.Join(parts, ",")
}

// ParseDays accepts separated names ("Mon, Wed", "Tue/Thu", "Monday") and
// compact registrar notation ("MWF", "TTh", "TR", "SaSu").
func ParseDays(raw string) (DaySet, error) {
	text := strings.ToUpper(strings.TrimSpace(raw))
	if text == "" {
		return 0, fmt.Errorf("empty day set")
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '/' || r == ' ' || r == ';' || r == '&' || r == '-'
	})
	var set DaySet
	for _, token := range tokens {
		token = strings.TrimSuffix(token, ".")
		if d, ok := dayNames[token]; ok {
			set |= Of(d)
			continue
		}
		compact, err := parseCompact(token)
		if err != nil {
			return 0, fmt.Errorf("parse days %q: %w", raw, err)
		}
		set |= compact
	}
	if set.Empty() {
		return 0, fmt.Errorf("parse days %q: no weekday found", raw)
	}
	return set, nil
}

func parseCompact(token string) (DaySet, error) {
	var set DaySet
	for i := 0; i < len(token); {
		rest := token[i:]
		switch {
		case strings.HasPrefix(rest, "TH"):
			set |= Of(time.Thursday)
			i += 2
		case strings.HasPrefix(rest, "SU"):
			set |= Of(time.Sunday)
			i += 2
		case strings.HasPrefix(rest, "SA"):
			set |= Of(time.Saturday)
			i += 2
		default:
			switch rest[0] {
			case 'M':
				set |= Of(time.Monday)
			case 'T':
				set |= Of(time.Tuesday)
			case 'W':
				set |= Of(time.Wednesday)
			case 'R':
				set |= Of(time.Thursday)
			case 'F':
				set |= Of(time.Friday)
			case 'S':
				set |= Of(time.Saturday)
			case 'U':
				set |= Of(time.Sunday)
			default:
				return 0, fmt.Errorf("unknown day token %q", token)
			}
			i++
		}
	}
	return set, nil
}

// MinutesPerDay bounds a clock value; 24:00 is accepted as an end of day marker.
const MinutesPerDay = 24 * 60

// ParseClock converts "09:00", "9:30 AM", "1:15pm" or "13:15" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	text := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	if text == "" {
		return 0, fmt.Errorf("empty clock value")
	}
	meridiem := ""
	if strings.HasSuffix(text, "AM") || strings.HasSuffix(text, "PM") {
		meridiem = text[len(text)-2:]
		text = text[:len(text)-2]
	}
	hourText, minuteText, found := strings.Cut(text, ":")
	if !found {
		minuteText = "0"
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: invalid hour", raw)
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("parse clock %q: invalid minute", raw)
	}
	switch meridiem {
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("parse clock %q: invalid hour", raw)
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	default:
		if hour < 0 || hour > 24 {
			return 0, fmt.Errorf("parse clock %q: invalid hour", raw)
		}
	}
	total := hour*60 + minute
	if total > MinutesPerDay {
		return 0, fmt.Errorf("parse clock %q: beyond end of day", raw)
	}
	return total, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Range is a half-open [Start, End) interval in minutes since midnight.
type Range struct {
	Start int
	End   int
}

// NewRange validates that start precedes end.
func NewRange(start, end int) (Range, error) {
	if start < 0 || end > MinutesPerDay {
		return Range{}, fmt.Errorf("time range %s-%s outside the day", FormatClock(start), FormatClock(end))
	}
	if start >= end {
		return Range{}, fmt.Errorf("time range %s-%s must start before it ends", FormatClock(start), FormatClock(end))
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange reads "09:00-10:30" or "9:00 AM - 10:30 AM".
func ParseRange(raw string) (Range, error) {
	startText, endText, found := strings.Cut(raw, "-")
	if !found {
		return Range{}, fmt.Errorf("parse range %q: missing '-'", raw)
	}
	start, err := ParseClock(startText)
	if err != nil {
		return Range{}, err
	}
	end, err := ParseClock(endText)
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, end)
}

// Overlaps reports whether the intervals share at least one minute. Touching ends do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// String renders "HH:MM-HH:MM".
func (r Range) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}
