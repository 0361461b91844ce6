package tradecost

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDate is the layout dates are written with. They are read with the
// lenient "2006-1-2".
const isoDate = "2006-01-02"

// Day is the duration of a calendar day.
const Day = 24 * time.Hour

// Date is a calendar day, without time zone. The zero Date is "no date".
//
// Dates are comparable with ==, and usable as map keys, as long as they are
// built with NewDate, which normalizes out of range values (January 32nd is
// February 1st).
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns the normalized date of year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// Today returns the current local date.
func Today() Date { return NewDate(time.Now().Date()) }

func (d Date) Year() int         { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int          { return d.d }
func (d Date) IsZero() bool      { return d == Date{} }

// midnight is d at midnight UTC, the same instant for equal dates.
func (d Date) midnight() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// String returns d as YYYY-MM-DD, empty for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(isoDate)
}

// Format formats d with a time layout.
func (d Date) Format(layout string) string { return d.midnight().Format(layout) }

func (d Date) Compare(x Date) int  { return d.midnight().Compare(x.midnight()) }
func (d Date) Before(x Date) bool  { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool   { return d.Compare(x) > 0 }
func (d Date) Add(days int) Date   { return NewDate(d.y, d.m, d.d+days) }
func (d Date) AddMonth(n int) Date { return NewDate(d.y, d.m+time.Month(n), d.d) }

// DaysSince returns the number of calendar days from x to d, negative when
// x is after d.
func (d Date) DaysSince(x Date) int { return int(d.midnight().Sub(x.midnight()) / Day) }

// StartOf returns the first day of the period containing d.
func (d Date) StartOf(p Period) Date {
	switch p {
	case Monthly:
		return NewDate(d.y, d.m, 1)
	case Quarterly:
		return NewDate(d.y, d.m-(d.m-1)%3, 1)
	case Yearly:
		return NewDate(d.y, time.January, 1)
	}
	panic(fmt.Sprintf("unknown period %d", p))
}

// EndOf returns the last day of the period containing d.
func (d Date) EndOf(p Period) Date {
	switch p {
	case Monthly:
		return d.StartOf(Monthly).AddMonth(1).Add(-1)
	case Quarterly:
		return d.StartOf(Quarterly).AddMonth(3).Add(-1)
	case Yearly:
		return NewDate(d.y, time.December, 31)
	}
	panic(fmt.Sprintf("unknown period %d", p))
}

var (
	offsetRE = regexp.MustCompile(`^([+-])(\d+)([dwmqy])$`)
	monthRE  = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
)

// ParseDate reads a date written as:
//   - 2024-03-15 or 2024-3-15
//   - 2024-03, the first day of the month
//   - 0d, today
//   - a signed offset from today: -1d, +2w, -3m, -1q or +1y
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "0d" {
		return Today(), nil
	}
	if m := offsetRE.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Date{}, fmt.Errorf("invalid offset %q: %w", s, err)
		}
		if m[1] == "-" {
			n = -n
		}
		today := Today()
		switch m[3] {
		case "d":
			return today.Add(n), nil
		case "w":
			return today.Add(7 * n), nil
		case "m":
			return today.AddMonth(n), nil
		case "q":
			return today.AddMonth(3 * n), nil
		default:
			return today.AddMonth(12 * n), nil
		}
	}
	if m := monthRE.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Date{}, fmt.Errorf("invalid month in %q", s)
		}
		return NewDate(y, time.Month(month), 1), nil
	}
	return parseISODate(s)
}

// parseISODate reads the strict (but zero padding optional) form used in
// data files.
func parseISODate(s string) (Date, error) {
	t, err := time.Parse("2006-1-2", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return NewDate(t.Date()), nil
}

// MarshalJSON writes the date as a YYYY-MM-DD string, "" when zero.
func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON reads a YYYY-MM-DD string. Relative dates are not accepted
// in data files.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := parseISODate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
