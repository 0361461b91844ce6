package tradecost

import (
	"fmt"
	"iter"
	"strings"
)

// Period is a calendar bucket of aggregation. The zero Period is invalid.
type Period int

const (
	Monthly Period = iota + 1
	Quarterly
	Yearly
)

func (p Period) String() string {
	switch p {
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Yearly:
		return "yearly"
	}
	return fmt.Sprintf("period(%d)", int(p))
}

// ParsePeriod reads a period from its adjective or its noun. Periods that
// exist on a calendar but cannot bucket aggregates (days, weeks) are
// ErrUnsupportedBucket.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return Monthly, nil
	case "quarterly", "quarter":
		return Quarterly, nil
	case "yearly", "year":
		return Yearly, nil
	case "daily", "day", "weekly", "week":
		return 0, fmt.Errorf("period %q: %w", s, ErrUnsupportedBucket)
	}
	return 0, fmt.Errorf("unknown period %q, want month, quarter or year", s)
}

// Range returns the period containing d.
func (p Period) Range(d Date) Range { return Range{From: d.StartOf(p), To: d.EndOf(p)} }

// Range is an interval of days, both ends included. The zero Range means
// "no restriction" to the functions taking one.
type Range struct{ From, To Date }

// NewRange returns the range between two dates, in any order.
func NewRange(from, to Date) Range {
	if from.After(to) {
		from, to = to, from
	}
	return Range{From: from, To: to}
}

func (r Range) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Contains reports whether d is within r, ends included.
func (r Range) Contains(d Date) bool { return !d.Before(r.From) && !d.After(r.To) }

func (r Range) String() string { return fmt.Sprintf("%s..%s", r.From, r.To) }

// Periods yields, in order, every full period overlapping r.
func (r Range) Periods(p Period) iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for d := r.From; !d.After(r.To); {
			period := p.Range(d)
			if !yield(period) {
				return
			}
			d = period.To.Add(1)
		}
	}
}

// Key names the period r is: 2024-03, 2024-Q1 or 2024. Other ranges are
// named by their ends.
func (r Range) Key() string {
	for _, p := range []Period{Monthly, Quarterly, Yearly} {
		if p.Range(r.From) != r {
			continue
		}
		switch p {
		case Monthly:
			return r.From.Format("2006-01")
		case Quarterly:
			return fmt.Sprintf("%d-Q%d", r.From.Year(), (r.From.Month()-1)/3+1)
		default:
			return r.From.Format("2006")
		}
	}
	return fmt.Sprintf("%s_%s", r.From, r.To)
}
