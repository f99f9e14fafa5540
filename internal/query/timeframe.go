package query

import (
	"fmt"
	"strings"
	"time"
)

// ResolveTimeframe translates a relative phrase of the shape
// {this|last}-{week|month|quarter|half|year} into an inclusive [from, to]
// window anchored at now. Weeks start on Sunday. The "half" window is
// quarter-boundary-aligned minus three months, not calendar-half-aligned;
// downstream query semantics depend on this exact definition.
func ResolveTimeframe(phrase string, now time.Time) (time.Time, time.Time, error) {
	rel, gran, ok := strings.Cut(strings.ToLower(strings.TrimSpace(phrase)), "-")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("want {this|last}-{week|month|quarter|half|year}")
	}

	start, length, err := periodOf(gran, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch rel {
	case "this":
		return start, midnight(now), nil
	case "last":
		from := start.AddDate(-length.years, -length.months, -length.days)
		to := from.AddDate(length.years, length.months, length.days).AddDate(0, 0, -1)
		return from, to, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", rel)
	}
}

type periodLength struct {
	years, months, days int
}

// periodOf returns the start of the current period for the granularity and
// the period's length.
func periodOf(gran string, now time.Time) (time.Time, periodLength, error) {
	switch gran {
	case "week":
		start := midnight(now).AddDate(0, 0, -int(now.Weekday()))
		return start, periodLength{days: 7}, nil
	case "month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, periodLength{months: 1}, nil
	case "quarter":
		return quarterStart(now), periodLength{months: 3}, nil
	case "half":
		// quarter boundary shifted back one quarter, kept as-is
		return quarterStart(now).AddDate(0, -3, 0), periodLength{months: 6}, nil
	case "year":
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return start, periodLength{years: 1}, nil
	default:
		return time.Time{}, periodLength{}, fmt.Errorf("unknown granularity %q", gran)
	}
}

func quarterStart(now time.Time) time.Time {
	qm := time.Month((int(now.Month())-1)/3*3 + 1)
	return time.Date(now.Year(), qm, 1, 0, 0, 0, 0, now.Location())
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
