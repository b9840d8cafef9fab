package rewards

import (
	"fmt"
	"time"
)

// Period is a calendar month in the settlement time zone.
type Period struct {
	Key   string    // YYYY-MM
	Start time.Time // inclusive
	End   time.Time // exclusive
}

// MonthOf returns the calendar month containing t in loc.
func MonthOf(t time.Time, loc *time.Location) Period {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return Period{
		Key:   start.Format("2006-01"),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// PreviousMonth returns the month before the one containing now.
func PreviousMonth(now time.Time, loc *time.Location) Period {
	current := MonthOf(now, loc)
	return MonthOf(current.Start.AddDate(0, -1, 0), loc)
}

// ParsePeriod parses a YYYY-MM key.
func ParsePeriod(key string, loc *time.Location) (Period, error) {
	t, err := time.ParseInLocation("2006-01", key, loc)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", key, err)
	}
	return MonthOf(t, loc), nil
}
