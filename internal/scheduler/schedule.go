// Package scheduler fires due tasks: a periodic tick loads tasks whose next
// run has arrived, publishes a reminder on the bus, and advances or retires
// the task's schedule.
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// isoLayouts are the accepted one-shot datetime forms. Values without an
// offset are taken as UTC.
var isoLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NextRun computes the next firing strictly after the given instant. A
// schedule is either an RRULE string ("RRULE:FREQ=DAILY;BYHOUR=9") or an
// ISO-8601 datetime for a one-shot task. It returns nil when the schedule
// produces no future run, and an error when the schedule cannot be parsed.
func NextRun(schedule string, after time.Time) (*time.Time, error) {
	schedule = strings.TrimSpace(schedule)
	after = after.UTC()

	if strings.HasPrefix(strings.ToUpper(schedule), "RRULE:") {
		opt, err := rrule.StrToROption(schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule format: %s", schedule)
		}
		if opt.Dtstart.IsZero() {
			opt.Dtstart = after
		}
		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule format: %s", schedule)
		}
		next := rule.After(after, false)
		if next.IsZero() {
			return nil, nil
		}
		next = next.UTC()
		return &next, nil
	}

	if at, err := time.Parse(time.RFC3339, schedule); err == nil {
		return futureOrNil(at.UTC(), after), nil
	}
	for _, layout := range isoLayouts {
		if at, err := time.ParseInLocation(layout, schedule, time.UTC); err == nil {
			return futureOrNil(at, after), nil
		}
	}
	return nil, fmt.Errorf("invalid schedule format: %s", schedule)
}

func futureOrNil(at, after time.Time) *time.Time {
	if !at.After(after) {
		return nil
	}
	return &at
}
