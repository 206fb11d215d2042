// Package cronexpr evaluates classic 5-field cron expressions against a
// single instant, exposing a stateless matches/activeWindow pair instead of
// robfig/cron's "next occurrence" search.
package cronexpr

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// fieldMask restricts the parser to the traditional 5 fields; seconds and
// the optional descriptor shorthand ("@daily") are rejected so InvalidCron
// catches anything not minute/hour/dom/month/dow.
const fieldMask = cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow

// fieldNames indexes the 5 standard fields in order, used only to label a
// recovered Field index in error messages.
var fieldNames = [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

var parser = cron.NewParser(fieldMask)

// InvalidCronError reports a parse failure for a cron expression. robfig/cron
// does not itself report which field failed, so Field is recovered by
// re-splitting expr into its 5 fields and re-validating each in isolation
// (every other field pinned to "*"); Field is -1 when the failure can't be
// isolated this way (wrong field count, or a combination-only failure).
type InvalidCronError struct {
	Expr  string
	Field int
	Err   error
}

func (e *InvalidCronError) Error() string {
	if e.Field >= 0 && e.Field < len(fieldNames) {
		return fmt.Sprintf("invalid cron expression %q: field %d (%s): %v", e.Expr, e.Field, fieldNames[e.Field], e.Err)
	}
	return fmt.Sprintf("invalid cron expression %q: %v", e.Expr, e.Err)
}

func (e *InvalidCronError) Unwrap() error {
	return e.Err
}

// diagnose recovers which of the 5 fields caused parseErr by substituting
// "*" into every field but one and re-parsing; the first isolated field that
// still fails to parse is reported as the culprit.
func diagnose(expr string, parseErr error) *InvalidCronError {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return &InvalidCronError{Expr: expr, Field: -1, Err: parseErr}
	}
	for i, f := range fields {
		candidate := [5]string{"*", "*", "*", "*", "*"}
		candidate[i] = f
		if _, err := parser.Parse(strings.Join(candidate[:], " ")); err != nil {
			return &InvalidCronError{Expr: expr, Field: i, Err: err}
		}
	}
	return &InvalidCronError{Expr: expr, Field: -1, Err: parseErr}
}

// Parse validates expr eagerly, so callers (freezeschedule.NewSchedule) can reject bad
// input at write time instead of at every IsActive evaluation.
func Parse(expr string) error {
	_, err := parser.Parse(expr)
	if err != nil {
		return diagnose(expr, err)
	}
	return nil
}

// Matches reports whether instant, projected into tz, falls inside the
// one-minute window the cron expression fires for. Day-of-month and
// day-of-week are OR-combined when both are restricted, matching
// traditional cron and robfig/cron/v3's default ParseOption semantics.
func Matches(expr string, instant time.Time, tz string) (bool, error) {
	start, end, err := ActiveWindow(expr, instant, tz)
	if err != nil {
		return false, err
	}
	if start.IsZero() {
		return false, nil
	}
	t := instantIn(instant, tz)
	return !t.Before(start) && t.Before(end), nil
}

// ActiveWindow returns the minute-aligned [start, start+1min) window that
// contains instant if the expression matches it; a zero start time means no
// match. The window bounds are in the same location as instant was
// projected into (tz, falling back to UTC on an unknown zone).
func ActiveWindow(expr string, instant time.Time, tz string) (start, end time.Time, err error) {
	sched, perr := parser.Parse(expr)
	if perr != nil {
		return time.Time{}, time.Time{}, diagnose(expr, perr)
	}

	t := instantIn(instant, tz)
	minuteFloor := t.Truncate(time.Minute)

	// cron.SpecSchedule.Next is exclusive of its argument, so probing from
	// one minute before the floor catches a match that starts exactly at it.
	candidate := sched.Next(minuteFloor.Add(-time.Minute))
	if candidate.Equal(minuteFloor) {
		return minuteFloor, minuteFloor.Add(time.Minute), nil
	}
	return time.Time{}, time.Time{}, nil
}

func instantIn(instant time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	return instant.In(loc)
}
