// Package scheduler implements recurring assistant tasks: schedule parsing,
// the task runner loop, and retry handling.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/capitalize-ai/mission-control/internal/model"
)

// presetExpressions maps named schedule presets to cron expressions. Presets
// and raw expressions share one parsing path.
var presetExpressions = map[model.SchedulePreset]string{
	model.PresetHourly:  "0 * * * *",
	model.PresetDaily:   "0 0 * * *",
	model.PresetWeekly:  "0 0 * * 0",
	model.PresetMonthly: "0 0 1 * *",
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ResolveSchedule normalizes a schedule string: preset names become their
// cron expressions, raw expressions pass through.
func ResolveSchedule(schedule string) string {
	if expr, ok := presetExpressions[model.SchedulePreset(schedule)]; ok {
		return expr
	}
	return schedule
}

// ValidateSchedule reports whether a schedule is a known preset or a parsable
// cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cronParser.Parse(ResolveSchedule(schedule)); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// NextRun computes the first run time strictly after the given instant.
func NextRun(schedule string, after time.Time) (time.Time, error) {
	parsed, err := cronParser.Parse(ResolveSchedule(schedule))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return parsed.Next(after), nil
}

// retryDelay computes the wait before retry attempt n (1-based) under a
// policy: base * multiplier^(n-1).
func retryDelay(policy model.RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= policy.Multiplier
	}
	return time.Duration(delay)
}
