package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronDescription provides human-readable information about a cron expression.
type CronDescription struct {
	Expression  string
	Description string
	NextRuns    []time.Time
	TimeZone    string
}

// NewCronParser returns the parser used for cron schedules: six fields
// with seconds first, plus the @every and @daily style descriptors.
func NewCronParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateCron reports whether expr is a valid cron expression with at
// least one future activation.
func ValidateCron(expr string) error {
	sched, err := NewCronParser().Parse(expr)
	if err != nil {
		return err
	}
	if sched.Next(time.Now()).IsZero() {
		return fmt.Errorf("cron expression %q has no future activation", expr)
	}
	return nil
}

// DescribeCron returns the next n activations of expr after from.
func DescribeCron(expr string, from time.Time, n int) (CronDescription, error) {
	sched, err := NewCronParser().Parse(expr)
	if err != nil {
		return CronDescription{}, fmt.Errorf("invalid cron expression: %w", err)
	}

	nextRuns := make([]time.Time, 0, n)
	current := from
	for i := 0; i < n; i++ {
		current = sched.Next(current)
		if current.IsZero() {
			break
		}
		nextRuns = append(nextRuns, current)
	}

	return CronDescription{
		Expression:  expr,
		Description: describeCron(expr),
		NextRuns:    nextRuns,
		TimeZone:    from.Location().String(),
	}, nil
}

func describeCron(expr string) string {
	switch expr {
	case "@yearly", "@annually":
		return "Once a year (January 1st at midnight)"
	case "@monthly":
		return "Once a month (1st day at midnight)"
	case "@weekly":
		return "Once a week (Sunday at midnight)"
	case "@daily", "@midnight":
		return "Once a day (at midnight)"
	case "@hourly":
		return "Once an hour (at minute 0)"
	}
	return fmt.Sprintf("Custom schedule: %s", expr)
}

// cronSchedule adapts a cron.Schedule to task.Schedule in a fixed location.
type cronSchedule struct {
	sched    cron.Schedule
	location *time.Location
}

func (c cronSchedule) Next(prev time.Time) time.Time {
	return c.sched.Next(prev.In(c.location))
}
