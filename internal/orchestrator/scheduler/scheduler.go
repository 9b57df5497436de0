// Package scheduler finds crawlers whose cron schedule is due to run
// and crawlers whose last run failed, driving the Task Service Facade
// to dispatch new task runs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// lookback bounds how far back prevTrigger searches for the most recent
// firing strictly before now. 367 days comfortably spans yearly cron
// expressions (e.g. "0 0 1 1 *") while staying a bounded, deterministic
// computation.
const lookback = 367 * 24 * time.Hour

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// PrevTrigger returns the most recent time strictly before now at which
// cronExpr would have fired, or the zero Time if cronExpr never fires
// within the lookback window.
//
// robfig/cron/v3 only exposes Schedule.Next(t), not croniter's prev(); this
// walks forward from now-lookback, repeatedly advancing to the next firing
// until the next candidate would be >= now, and returns the last candidate
// found before that point.
func PrevTrigger(cronExpr string, now time.Time) (time.Time, error) {
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("PrevTrigger: parse cron expression: %w", err)
	}

	cursor := now.Add(-lookback)
	var prev time.Time
	for {
		next := schedule.Next(cursor)
		if next.IsZero() || !next.Before(now) {
			return prev, nil
		}
		prev = next
		cursor = next
	}
}

// CrawlerSchedule is the minimal view of a Crawler the due-task finder
// needs.
type CrawlerSchedule struct {
	CrawlerID      int64
	CronExpression string
	LastRunAt      *time.Time
	Active         bool
}

// DueResult names a crawler whose cron schedule has a trigger time that
// LastRunAt has not yet reached.
type DueResult struct {
	CrawlerID   int64
	TriggerTime time.Time
}

// FindDueTasks evaluates every active crawler's schedule against now and
// returns the ones that are due: those whose most recent trigger time is
// at or after now's bound, LastRunAt is nil, or LastRunAt is strictly
// before the computed trigger. A crawler is NOT due if LastRunAt is at
// or after its prevTrigger — it has already run for that slot.
func FindDueTasks(crawlers []CrawlerSchedule, now time.Time) ([]DueResult, error) {
	var due []DueResult
	for _, c := range crawlers {
		if !c.Active || c.CronExpression == "" {
			continue
		}
		trigger, err := PrevTrigger(c.CronExpression, now)
		if err != nil {
			return nil, fmt.Errorf("FindDueTasks: crawler %d: %w", c.CrawlerID, err)
		}
		if trigger.IsZero() {
			continue
		}
		if c.LastRunAt == nil || c.LastRunAt.Before(trigger) {
			due = append(due, DueResult{CrawlerID: c.CrawlerID, TriggerTime: trigger})
		}
	}
	return due, nil
}

// FailedTaskFinder abstracts the task-history query FindFailedTasks
// needs, kept separate from the repository package so the scheduler
// does not depend on the full facade surface.
type FailedTaskFinder interface {
	FindFailedSince(ctx context.Context, since time.Time) ([]int64, error)
}

// FindFailedTasks returns the IDs of tasks that failed within the last
// days days, for a retry sweep independent of the cron due-task path.
// Restricting to active crawlers is FailedTaskFinder's responsibility
// (see postgres.TaskRepo.FindFailedSince's join against crawlers.active).
func FindFailedTasks(ctx context.Context, finder FailedTaskFinder, now time.Time, days int) ([]int64, error) {
	if days <= 0 {
		days = 1
	}
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	ids, err := finder.FindFailedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("FindFailedTasks: %w", err)
	}
	return ids, nil
}
