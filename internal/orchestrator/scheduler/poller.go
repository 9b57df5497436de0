package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dispatcher starts a new task run for a due crawler. Implementations
// (the Task Service Facade) own task creation and handing the run off
// to the Task Runner.
type Dispatcher interface {
	DispatchDue(ctx context.Context, crawlerID int64, triggerTime time.Time) error
}

// CrawlerLister supplies the crawler set FindDueTasks evaluates each
// tick.
type CrawlerLister interface {
	ListActiveSchedules(ctx context.Context) ([]CrawlerSchedule, error)
}

// Poller periodically evaluates every active crawler's cron schedule and
// dispatches the ones that are due, bounding concurrent dispatch with
// errgroup the way the fetch service bounds concurrent content fetches.
type Poller struct {
	Lister        CrawlerLister
	Dispatcher    Dispatcher
	PollInterval  time.Duration
	MaxConcurrent int
	Now           func() time.Time
}

// NewPoller builds a Poller with sane defaults for interval/concurrency.
func NewPoller(lister CrawlerLister, dispatcher Dispatcher) *Poller {
	return &Poller{
		Lister:        lister,
		Dispatcher:    dispatcher,
		PollInterval:  30 * time.Second,
		MaxConcurrent: 4,
		Now:           time.Now,
	}
}

// Run blocks, ticking every PollInterval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				slog.Error("scheduler tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick runs one due-task evaluation and dispatch pass.
func (p *Poller) Tick(ctx context.Context) error {
	schedules, err := p.Lister.ListActiveSchedules(ctx)
	if err != nil {
		return err
	}

	now := p.Now()
	due, err := FindDueTasks(schedules, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, max1(p.MaxConcurrent))

	for _, d := range due {
		d := d
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := p.Dispatcher.DispatchDue(egCtx, d.CrawlerID, d.TriggerTime); err != nil {
				slog.Error("dispatch due task failed",
					slog.Int64("crawler_id", d.CrawlerID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	return eg.Wait()
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
