package entity

import "time"

// DefaultTaskArgs holds the fallback values applied to task_args keys a
// caller omits, mirroring the original crawler's DEFAULT_TASK_PARAMS.
var DefaultTaskArgs = map[string]any{
	"max_retries":  3,
	"retry_delay":  2.0,
	"timeout":      15,
}

// Task is a single crawl run: the parameters it was invoked with, its
// current lifecycle state, and the progress/retry bookkeeping the runner
// maintains while it executes.
//
// Invariant: RetryCount <= task_args.max_retries at all times.
type Task struct {
	ID         int64
	CrawlerID  int64
	Status     TaskStatus
	ScrapeMode ScrapeMode
	TaskArgs   map[string]any

	RetryCount int
	MaxRetries int

	ScrapePhase    ScrapePhase
	ProgressPct    int
	ResultMessage  string
	ResultSuccess  bool
	PartialSaved   bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TaskHistory records one state transition of a Task for audit and replay.
type TaskHistory struct {
	ID        int64
	TaskID    int64
	FromState TaskStatus
	ToState   TaskStatus
	Message   string
	CreatedAt time.Time
}

// MergeTaskArgs deep-merges override into base using the two-level rule:
// nested maps are merged key-by-key recursively, scalars and slices are
// replaced wholesale. base is not mutated; the merged copy is returned.
func MergeTaskArgs(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range override {
		bv, exists := out[k]
		if !exists {
			out[k] = ov
			continue
		}
		bMap, bIsMap := bv.(map[string]any)
		oMap, oIsMap := ov.(map[string]any)
		if bIsMap && oIsMap {
			out[k] = MergeTaskArgs(bMap, oMap)
			continue
		}
		out[k] = ov
	}
	return out
}
