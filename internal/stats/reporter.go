package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/neoclaw-ai/teledispatch/internal/logging"
)

// Snapshot is one report of the counter.
type Snapshot struct {
	At        time.Time
	Total     uint64
	SinceLast uint64
}

// ReportFunc receives each snapshot.
type ReportFunc func(ctx context.Context, s Snapshot)

func logReport(_ context.Context, s Snapshot) {
	logging.Logger().Info("processed messages", "total", s.Total, "since_last", s.SinceLast)
}

// Reporter periodically reports a Counter.
type Reporter struct {
	counter  *Counter
	schedule string
	report   ReportFunc
	cron     *cron.Cron

	mu      sync.Mutex
	last    uint64
	started bool
}

// NewReporter creates a reporter for counter on a standard cron schedule
// ("@every 1h", "0 9 * * *"). A nil report logs each snapshot at info level.
func NewReporter(counter *Counter, schedule string, report ReportFunc) *Reporter {
	if report == nil {
		report = logReport
	}
	return &Reporter{
		counter:  counter,
		schedule: schedule,
		report:   report,
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start registers the report job and starts cron execution.
func (r *Reporter) Start(ctx context.Context) error {
	if r.counter == nil {
		return errors.New("counter is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("reporter already started")
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.ReportNow(ctx)
	}); err != nil {
		return fmt.Errorf("register report schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.started = true
	logging.Logger().Info("stats reporter started", "schedule", r.schedule)
	return nil
}

// Stop stops cron and waits for an in-flight report to finish or ctx cancellation.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	doneCtx := r.cron.Stop()
	select {
	case <-doneCtx.Done():
		logging.Logger().Info("stats reporter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportNow reports the counter immediately and returns the snapshot.
func (r *Reporter) ReportNow(ctx context.Context) Snapshot {
	total := r.counter.Load()

	r.mu.Lock()
	since := total - r.last
	r.last = total
	r.mu.Unlock()

	s := Snapshot{At: time.Now(), Total: total, SinceLast: since}
	r.report(ctx, s)
	return s
}
