package reconcile

import (
	"context"
	"sync"
	"time"

	"campus_courier/internal/core"
	"campus_courier/pkg/telemetry"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pass is one named reconciliation unit, usually one cached collection.
// Services register their own passes so the reconciler never needs to know
// about tombstones or merge rules.
type Pass struct {
	Name string
	Run  func(ctx context.Context) error
}

// PassResult records the outcome of the last run of one pass.
type PassResult struct {
	Name        string
	Err         string
	CompletedAt time.Time
}

// Reconciler runs registered passes on a timer and on demand. Passes within
// one run execute concurrently; a run never overlaps itself.
type Reconciler struct {
	logger   core.ILogger
	interval time.Duration
	passes   []Pass

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	runMu  sync.Mutex
	nudge  chan struct{}

	statusMu sync.RWMutex
	lastID   string
	lastRun  time.Time
	results  []PassResult
}

func NewReconciler(logger core.ILogger, interval time.Duration) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		logger:   logger.WithField("component", "reconciler"),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		nudge:    make(chan struct{}, 1),
	}
}

// Register adds a pass. Call before Start.
func (r *Reconciler) Register(name string, run func(ctx context.Context) error) {
	r.passes = append(r.passes, Pass{Name: name, Run: run})
}

// Start begins the periodic loop.
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting reconciler", "interval", r.interval, "passes", len(r.passes))
	r.wg.Add(1)
	go r.runLoop()
	return nil
}

// Stop halts the loop and waits for an in-flight run.
func (r *Reconciler) Stop() error {
	r.logger.Info("Stopping reconciler")
	r.cancel()
	r.wg.Wait()
	return nil
}

// Nudge requests an immediate run, coalescing with any pending request.
// Order-event pushes and post-mutation cache failures land here.
func (r *Reconciler) Nudge() {
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

// Reconcile runs every registered pass once. Pass failures are isolated: one
// collection failing to sync does not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	runID := uuid.NewString()
	results := make([]PassResult, len(r.passes))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.passes {
		g.Go(func() error {
			err := p.Run(gctx)
			telemetry.GetGlobalMetrics().RecordReconcile(gctx, p.Name, err != nil)
			res := PassResult{Name: p.Name, CompletedAt: time.Now().UTC()}
			if err != nil {
				res.Err = err.Error()
				r.logger.Warn("Reconciliation pass failed", "id", runID, "pass", p.Name, "error", err)
			}
			results[i] = res
			// Failures are recorded, not propagated, so sibling passes finish.
			return nil
		})
	}
	_ = g.Wait()

	r.statusMu.Lock()
	r.lastID = runID
	r.lastRun = time.Now().UTC()
	r.results = results
	r.statusMu.Unlock()

	r.logger.Debug("Reconciliation run completed", "id", runID)
	return nil
}

// Status returns the last run's ID, time, and per-pass outcomes.
func (r *Reconciler) Status() (string, time.Time, []PassResult) {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	out := make([]PassResult, len(r.results))
	copy(out, r.results)
	return r.lastID, r.lastRun, out
}

func (r *Reconciler) runLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	run := func() {
		ctx, cancel := context.WithTimeout(r.ctx, 30*time.Second)
		if err := r.Reconcile(ctx); err != nil {
			r.logger.Error("Reconciliation failed", "error", err.Error())
		}
		cancel()
	}

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-r.nudge:
			run()
		}
	}
}
