package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/semaphore"

	"github.com/lumio-labs/lumiod/internal/metrics"
)

// VerdictSource performs a single non-blocking check of whether a
// previously submitted request has a result yet. Implemented by the
// oracle client.
type VerdictSource interface {
	FetchVerdict(ctx context.Context, requestID string) FetchOutcome
}

// VerdictEnforcer applies a verdict to one request. Implemented by the
// platform enforcers.
type VerdictEnforcer interface {
	Enforce(ctx context.Context, verdict Verdict, req PendingRequest)
}

// Poller drives the recurring sweep over the ledger: for each
// outstanding entry it asks the oracle whether a verdict is ready and,
// if so, dispatches it to the matching platform enforcer and removes
// the entry.
//
// Sweeps never overlap (an overdue tick is skipped, not queued), and a
// per-request in-flight guard ensures a slow fetch+enforce task never
// gets a second task started for the same request id by a later sweep.
type Poller struct {
	ledger    *Ledger
	source    VerdictSource
	enforcers map[Platform]VerdictEnforcer
	logger    *slog.Logger
	interval  time.Duration

	// sem bounds the fan-out of concurrent per-entry tasks.
	sem *semaphore.Weighted

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	mu        sync.Mutex
	scheduler gocron.Scheduler
	running   bool
	baseCtx   context.Context
}

// NewPoller creates a verdict poller sweeping the ledger at the given
// interval with at most maxConcurrent in-flight per-entry tasks.
func NewPoller(
	ledger *Ledger,
	source VerdictSource,
	enforcers map[Platform]VerdictEnforcer,
	interval time.Duration,
	maxConcurrent int64,
	logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Poller{
		ledger:    ledger,
		source:    source,
		enforcers: enforcers,
		logger:    logger.With("component", "verdict_poller"),
		interval:  interval,
		sem:       semaphore.NewWeighted(maxConcurrent),
		inflight:  make(map[string]struct{}),
	}
}

// Start schedules the recurring sweep. The provided context is the base
// context for all per-entry tasks; cancelling it stops in-flight work.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("verdict poller is already running")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	p.baseCtx = ctx

	_, err = s.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(p.runSweep),
		gocron.WithName("verdict_sweep"),
		// If a sweep is still running when the next tick fires, the
		// tick is skipped, not queued.
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule verdict sweep: %w", err)
	}

	s.Start()
	p.scheduler = s
	p.running = true
	p.logger.Info("Verdict poller started", "interval", p.interval)
	return nil
}

// Stop gracefully stops the sweep scheduler. Dispatched per-entry tasks
// finish under the base context.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	err := p.scheduler.Shutdown()
	p.running = false
	if err != nil {
		p.logger.Error("Error during poller shutdown", "error", err)
		return err
	}
	p.logger.Info("Verdict poller stopped")
	return nil
}

func (p *Poller) runSweep() {
	p.Sweep(p.baseCtx)
}

// Sweep runs one sweep cycle over a snapshot of the ledger. Per-entry
// fetch+enforce tasks are dispatched concurrently (bounded fan-out);
// the sweep returns once all tasks for this cycle have been dispatched,
// without waiting for enforcement to finish.
func (p *Poller) Sweep(ctx context.Context) {
	entries := p.ledger.Snapshot()
	if len(entries) == 0 {
		return
	}

	startTime := time.Now()
	p.logger.DebugContext(ctx, "Sweeping pending moderation requests", "count", len(entries))

	dispatched := 0
	for _, entry := range entries {
		if !p.markInflight(entry.RequestID) {
			// A task from a previous sweep is still working this id.
			continue
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.clearInflight(entry.RequestID)
			p.logger.WarnContext(ctx, "Sweep cancelled while waiting for fan-out slot", "error", err)
			break
		}

		dispatched++
		go func(req PendingRequest) {
			defer p.sem.Release(1)
			defer p.clearInflight(req.RequestID)
			p.process(ctx, req)
		}(entry)
	}

	metrics.SweepDuration.Observe(time.Since(startTime).Seconds())
	p.logger.DebugContext(ctx, "Sweep dispatched", "dispatched", dispatched, "duration", time.Since(startTime))
}

// process handles one ledger entry: fetch the verdict and act on the
// tagged outcome.
func (p *Poller) process(ctx context.Context, req PendingRequest) {
	log := p.logger.With("request_id", req.RequestID, "platform", string(req.Platform))

	outcome := p.source.FetchVerdict(ctx, req.RequestID)
	switch outcome.State {
	case FetchPending:
		// Normal "still waiting" state; the entry stays for the next
		// sweep.
		log.DebugContext(ctx, "Verdict not ready yet")

	case FetchFailed:
		// Definite error: drop the entry so a permanently failing
		// request is not retried forever.
		metrics.FetchErrorsTotal.Inc()
		log.WarnContext(ctx, "Verdict fetch failed, dropping request", "error", outcome.Err)
		p.ledger.Remove(req.RequestID)

	case FetchReady:
		metrics.VerdictsTotal.WithLabelValues(string(outcome.Verdict.Decision)).Inc()
		log.InfoContext(ctx, "Verdict received",
			"decision", string(outcome.Verdict.Decision), "reason", outcome.Verdict.Reason)

		enforcer, ok := p.enforcers[req.Platform]
		if !ok {
			log.ErrorContext(ctx, "No enforcer registered for platform, dropping request")
			p.ledger.Remove(req.RequestID)
			return
		}

		enforcer.Enforce(ctx, outcome.Verdict, req)
		p.ledger.Remove(req.RequestID)
	}
}

func (p *Poller) markInflight(requestID string) bool {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()

	if _, exists := p.inflight[requestID]; exists {
		return false
	}
	p.inflight[requestID] = struct{}{}
	return true
}

func (p *Poller) clearInflight(requestID string) {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()

	delete(p.inflight, requestID)
}
