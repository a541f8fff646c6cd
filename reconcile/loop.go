package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hubgraph/types"

	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"
)

const (
	// DefaultTarget is the number of slots a job waits for when none is given
	DefaultTarget = 5
	// DefaultInterval is the wait between the end of one tick and the next fetch
	DefaultInterval = 5 * time.Second
	// DefaultFetchTimeout bounds a single fetch
	DefaultFetchTimeout = 10 * time.Second
)

// ErrCancelled is the cause recorded when a loop ends through Stop or context cancellation
var ErrCancelled = errors.New("reconcile loop cancelled")

// Source returns the full cumulative list of items produced so far for a hub
type Source interface {
	FetchItems(ctx context.Context, hubID string) ([]types.Item, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, hubID string) ([]types.Item, error)

func (f SourceFunc) FetchItems(ctx context.Context, hubID string) ([]types.Item, error) {
	return f(ctx, hubID)
}

// Options configures a Loop
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Retry        RetryPolicy
	Sink         Sink
	Logger       *zap.Logger
}

// Result is the terminal report of a loop
type Result struct {
	Outcome    types.Outcome
	Err        error
	Ticks      int
	Snapshot   types.PoolSnapshot
	StartedAt  time.Time
	FinishedAt time.Time
}

// Success reports whether the target count was reached
func (r Result) Success() bool {
	return r.Outcome == types.OutcomeSuccess
}

// Loop polls a Source and feeds each snapshot into a Session until the target count is
// reached, a fetch fails, or Stop is called. Ticks never overlap: the next poll is scheduled
// only after the previous one has been assigned and reported.
type Loop struct {
	jobID   string
	session *Session
	source  Source
	opts    Options
	retrier *retrier.Retrier
	logger  *zap.Logger

	mu     sync.RWMutex
	state  types.LoopState
	ticks  int
	result *Result

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop creates an idle loop; call Run or Start to begin polling
func NewLoop(jobID string, session *Session, source Source, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		jobID:   jobID,
		session: session,
		source:  source,
		opts:    opts,
		retrier: opts.Retry.newRetrier(),
		logger:  logger.With(zap.String("job_id", jobID), zap.String("hub_id", session.HubID())),
		state:   types.StateIdle,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the loop on its own goroutine
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Run polls until the loop terminates and returns the result. A second call waits for the
// first to finish and returns the same result.
func (l *Loop) Run(ctx context.Context) Result {
	if !l.started.CompareAndSwap(false, true) {
		<-l.done
		res, _ := l.Result()
		return res
	}
	defer close(l.done)

	startedAt := time.Now()
	l.logger.Info("reconcile loop started",
		zap.Int("target", l.session.Target()),
		zap.Duration("interval", l.opts.Interval))

	for {
		if l.session.Complete() {
			return l.finish(startedAt, types.OutcomeSuccess, nil)
		}
		if err := l.cancelled(ctx); err != nil {
			return l.finish(startedAt, types.OutcomeAborted, err)
		}

		if err := l.tick(ctx); err != nil {
			if cerr := l.cancelled(ctx); cerr != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
					err = cerr
				} else {
					err = fmt.Errorf("%w: %w", cerr, err)
				}
			}
			return l.finish(startedAt, types.OutcomeAborted, err)
		}

		l.setState(types.StateEvaluatingStop)
		if l.session.Complete() {
			return l.finish(startedAt, types.OutcomeSuccess, nil)
		}

		// the stop token is checked before arming the next tick
		if err := l.cancelled(ctx); err != nil {
			return l.finish(startedAt, types.OutcomeAborted, err)
		}
		timer := time.NewTimer(l.opts.Interval)
		select {
		case <-timer.C:
		case <-l.stop:
			timer.Stop()
			return l.finish(startedAt, types.OutcomeAborted, ErrCancelled)
		case <-ctx.Done():
			timer.Stop()
			return l.finish(startedAt, types.OutcomeAborted, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
		}
	}
}

// tick performs one fetch → extract → assign → observe step
func (l *Loop) tick(ctx context.Context) error {
	l.mu.Lock()
	l.state = types.StatePolling
	l.ticks++
	tick := l.ticks
	l.mu.Unlock()

	items, err := l.fetch(ctx)
	if err != nil {
		l.logger.Warn("fetch failed", zap.Int("tick", tick), zap.Error(err))
		return err
	}

	l.setState(types.StateExtracting)
	delta, err := l.session.advance(items)
	if err != nil {
		l.logger.Warn("snapshot rejected", zap.Int("tick", tick), zap.Int("reported", len(items)), zap.Error(err))
		return err
	}

	l.setState(types.StateAssigning)
	droppedBefore := l.session.Pool().Dropped()
	filled := l.session.Pool().Assign(delta)
	if dropped := l.session.Pool().Dropped() - droppedBefore; dropped > 0 {
		l.logger.Debug("pool exhausted, dropping items", zap.Int("tick", tick), zap.Int("dropped", dropped))
	}

	snap := l.session.Snapshot()
	l.logger.Debug("tick committed",
		zap.Int("tick", tick),
		zap.Int("new_items", len(delta)),
		zap.Int("filled_now", filled),
		zap.Int("filled_total", snap.Filled))
	l.opts.Sink.Observe(l.jobID, snap)
	return nil
}

// fetch calls the source with a per-attempt timeout, retrying per the retry policy.
// Stop never interrupts an attempt already in flight, but no retry starts after it.
func (l *Loop) fetch(ctx context.Context) ([]types.Item, error) {
	var items []types.Item
	attempts := 0
	work := func(context.Context) error {
		if attempts > 0 && l.stopped() {
			return ErrCancelled
		}
		attempts++

		fctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
		defer cancel()

		got, err := l.source.FetchItems(fctx, l.session.HubID())
		if err != nil {
			return classify(ctx, err)
		}
		items = got
		return nil
	}

	if l.retrier == nil {
		return items, work(ctx)
	}

	// backoff waits end as soon as the stop token is closed
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-rctx.Done():
		}
	}()
	return items, l.retrier.RunCtx(rctx, work)
}

// classify maps arbitrary source errors onto the two source failure kinds
func classify(parent context.Context, err error) error {
	switch {
	case errors.Is(err, types.ErrSourceUnavailable), errors.Is(err, types.ErrSourceProtocol):
		return err
	case parent.Err() != nil:
		return err
	default:
		// includes the per-fetch deadline expiring
		return fmt.Errorf("%w: %w", types.ErrSourceUnavailable, err)
	}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// cancelled returns a non-nil cause once Stop was called or ctx is done
func (l *Loop) cancelled(ctx context.Context) error {
	if l.stopped() {
		return ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

func (l *Loop) finish(startedAt time.Time, outcome types.Outcome, err error) Result {
	res := Result{
		Outcome:    outcome,
		Err:        err,
		Ticks:      l.Ticks(),
		Snapshot:   l.session.Snapshot(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}

	l.mu.Lock()
	l.state = types.StateTerminated
	l.result = &res
	l.mu.Unlock()

	fields := []zap.Field{
		zap.String("outcome", string(outcome)),
		zap.Int("ticks", res.Ticks),
		zap.Int("filled", res.Snapshot.Filled),
		zap.Duration("elapsed", res.FinishedAt.Sub(startedAt)),
	}
	if err != nil {
		l.logger.Warn("reconcile loop stopped early", append(fields, zap.Error(err))...)
	} else {
		l.logger.Info("reconcile loop complete", fields...)
	}

	l.opts.Sink.Terminated(l.jobID, res)
	return res
}

func (l *Loop) setState(s types.LoopState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Stop prevents any further tick from being scheduled. A fetch already in flight completes
// and its items are still assigned.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once the loop has terminated and the sink was notified
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the loop terminates or ctx is done
func (l *Loop) Wait(ctx context.Context) (Result, error) {
	select {
	case <-l.done:
		res, _ := l.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the terminal result once available
func (l *Loop) Result() (Result, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.result == nil {
		return Result{}, false
	}
	return *l.result, true
}

// State returns the current state machine position
func (l *Loop) State() types.LoopState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Ticks returns how many polls have been started
func (l *Loop) Ticks() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ticks
}

// JobID returns the job identifier the loop reports under
func (l *Loop) JobID() string { return l.jobID }

// Session returns the session driven by the loop
func (l *Loop) Session() *Session { return l.session }
