package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"hubgraph/reconcile"
	"hubgraph/state"
	"hubgraph/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for job requests that cannot be started
var ErrInvalidRequest = errors.New("invalid job request")

// ErrShuttingDown is returned once Shutdown has been called
var ErrShuttingDown = errors.New("runner is shutting down")

// HubSource is the hub back-end as seen by the runner
type HubSource interface {
	reconcile.Source
	StartSession(ctx context.Context, filename string, file io.Reader, sessionID string) (types.SessionResponse, error)
	ExpandNode(ctx context.Context, nodeID string) ([]types.Item, error)
}

// Config holds the defaults applied to every job
type Config struct {
	Target       int
	ShrinkPolicy reconcile.ShrinkPolicy
	Loop         reconcile.Options
	// Sinks receive every job's progress in addition to the state manager
	Sinks  []reconcile.Sink
	Logger *zap.Logger
}

// Runner starts and stops reconciliation jobs
type Runner struct {
	stateManager *state.Manager
	source       HubSource
	cfg          Config
	logger       *zap.Logger

	// loops run under ctx so Shutdown can abort in-flight fetches
	ctx    context.Context
	cancel context.CancelFunc
	newID  func() string
}

// NewRunner creates a new workflow runner
func NewRunner(stateManager *state.Manager, source HubSource, cfg Config) *Runner {
	if cfg.Target <= 0 {
		cfg.Target = reconcile.DefaultTarget
	}
	if cfg.ShrinkPolicy == "" {
		cfg.ShrinkPolicy = reconcile.ShrinkAbort
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		stateManager: stateManager,
		source:       source,
		cfg:          cfg,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		newID:        func() string { return uuid.New().String() },
	}
}

// StartJob registers a job for req and starts its loop in the background
func (r *Runner) StartJob(req types.JobRequest) (string, error) {
	loop, err := r.newJob(req)
	if err != nil {
		return "", err
	}
	loop.Start(r.ctx)
	return loop.JobID(), nil
}

// RunJob registers a job and polls it on the calling goroutine until it terminates
func (r *Runner) RunJob(ctx context.Context, req types.JobRequest) (reconcile.Result, error) {
	loop, err := r.newJob(req)
	if err != nil {
		return reconcile.Result{}, err
	}
	return loop.Run(ctx), nil
}

func (r *Runner) newJob(req types.JobRequest) (*reconcile.Loop, error) {
	if r.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}
	if req.HubID == "" {
		return nil, fmt.Errorf("%w: hub_id is required", ErrInvalidRequest)
	}
	if req.Target < 0 || req.IntervalMS < 0 {
		return nil, fmt.Errorf("%w: target and interval_ms must not be negative", ErrInvalidRequest)
	}

	target := req.Target
	if target == 0 {
		target = r.cfg.Target
	}
	opts := r.cfg.Loop
	if req.IntervalMS > 0 {
		opts.Interval = time.Duration(req.IntervalMS) * time.Millisecond
	}
	opts.Logger = r.logger
	opts.Sink = append(reconcile.MultiSink{r.stateManager}, r.cfg.Sinks...)

	jobID := r.newID()
	loop := reconcile.NewLoop(jobID, reconcile.NewSession(req.HubID, target, r.cfg.ShrinkPolicy), r.source, opts)
	if err := r.stateManager.Register(loop); err != nil {
		return nil, err
	}

	r.logger.Info("job created",
		zap.String("job_id", jobID),
		zap.String("hub_id", req.HubID),
		zap.Int("target", target))
	return loop, nil
}

// StartFromUpload creates an upstream session from an uploaded document and starts a job
// for the hub it returns
func (r *Runner) StartFromUpload(ctx context.Context, filename string, file io.Reader, sessionID string, target int) (types.SessionResponse, string, error) {
	resp, err := r.source.StartSession(ctx, filename, file, sessionID)
	if err != nil {
		return types.SessionResponse{}, "", fmt.Errorf("start session: %w", err)
	}

	jobID, err := r.StartJob(types.JobRequest{HubID: resp.Hub, Target: target})
	if err != nil {
		return resp, "", err
	}
	r.stateManager.AddLog(jobID, fmt.Sprintf("Session %s started from %s", resp.Session, filename))
	return resp, jobID, nil
}

// CancelJob signals the job's stop token
func (r *Runner) CancelJob(jobID string) error {
	return r.stateManager.Cancel(jobID)
}

// Expand requests follow-up items for a filled node
func (r *Runner) Expand(ctx context.Context, nodeID string) ([]types.Item, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrInvalidRequest)
	}
	items, err := r.source.ExpandNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("expand node %s: %w", nodeID, err)
	}
	return items, nil
}

// Shutdown stops every running job and waits for the loops to finish. If ctx expires first,
// in-flight fetches are cancelled.
func (r *Runner) Shutdown(ctx context.Context) error {
	loops := r.stateManager.Loops()
	for _, l := range loops {
		l.Stop()
	}
	defer r.cancel()

	for _, l := range loops {
		if _, err := l.Wait(ctx); err != nil {
			r.cancel()
			return fmt.Errorf("waiting for job %s: %w", l.JobID(), err)
		}
	}
	r.logger.Info("all jobs stopped", zap.Int("jobs", len(loops)))
	return nil
}
