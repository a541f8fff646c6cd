package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"hubgraph/common"
	"hubgraph/reconcile"
	"hubgraph/types"

	"go.uber.org/zap"
)

// ErrNotArchived is returned by Load when no archive exists for a job
var ErrNotArchived = errors.New("job not archived")

// ObjectStore is the subset of *common.S3 used by ArchiveSink
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ArchiveSink uploads the final status of every job to object storage, so results survive
// the registry's retention sweep.
type ArchiveSink struct {
	store   ObjectStore
	bucket  string
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewArchiveSink creates a sink writing to bucket under prefix
func NewArchiveSink(store ObjectStore, bucket, prefix string, logger *zap.Logger) *ArchiveSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSink{
		store:   store,
		bucket:  bucket,
		prefix:  prefix,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// Key returns the object key of a job's archive
func (a *ArchiveSink) Key(jobID string) string {
	return path.Join(a.prefix, "jobs", jobID+".json")
}

// Observe is a no-op; only final results are archived
func (a *ArchiveSink) Observe(string, types.PoolSnapshot) {}

func (a *ArchiveSink) Terminated(jobID string, res reconcile.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.Store(ctx, statusFromResult(jobID, res)); err != nil {
		a.logger.Warn("failed to archive job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	a.logger.Info("job archived", zap.String("job_id", jobID), zap.String("key", a.Key(jobID)))
}

// Store uploads a job status as JSON
func (a *ArchiveSink) Store(ctx context.Context, status types.JobStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", status.JobID, err)
	}
	if err := a.store.Put(ctx, a.bucket, a.Key(status.JobID), bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("failed to upload job %s: %w", status.JobID, err)
	}
	return nil
}

// Load reads an archived job status
func (a *ArchiveSink) Load(ctx context.Context, jobID string) (types.JobStatus, error) {
	rc, err := a.store.Get(ctx, a.bucket, a.Key(jobID))
	if err != nil {
		if common.IsNotFound(err) {
			return types.JobStatus{}, fmt.Errorf("%w: %s", ErrNotArchived, jobID)
		}
		return types.JobStatus{}, fmt.Errorf("failed to fetch archive of job %s: %w", jobID, err)
	}
	defer rc.Close()

	var status types.JobStatus
	if err := json.NewDecoder(rc).Decode(&status); err != nil {
		return types.JobStatus{}, fmt.Errorf("failed to decode archive of job %s: %w", jobID, err)
	}
	return status, nil
}

func statusFromResult(jobID string, res reconcile.Result) types.JobStatus {
	snap := res.Snapshot
	finished := res.FinishedAt
	st := types.JobStatus{
		JobID:      jobID,
		HubID:      snap.HubID,
		Target:     snap.Size,
		State:      types.StateTerminated,
		Outcome:    res.Outcome,
		Ticks:      res.Ticks,
		CreatedAt:  res.StartedAt,
		FinishedAt: &finished,
		Snapshot:   &snap,
		Logs:       []types.LogEntry{},
	}
	if res.Err != nil {
		st.Error = res.Err.Error()
	}
	return st
}
