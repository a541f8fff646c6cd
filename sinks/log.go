package sinks

import (
	"hubgraph/reconcile"
	"hubgraph/types"

	"go.uber.org/zap"
)

// LogSink writes one structured line per snapshot and per result
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging through logger
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Observe(jobID string, snap types.PoolSnapshot) {
	s.logger.Info("snapshot",
		zap.String("job_id", jobID),
		zap.String("hub_id", snap.HubID),
		zap.Int("filled", snap.Filled),
		zap.Int("size", snap.Size),
		zap.Int("cursor", snap.Cursor),
		zap.Int("dropped", snap.Dropped))
}

func (s *LogSink) Terminated(jobID string, res reconcile.Result) {
	fields := []zap.Field{
		zap.String("job_id", jobID),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("ticks", res.Ticks),
		zap.Int("filled", res.Snapshot.Filled),
	}
	if res.Err != nil {
		s.logger.Warn("job stopped early", append(fields, zap.Error(res.Err))...)
		return
	}
	s.logger.Info("job complete", fields...)
}
