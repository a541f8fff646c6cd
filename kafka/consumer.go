package kafka

import (
	"context"
	"errors"
	"fmt"

	sharedKafka "hubgraph/shared/kafka"
	"hubgraph/types"
	"hubgraph/workflow"

	"go.uber.org/zap"
)

// JobStarter starts reconciliation jobs
type JobStarter interface {
	StartJob(req types.JobRequest) (string, error)
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Runner  JobStarter
	Logger  *zap.Logger
}

// NewHandler returns the handler for hub session messages: each valid message starts a job.
// Invalid messages are marked and skipped; a runner that is shutting down leaves the message
// unmarked so another replica picks it up.
func NewHandler(runner JobStarter, logger *zap.Logger) *sharedKafka.TypedMessageHandler[types.JobRequest] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sharedKafka.TypedMessageHandler[types.JobRequest]{
		Validate: func(msg *types.JobRequest) error {
			if msg.HubID == "" {
				return errors.New("missing hub_id")
			}
			if msg.Target < 0 || msg.IntervalMS < 0 {
				return fmt.Errorf("hub %s: negative target or interval", msg.HubID)
			}
			return nil
		},
		Process: func(ctx context.Context, msg *types.JobRequest) error {
			jobID, err := runner.StartJob(*msg)
			if errors.Is(err, workflow.ErrInvalidRequest) {
				logger.Warn("rejected hub session", zap.String("hub_id", msg.HubID), zap.Error(err))
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info("job started from kafka", zap.String("job_id", jobID), zap.String("hub_id", msg.HubID))
			return nil
		},
		SkipInvalid: true,
		Logger:      logger,
	}
}

// NewConsumer creates a new Kafka consumer using the shared consumer implementation
func NewConsumer(config ConsumerConfig) (*sharedKafka.Consumer, error) {
	return sharedKafka.NewConsumer(sharedKafka.ConsumerConfig{
		Brokers: config.Brokers,
		Topic:   config.Topic,
		GroupID: config.GroupID,
		Handler: NewHandler(config.Runner, config.Logger),
		Logger:  config.Logger,
	})
}
