package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"hubgraph/api"
	"hubgraph/client"
	"hubgraph/common"
	"hubgraph/config"
	"hubgraph/kafka"
	"hubgraph/reconcile"
	"hubgraph/sinks"
	"hubgraph/state"
	"hubgraph/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var servePort string

// serveCmd runs the HTTP API, the Kafka intake and the retention sweep
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hubgraph API server",
	Long: `Serves the job API, consumes hub session messages from Kafka when brokers are
configured, and periodically purges finished jobs. Snapshots are mirrored to Redis and final
results archived to S3 when those are configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP API port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != "" {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extra, archive, cleanup, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	stateManager := state.NewManager()
	runner := workflow.NewRunner(stateManager, client.NewHubClient(cfg.Source.BaseURL), workflow.Config{
		Target:       cfg.Reconcile.Target,
		ShrinkPolicy: cfg.ShrinkPolicy(),
		Loop:         cfg.LoopOptions(),
		Sinks:        extra,
		Logger:       logger,
	})

	opts := api.Options{Port: cfg.Server.Port, Logger: logger}
	if archive != nil {
		opts.Archive = archive
	}
	server := api.NewServer(stateManager, runner, opts)
	if err := server.StartCron(cfg.Server.SweepSchedule, cfg.Retention()); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
			Runner:  runner,
			Logger:  logger,
		})
		if err != nil {
			// the API stays usable without the intake
			logger.Error("failed to create kafka consumer", zap.Error(err))
		} else {
			g.Go(func() error { return consumer.Run(gctx) })
			g.Go(func() error {
				<-gctx.Done()
				return consumer.Close()
			})
		}
	}

	logger.Info("hubgraph serving",
		zap.String("port", cfg.Server.Port),
		zap.String("source", cfg.Source.BaseURL),
		zap.Int("target", cfg.Reconcile.Target),
		zap.Duration("interval", cfg.PollInterval()))

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return runner.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildSinks wires the optional Redis and S3 sinks; cleanup releases their connections
func buildSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]reconcile.Sink, *sinks.ArchiveSink, func(), error) {
	out := []reconcile.Sink{sinks.NewLogSink(logger.Named("progress"))}
	var archive *sinks.ArchiveSink
	cleanup := func() {}

	if cfg.Redis.Addr != "" {
		rdb, err := sinks.NewRedisClient(ctx, sinks.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() { _ = rdb.Close() }
		out = append(out, sinks.NewRedisSink(rdb, cfg.Redis.KeyPrefix, cfg.RedisTTL(), logger))
	}

	if cfg.S3.Bucket != "" {
		store, err := common.NewS3(ctx, common.S3Config{
			Region:       cfg.S3.Region,
			Profile:      cfg.S3.Profile,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, func() {}, fmt.Errorf("failed to create s3 client: %w", err)
		}
		archive = sinks.NewArchiveSink(store, cfg.S3.Bucket, cfg.S3.Prefix, logger)
		out = append(out, archive)
	}

	return out, archive, cleanup, nil
}
