package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hubgraph/client"
	"hubgraph/reconcile"
	"hubgraph/sinks"
	"hubgraph/state"
	"hubgraph/types"
	"hubgraph/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	pollTarget   int
	pollInterval time.Duration
	pollFile     string
	pollSession  string
)

// pollCmd reconciles a single hub in the foreground
var pollCmd = &cobra.Command{
	Use:   "poll [hub-id]",
	Short: "Reconcile one hub in the foreground and exit with its outcome",
	Long: `Polls the hub back-end until the target number of nodes has been assigned or the
job is stopped early. Each snapshot is logged. With --file a new session is created from the
document first and its hub is polled.

Exit status: 0 on success, 2 when the job stopped early.

Example:
  hubgraph poll 6f1c0e7a --target 5 --interval 2s
  hubgraph poll --file paper.pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().IntVarP(&pollTarget, "target", "n", 0, "Number of nodes to wait for (default from config)")
	pollCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "Poll interval (default from config)")
	pollCmd.Flags().StringVarP(&pollFile, "file", "f", "", "Upload a document to start a new session")
	pollCmd.Flags().StringVar(&pollSession, "session", "", "Existing session id to attach the upload to")
}

// outcomeError carries the process exit status of a finished job
type outcomeError struct {
	err  error
	code int
}

func (e *outcomeError) Error() string { return e.err.Error() }
func (e *outcomeError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var oe *outcomeError
	if errors.As(err, &oe) {
		return oe.code
	}
	return 1
}

func runPoll(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && pollFile == "" {
		return errors.New("either a hub id or --file is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubs := client.NewHubClient(cfg.Source.BaseURL)

	var hubID string
	if len(args) == 1 {
		hubID = args[0]
	} else {
		f, err := os.Open(pollFile)
		if err != nil {
			return err
		}
		defer f.Close()

		resp, err := hubs.StartSession(ctx, filepath.Base(pollFile), f, pollSession)
		if err != nil {
			return err
		}
		hubID = resp.Hub
		logger.Info("session started", zap.String("session", resp.Session), zap.String("hub_id", hubID))
	}

	runner := workflow.NewRunner(state.NewManager(), hubs, workflow.Config{
		Target:       cfg.Reconcile.Target,
		ShrinkPolicy: cfg.ShrinkPolicy(),
		Loop:         cfg.LoopOptions(),
		Sinks:        []reconcile.Sink{sinks.NewLogSink(logger)},
		Logger:       logger,
	})
	defer runner.Shutdown(ctx)

	req := types.JobRequest{HubID: hubID, Target: pollTarget}
	if pollInterval > 0 {
		req.IntervalMS = int(pollInterval / time.Millisecond)
	}

	res, err := runner.RunJob(ctx, req)
	if err != nil {
		return err
	}
	if !res.Success() {
		return &outcomeError{
			err:  fmt.Errorf("hub %s stopped early with %d/%d nodes: %w", hubID, res.Snapshot.Filled, res.Snapshot.Size, res.Err),
			code: 2,
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "hub %s complete: %d nodes after %d polls\n", hubID, res.Snapshot.Filled, res.Ticks)
	for _, slot := range res.Snapshot.Slots {
		if slot.Item != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n", slot.ID, slot.Item.Title)
		}
	}
	return nil
}
