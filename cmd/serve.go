package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
	"github.com/sells-group/signal-cli/internal/pipeline"
	"github.com/sells-group/signal-cli/internal/retrieval"
	"github.com/sells-group/signal-cli/internal/temporalx"
)

var (
	servePort    int
	serveDurable bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := ossignal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		mgr := pipeline.NewManager(ctx, env.Pipeline)
		defer mgr.Wait()

		var runs runController = mgr
		if serveDurable {
			tc, err := temporalx.Dial(ctx, cfg.Temporal)
			if err != nil {
				return err
			}
			defer tc.Close()
			runs = &durableRuns{Manager: mgr, validator: env.Pipeline, client: tc, taskQueue: cfg.Temporal.TaskQueue}
			zap.L().Info("async runs dispatched to temporal", zap.String("task_queue", cfg.Temporal.TaskQueue))
		}

		collector := monitoring.NewCollector(env.Store, nil)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		a := &api{
			store:    env.Store,
			runs:     runs,
			signals:  env.Pipeline.Engine(),
			scorer:   retrieval.NewScorer(cfg.Retrieval),
			metrics:  collector,
			checker:  checker,
			lookback: cfg.Monitoring.LookbackWindowHours,
			limit:    cfg.Retrieval.DefaultLimit,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           a.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// durableRuns hands background runs to Temporal. Synchronous runs and
// cancellation of in-process runs still go through the Manager.
type durableRuns struct {
	*pipeline.Manager
	validator interface {
		Validate(ctx context.Context, req model.RunRequest) error
	}
	client    client.Client
	taskQueue string
}

func (d *durableRuns) Start(ctx context.Context, req model.RunRequest) (string, error) {
	if err := d.validator.Validate(ctx, req); err != nil {
		return "", err
	}
	req.RunID = cmp.Or(req.RunID, uuid.NewString())
	if _, err := temporalx.StartRun(ctx, d.client, d.taskQueue, req); err != nil {
		return "", err
	}
	return req.RunID, nil
}

func (d *durableRuns) Cancel(runID string) bool {
	if d.Manager.Cancel(runID) {
		return true
	}
	err := d.client.CancelWorkflow(context.Background(), temporalx.WorkflowID(runID), "")
	if err != nil {
		zap.L().Debug("workflow cancel failed", zap.String("run_id", runID), zap.Error(err))
		return false
	}
	return true
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveDurable, "durable", false, "dispatch async runs to the Temporal worker")
	rootCmd.AddCommand(serveCmd)
}
