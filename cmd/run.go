package main

import (
	"encoding/json"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/model"
)

var (
	runOrg     string
	runWindow  time.Duration
	runTargets []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once for one organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := ossignal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, model.RunRequest{
			OrganizationID: runOrg,
			RecencyWindow:  runWindow,
			Targets:        runTargets,
		})
		if result != nil {
			zap.L().Info("pipeline run finished",
				zap.String("organization_id", runOrg),
				zap.String("run_id", result.RunID),
				zap.Bool("success", result.Success),
				zap.Int("signals_created", result.SignalsCreated),
				zap.Int("signals_strengthened", result.SignalsStrengthened),
				zap.Float64("estimated_cost_usd", result.EstimatedCostUSD),
			)
			if encErr := writeJSON(os.Stdout, result); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return nil
	},
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	runCmd.Flags().StringVar(&runOrg, "org", "", "organization id (required)")
	runCmd.Flags().DurationVar(&runWindow, "window", 0, "recency window for articles (default from config)")
	runCmd.Flags().StringSliceVar(&runTargets, "target", nil, "restrict to these target names (repeatable)")
	_ = runCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(runCmd)
}
