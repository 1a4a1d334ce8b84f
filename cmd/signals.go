package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/signal"
	"github.com/sells-group/signal-cli/internal/store"
)

var signalsOrg string

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List stored signals for an organization",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		targetID, _ := cmd.Flags().GetString("target")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		if status != "" && !model.SignalStatus(status).Valid() {
			return eris.Errorf("unknown status %q", status)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		signals, err := st.ListSignals(ctx, store.SignalFilter{
			OrganizationID: signalsOrg,
			Status:         model.SignalStatus(status),
			TargetID:       targetID,
			Limit:          limit,
		})
		if err != nil {
			return eris.Wrap(err, "signals list")
		}
		if asJSON {
			return writeJSON(os.Stdout, signals)
		}
		if len(signals) == 0 {
			fmt.Fprintln(os.Stderr, "No signals found.")
			return nil
		}
		formatSignals(os.Stdout, signals)
		return nil
	},
}

func transitionCmd(use, short string, to model.SignalStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <signal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			if err := signal.NewEngine(st, cfg.Signals).Transition(ctx, signalsOrg, args[0], to); err != nil {
				return eris.Wrapf(err, "signals %s", use)
			}
			fmt.Fprintf(os.Stdout, "%s %s\n", args[0], to)
			return nil
		},
	}
}

// formatSignals writes a tabular list of signals to out.
func formatSignals(out io.Writer, signals []model.Signal) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSUBTYPE\tSIG\tCONF\tURGENCY\tSEEN\tLAST\tTITLE")
	for _, s := range signals {
		title := s.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%d\t%s\t%s\n",
			truncateID(s.ID),
			s.Status,
			s.Subtype,
			s.SignificanceScore,
			s.ConfidenceScore,
			s.Urgency,
			s.DetectionCount,
			s.LastDetectedAt.Format("2006-01-02 15:04"),
			title,
		)
	}
	_ = w.Flush()
}

func init() {
	signalsCmd.PersistentFlags().StringVar(&signalsOrg, "org", "", "organization id (required)")
	_ = signalsCmd.MarkPersistentFlagRequired("org")
	signalsCmd.Flags().String("status", "", "filter by status (active, resolved, dismissed)")
	signalsCmd.Flags().String("target", "", "filter by primary target id")
	signalsCmd.Flags().Int("limit", 50, "max number of signals to display")
	signalsCmd.Flags().Bool("json", false, "print JSON instead of a table")

	signalsCmd.AddCommand(transitionCmd("resolve", "Mark an active signal resolved", model.SignalResolved))
	signalsCmd.AddCommand(transitionCmd("dismiss", "Dismiss an active signal", model.SignalDismissed))
	rootCmd.AddCommand(signalsCmd)
}
