package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/signal-cli/internal/retrieval"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Rank an organization's active signals against a query",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		org, _ := cmd.Flags().GetString("org")
		query, _ := cmd.Flags().GetString("query")
		related, _ := cmd.Flags().GetStringSlice("related")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if limit <= 0 {
			limit = cfg.Retrieval.DefaultLimit
		}
		results, err := rankSignals(ctx, st, retrieval.NewScorer(cfg.Retrieval), org,
			retrieval.Query{Text: query, Related: related}, limit)
		if err != nil {
			return eris.Wrap(err, "retrieve")
		}
		if asJSON {
			return writeJSON(os.Stdout, results)
		}
		formatScored(os.Stdout, results)
		return nil
	},
}

// formatScored writes ranked results with their factor breakdown.
func formatScored(out io.Writer, results []retrieval.Scored) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tSIM\tSAL\tREC\tREL\tEXE\tTITLE\tREASON")
	for _, r := range results {
		b := r.Breakdown
		_, _ = fmt.Fprintf(w, "%.4f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			r.Composite, b.Similarity, b.Salience, b.Recency, b.Relationship, b.Execution,
			r.Item.Title, r.Reason)
	}
	_ = w.Flush()
}

func init() {
	retrieveCmd.Flags().String("org", "", "organization id (required)")
	retrieveCmd.Flags().String("query", "", "free-text query")
	retrieveCmd.Flags().StringSlice("related", nil, "names treated as related entities")
	retrieveCmd.Flags().Int("limit", 0, "max results (default from config)")
	retrieveCmd.Flags().Bool("json", false, "print JSON instead of a table")
	_ = retrieveCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(retrieveCmd)
}
