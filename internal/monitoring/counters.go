package monitoring

import "sync/atomic"

// Counters tracks process-wide pipeline health counts. Steps that
// degrade instead of failing increment these so the degradation stays
// visible after the run reports success.
type Counters struct {
	ArticlesIngested        atomic.Int64
	ArticlesSkipped         atomic.Int64
	LedgerLookupFailures    atomic.Int64
	LedgerWriteFailures     atomic.Int64
	StageFailures           atomic.Int64
	StageFallbacks          atomic.Int64
	ReasonerErrors          atomic.Int64
	TargetUpdateFailures    atomic.Int64
	SignalsCreated          atomic.Int64
	SignalsStrengthened     atomic.Int64
	SignalsUnchanged        atomic.Int64
	AnalysisPersistFailures atomic.Int64
}

// CounterValues is a plain copy of Counters suitable for JSON.
type CounterValues struct {
	ArticlesIngested        int64 `json:"articles_ingested"`
	ArticlesSkipped         int64 `json:"articles_skipped"`
	LedgerLookupFailures    int64 `json:"ledger_lookup_failures"`
	LedgerWriteFailures     int64 `json:"ledger_write_failures"`
	StageFailures           int64 `json:"stage_failures"`
	StageFallbacks          int64 `json:"stage_fallbacks"`
	ReasonerErrors          int64 `json:"reasoner_errors"`
	TargetUpdateFailures    int64 `json:"target_update_failures"`
	SignalsCreated          int64 `json:"signals_created"`
	SignalsStrengthened     int64 `json:"signals_strengthened"`
	SignalsUnchanged        int64 `json:"signals_unchanged"`
	AnalysisPersistFailures int64 `json:"analysis_persist_failures"`
}

var global Counters

// Global returns the process-wide counters.
func Global() *Counters { return &global }

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() CounterValues {
	return CounterValues{
		ArticlesIngested:        c.ArticlesIngested.Load(),
		ArticlesSkipped:         c.ArticlesSkipped.Load(),
		LedgerLookupFailures:    c.LedgerLookupFailures.Load(),
		LedgerWriteFailures:     c.LedgerWriteFailures.Load(),
		StageFailures:           c.StageFailures.Load(),
		StageFallbacks:          c.StageFallbacks.Load(),
		ReasonerErrors:          c.ReasonerErrors.Load(),
		TargetUpdateFailures:    c.TargetUpdateFailures.Load(),
		SignalsCreated:          c.SignalsCreated.Load(),
		SignalsStrengthened:     c.SignalsStrengthened.Load(),
		SignalsUnchanged:        c.SignalsUnchanged.Load(),
		AnalysisPersistFailures: c.AnalysisPersistFailures.Load(),
	}
}
