// Package signal owns every write that changes a signal's confidence or
// evidence. A candidate either strengthens the matching active signal for
// its (organization, target, subtype) or becomes a new one; duplicates
// never coexist.
package signal

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/monitoring"
	"github.com/sells-group/signal-cli/internal/store"
)

// Defaults used when config leaves a knob unset.
const (
	DefaultSimilarityThreshold = 0.6
	DefaultPrefixMinChars      = 12
	DefaultReplayWindow        = 2 * time.Minute
	DefaultMaxEvidence         = 10
	DefaultMaxNewEvidence      = 2
	DefaultConfidenceStep      = 5
	DefaultConfidenceCap       = 95
)

// ErrInvalidTransition is returned when a lifecycle change is not allowed.
var ErrInvalidTransition = eris.New("signal: invalid status transition")

// Outcome is what Upsert did with a candidate.
type Outcome string

// Upsert outcomes.
const (
	OutcomeCreated      Outcome = "created"
	OutcomeStrengthened Outcome = "strengthened"
	OutcomeUnchanged    Outcome = "unchanged"
)

// Store is the slice of the store the engine writes through.
type Store interface {
	WithSignalTx(ctx context.Context, orgID, targetID string, fn func(store.SignalTx) error) error
	GetSignal(ctx context.Context, orgID, id string) (*model.Signal, error)
	UpdateSignalStatus(ctx context.Context, orgID, id string, status model.SignalStatus) error
}

// UpsertResult reports the outcome and the signal as stored afterwards.
type UpsertResult struct {
	Outcome    Outcome
	Signal     model.Signal
	Similarity float64
}

// Engine merges candidate signals into stored ones.
type Engine struct {
	store          Store
	locks          *KeyedMutex
	matcher        Matcher
	replayWindow   time.Duration
	maxEvidence    int
	maxNewEvidence int
	confStep       int
	confCap        int
	now            func() time.Time
}

// NewEngine creates an Engine from signal config.
func NewEngine(st Store, cfg config.SignalsConfig) *Engine {
	return &Engine{
		store: st,
		locks: NewKeyedMutex(),
		matcher: Matcher{
			Threshold:      cmp.Or(cfg.SimilarityThreshold, DefaultSimilarityThreshold),
			PrefixMinChars: cmp.Or(cfg.PrefixMinChars, DefaultPrefixMinChars),
		},
		replayWindow:   cmp.Or(cfg.ReplayWindow, DefaultReplayWindow),
		maxEvidence:    cmp.Or(cfg.MaxEvidence, DefaultMaxEvidence),
		maxNewEvidence: cmp.Or(cfg.MaxNewEvidence, DefaultMaxNewEvidence),
		confStep:       cmp.Or(cfg.ConfidenceStep, DefaultConfidenceStep),
		confCap:        cmp.Or(cfg.ConfidenceCap, DefaultConfidenceCap),
		now:            time.Now,
	}
}

// Upsert merges candidate into the best matching active signal for
// (orgID, targetID, candidate.Subtype), or inserts it. Calls for the same
// (orgID, targetID) are serialized in-process and, through WithSignalTx,
// across processes.
func (e *Engine) Upsert(ctx context.Context, orgID, targetID string, candidate model.Signal) (*UpsertResult, error) {
	if orgID == "" {
		return nil, eris.New("signal: organization id is required")
	}
	if strings.TrimSpace(candidate.Title) == "" {
		return nil, eris.New("signal: candidate title is required")
	}
	if !candidate.Subtype.Valid() {
		return nil, eris.Errorf("signal: unknown subtype %q", candidate.Subtype)
	}

	unlock := e.locks.Lock(store.SignalLockKey(orgID, targetID))
	defer unlock()

	var result *UpsertResult
	err := e.store.WithSignalTx(ctx, orgID, targetID, func(tx store.SignalTx) error {
		existing, err := tx.FindActiveSignals(ctx, orgID, targetID, candidate.Subtype)
		if err != nil {
			return err
		}
		now := e.now().UTC()

		best, sim := e.bestMatch(existing, candidate.Title)
		if best == nil {
			sig := e.newSignal(orgID, targetID, candidate, now)
			if err := tx.InsertSignal(ctx, &sig); err != nil {
				return err
			}
			result = &UpsertResult{Outcome: OutcomeCreated, Signal: sig}
			return nil
		}

		fresh := e.newEvidence(best.Evidence, candidate.Evidence)
		if e.isReplay(best, candidate, fresh, now) {
			result = &UpsertResult{Outcome: OutcomeUnchanged, Signal: *best, Similarity: sim}
			return nil
		}

		merged := e.strengthen(*best, candidate, fresh, now)
		if err := tx.UpdateSignal(ctx, &merged); err != nil {
			return err
		}
		result = &UpsertResult{Outcome: OutcomeStrengthened, Signal: merged, Similarity: sim}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "signal: upsert %q", candidate.Title)
	}

	c := monitoring.Global()
	switch result.Outcome {
	case OutcomeCreated:
		c.SignalsCreated.Add(1)
	case OutcomeStrengthened:
		c.SignalsStrengthened.Add(1)
	case OutcomeUnchanged:
		c.SignalsUnchanged.Add(1)
	}
	zap.L().Debug("signal: upserted",
		zap.String("organization_id", orgID),
		zap.String("target", targetID),
		zap.String("signal_id", result.Signal.ID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("detection_count", result.Signal.DetectionCount),
	)
	return result, nil
}

// bestMatch picks the most similar matching signal. Ties go to the earliest
// first detection, then the lowest id. existing is never modified.
func (e *Engine) bestMatch(existing []model.Signal, title string) (*model.Signal, float64) {
	var best *model.Signal
	bestSim := 0.0
	for i := range existing {
		s := &existing[i]
		sim := e.matcher.Similarity(s.Title, title)
		if sim < e.matcher.Threshold {
			continue
		}
		if best == nil || sim > bestSim ||
			(sim == bestSim && (s.FirstDetectedAt.Before(best.FirstDetectedAt) ||
				(s.FirstDetectedAt.Equal(best.FirstDetectedAt) && s.ID < best.ID))) {
			best, bestSim = s, sim
		}
	}
	if best == nil {
		return nil, 0
	}
	cp := *best
	cp.Evidence = append([]string(nil), best.Evidence...)
	return &cp, bestSim
}

// isReplay detects the same candidate submitted again moments later.
func (e *Engine) isReplay(existing *model.Signal, candidate model.Signal, fresh []string, now time.Time) bool {
	return len(fresh) == 0 &&
		NormalizeTitle(existing.Title) == NormalizeTitle(candidate.Title) &&
		now.Sub(existing.LastDetectedAt) < e.replayWindow
}

// newEvidence returns up to maxNewEvidence candidate entries not already in
// have, compared case-insensitively.
func (e *Engine) newEvidence(have, candidate []string) []string {
	seen := make(map[string]bool, len(have)+len(candidate))
	for _, h := range have {
		seen[evidenceKey(h)] = true
	}
	var out []string
	for _, c := range candidate {
		k := evidenceKey(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(c))
		if len(out) == e.maxNewEvidence {
			break
		}
	}
	return out
}

func (e *Engine) strengthen(s, candidate model.Signal, fresh []string, now time.Time) model.Signal {
	s.DetectionCount++
	s.LastDetectedAt = now
	s.ConfidenceScore = min(e.confCap, s.ConfidenceScore+e.confStep)
	s.Evidence = e.capEvidence(append(s.Evidence, fresh...))
	if candidate.SignificanceScore > s.SignificanceScore {
		s.SignificanceScore = candidate.SignificanceScore
		if candidate.Urgency != "" {
			s.Urgency = candidate.Urgency
		}
		if candidate.ImpactLevel != "" {
			s.ImpactLevel = candidate.ImpactLevel
		}
	}
	return s
}

func (e *Engine) newSignal(orgID, targetID string, c model.Signal, now time.Time) model.Signal {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.OrganizationID = orgID
	c.PrimaryTargetID = targetID
	c.DetectionCount = 1
	c.FirstDetectedAt = now
	c.LastDetectedAt = now
	c.Status = model.SignalActive
	c.ConfidenceScore = max(0, min(100, c.ConfidenceScore))
	c.SignificanceScore = max(0, min(100, c.SignificanceScore))

	var evidence []string
	seen := make(map[string]bool)
	for _, ev := range c.Evidence {
		k := evidenceKey(ev)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		evidence = append(evidence, strings.TrimSpace(ev))
	}
	c.Evidence = e.capEvidence(evidence)
	return c
}

// capEvidence keeps the newest maxEvidence entries.
func (e *Engine) capEvidence(ev []string) []string {
	if len(ev) > e.maxEvidence {
		ev = ev[len(ev)-e.maxEvidence:]
	}
	return append([]string(nil), ev...)
}

func evidenceKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Resolve marks an active signal resolved.
func (e *Engine) Resolve(ctx context.Context, orgID, id string) error {
	return e.Transition(ctx, orgID, id, model.SignalResolved)
}

// Dismiss marks an active signal dismissed.
func (e *Engine) Dismiss(ctx context.Context, orgID, id string) error {
	return e.Transition(ctx, orgID, id, model.SignalDismissed)
}

// Transition moves a signal out of active. Only active signals can move,
// and only to resolved or dismissed; signals are never deleted.
func (e *Engine) Transition(ctx context.Context, orgID, id string, to model.SignalStatus) error {
	if to != model.SignalResolved && to != model.SignalDismissed {
		return eris.Wrapf(ErrInvalidTransition, "to %q", to)
	}
	sig, err := e.store.GetSignal(ctx, orgID, id)
	if err != nil {
		return eris.Wrap(err, "signal: transition")
	}

	unlock := e.locks.Lock(store.SignalLockKey(orgID, sig.PrimaryTargetID))
	defer unlock()

	// Re-read under the lock; an upsert or another transition may have won.
	if sig, err = e.store.GetSignal(ctx, orgID, id); err != nil {
		return eris.Wrap(err, "signal: transition")
	}
	if sig.Status != model.SignalActive {
		return eris.Wrapf(ErrInvalidTransition, "%s is %s", id, sig.Status)
	}
	if err := e.store.UpdateSignalStatus(ctx, orgID, id, to); err != nil {
		return eris.Wrap(err, "signal: transition")
	}
	zap.L().Info("signal: status changed",
		zap.String("organization_id", orgID),
		zap.String("signal_id", id),
		zap.String("status", string(to)),
	)
	return nil
}
