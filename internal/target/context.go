// Package target keeps intelligence targets' accumulated context and
// baseline metrics current as findings mention them.
package target

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/model"
)

// Caps on accumulated context lists.
const (
	MaxHighlights = 10
	MaxSetSize    = 20
)

// UpdateKind tags a context update.
type UpdateKind string

const (
	// FullReplacement swaps the whole context for Update.Replacement.
	FullReplacement UpdateKind = "full_replacement"
	// IncrementalPatch folds new facts into the existing context.
	IncrementalPatch UpdateKind = "incremental_patch"
)

// Update is a tagged change to an AccumulatedContext.
type Update struct {
	Kind        UpdateKind                `json:"kind"`
	Replacement *model.AccumulatedContext `json:"replacement,omitempty"`

	Facts         int      `json:"facts,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
	Geography     []string `json:"geography,omitempty"`
	Relationships []string `json:"relationships,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	// Sentiment is the mean sentiment of the new facts in [-1, 1].
	Sentiment float64 `json:"sentiment,omitempty"`
}

// ApplyUpdate returns ctx with u applied. ctx is not modified.
func ApplyUpdate(ctx model.AccumulatedContext, u Update) (model.AccumulatedContext, error) {
	switch u.Kind {
	case FullReplacement:
		if u.Replacement == nil {
			return ctx, eris.New("target: full replacement without a context")
		}
		next := *u.Replacement
		next.FactCount = max(0, next.FactCount)
		next.Geography = capSet(nil, next.Geography)
		next.Relationships = capSet(nil, next.Relationships)
		next.TopicClusters = capSet(nil, next.TopicClusters)
		next.RecentHighlights = prependCapped(nil, next.RecentHighlights)
		return next, nil

	case IncrementalPatch:
		if u.Facts < 0 {
			return ctx, eris.Errorf("target: negative fact count %d", u.Facts)
		}
		next := ctx
		next.FactCount += u.Facts
		next.RecentHighlights = prependCapped(ctx.RecentHighlights, u.Highlights)
		next.Geography = capSet(ctx.Geography, u.Geography)
		next.Relationships = capSet(ctx.Relationships, u.Relationships)
		next.TopicClusters = capSet(ctx.TopicClusters, u.Topics)
		if u.Facts > 0 {
			next.SentimentTrend = TrendLabel(u.Sentiment)
		}
		return next, nil
	}
	return ctx, eris.Errorf("target: unknown update kind %q", u.Kind)
}

// TrendLabel buckets a sentiment value.
func TrendLabel(sentiment float64) string {
	switch {
	case sentiment > 0.2:
		return "positive"
	case sentiment < -0.2:
		return "negative"
	}
	return "neutral"
}

// prependCapped puts fresh entries first, newest first, then the existing
// ones, dropping blanks and case-insensitive repeats.
func prependCapped(existing, fresh []string) []string {
	out := make([]string, 0, min(MaxHighlights, len(existing)+len(fresh)))
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] || len(out) == MaxHighlights {
			return
		}
		seen[k] = true
		out = append(out, s)
	}
	for _, s := range fresh {
		add(s)
	}
	for _, s := range existing {
		add(s)
	}
	return out
}

// capSet unions existing and fresh, oldest first. A fresh entry already
// present moves to the newest end with its stored spelling, and once the
// set holds more than MaxSetSize entries the oldest are evicted.
func capSet(existing, fresh []string) []string {
	out := make([]string, 0, len(existing)+len(fresh))
	for _, s := range existing {
		s = strings.TrimSpace(s)
		if s == "" || slices.ContainsFunc(out, equalFold(s)) {
			continue
		}
		out = append(out, s)
	}
	for _, s := range fresh {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i := slices.IndexFunc(out, equalFold(s)); i >= 0 {
			s = out[i]
			out = slices.Delete(out, i, i+1)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out[max(0, len(out)-MaxSetSize):]
}

func equalFold(s string) func(string) bool {
	return func(o string) bool { return strings.EqualFold(o, s) }
}
