// Package retrieval ranks stored content with a weighted multi-factor score:
// query similarity, salience, recency, relationship and execution success.
// Scoring is pure; nothing here calls a model or touches storage.
package retrieval

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/signal-cli/internal/config"
)

// Default weights and knobs.
const (
	DefaultRecencyDecayDays = 90.0
	DefaultReasonThreshold  = 0.7
	minRecency              = 0.1
)

// DefaultWeights returns the standard composite weights. They sum to 1.
func DefaultWeights() config.RetrievalWeights {
	return config.RetrievalWeights{
		Similarity:   0.4,
		Salience:     0.2,
		Recency:      0.1,
		Relationship: 0.1,
		Execution:    0.2,
	}
}

// Item is anything that can be retrieved later.
type Item struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Themes   []string `json:"themes,omitempty"`

	// Salience defaults to 1 when nil.
	Salience       *float64   `json:"salience,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	RelationshipStrength *float64 `json:"relationship_strength,omitempty"`

	Executed       bool     `json:"executed,omitempty"`
	FeedbackRating *float64 `json:"feedback_rating,omitempty"`
	FeedbackText   string   `json:"feedback_text,omitempty"`
}

// Query narrows scoring. The zero Query scores similarity as neutral.
type Query struct {
	Text    string   `json:"text,omitempty"`
	Related []string `json:"related,omitempty"`
}

// Breakdown holds each factor in [0,1] before weighting.
type Breakdown struct {
	Similarity   float64 `json:"similarity"`
	Salience     float64 `json:"salience"`
	Recency      float64 `json:"recency"`
	Relationship float64 `json:"relationship"`
	Execution    float64 `json:"execution"`
}

// Scored is an item with its composite score and explanation.
type Scored struct {
	Item      Item      `json:"item"`
	Composite float64   `json:"composite"`
	Breakdown Breakdown `json:"breakdown"`
	Reason    string    `json:"retrieval_reason"`
}

// Scorer computes composite scores.
type Scorer struct {
	weights         config.RetrievalWeights
	decayDays       float64
	reasonThreshold float64
	now             func() time.Time
}

// NewScorer creates a Scorer. All-zero weights fall back to DefaultWeights.
func NewScorer(cfg config.RetrievalConfig) *Scorer {
	w := cfg.Weights
	if w == (config.RetrievalWeights{}) {
		w = DefaultWeights()
	}
	s := &Scorer{
		weights:         w,
		decayDays:       cfg.RecencyDecayDays,
		reasonThreshold: cfg.ReasonThreshold,
		now:             time.Now,
	}
	if s.decayDays <= 0 {
		s.decayDays = DefaultRecencyDecayDays
	}
	if s.reasonThreshold <= 0 {
		s.reasonThreshold = DefaultReasonThreshold
	}
	return s
}

// Score ranks items by composite score, highest first. Ties keep input order.
func (s *Scorer) Score(items []Item, q Query) []Scored {
	now := s.now()
	qt := newQueryTerms(q)

	out := make([]Scored, len(items))
	for i, it := range items {
		b := Breakdown{
			Similarity:   similarity(it, qt),
			Salience:     salience(it),
			Recency:      s.recency(it, now),
			Relationship: relationship(it, qt.related),
			Execution:    execution(it),
		}
		out[i] = Scored{
			Item:      it,
			Composite: s.composite(b),
			Breakdown: b,
			Reason:    s.reason(b),
		}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Composite > b.Composite:
			return -1
		case a.Composite < b.Composite:
			return 1
		}
		return 0
	})
	return out
}

func (s *Scorer) composite(b Breakdown) float64 {
	w := s.weights
	total := w.Similarity + w.Salience + w.Recency + w.Relationship + w.Execution
	if total <= 0 {
		return 0
	}
	sum := w.Similarity*b.Similarity +
		w.Salience*b.Salience +
		w.Recency*b.Recency +
		w.Relationship*b.Relationship +
		w.Execution*b.Execution
	// Weights that do not sum to 1 are normalized so the result stays in [0,1].
	return clamp01(math.Round(sum/total*1e4) / 1e4)
}

func (s *Scorer) recency(it Item, now time.Time) float64 {
	ref := it.CreatedAt
	if it.LastAccessedAt != nil && !it.LastAccessedAt.IsZero() {
		ref = *it.LastAccessedAt
	}
	if ref.IsZero() {
		return minRecency
	}
	days := max(0, now.Sub(ref).Hours()/24)
	return max(minRecency, min(1, math.Exp(-days/s.decayDays)))
}

type queryTerms struct {
	text    string
	tokens  []string
	related map[string]bool
}

func newQueryTerms(q Query) queryTerms {
	qt := queryTerms{text: strings.ToLower(strings.TrimSpace(q.Text))}
	seen := make(map[string]bool)
	for _, t := range tokenize(qt.text) {
		if !seen[t] {
			seen[t] = true
			qt.tokens = append(qt.tokens, t)
		}
	}
	if len(q.Related) > 0 {
		qt.related = make(map[string]bool, len(q.Related))
		for _, id := range q.Related {
			qt.related[id] = true
		}
	}
	return qt
}

func similarity(it Item, qt queryTerms) float64 {
	if qt.text == "" {
		return 0.5
	}

	vocab := make(map[string]bool)
	for _, group := range [][]string{it.Keywords, it.Themes, {it.Title}} {
		for _, s := range group {
			for _, t := range tokenize(s) {
				vocab[t] = true
			}
		}
	}
	overlap := 0.0
	if len(qt.tokens) > 0 {
		hits := 0
		for _, t := range qt.tokens {
			if vocab[t] {
				hits++
			}
		}
		overlap = float64(hits) / float64(len(qt.tokens))
	}

	substring := 0.0
	switch {
	case strings.Contains(strings.ToLower(it.Title), qt.text):
		substring = 1
	case strings.Contains(strings.ToLower(it.Content), qt.text):
		substring = 0.5
	}
	return clamp01(0.6*overlap + 0.4*substring)
}

func salience(it Item) float64 {
	if it.Salience == nil {
		return 1
	}
	return clamp01(*it.Salience)
}

func relationship(it Item, related map[string]bool) float64 {
	if related[it.ID] {
		return 1
	}
	if it.RelationshipStrength != nil {
		return clamp01(*it.RelationshipStrength)
	}
	return 0
}

func execution(it Item) float64 {
	if !it.Executed {
		return 0
	}
	if it.FeedbackRating != nil {
		return clamp01(*it.FeedbackRating / 5)
	}
	if strings.TrimSpace(it.FeedbackText) != "" {
		return FeedbackSentiment(it.FeedbackText)
	}
	return 0.5
}

// tokenize lower-cases s and splits it on anything that is not a letter or
// digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isWordRune(r)
	})
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}
