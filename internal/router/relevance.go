package router

import (
	"math"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/sells-group/signal-cli/internal/model"
)

// Stage lexicons. Each distinct hit adds lexiconWeight to the stage score.
var lexicons = map[model.Stage][]string{
	model.StageCompetition: {
		"competitor", "competitors", "rival", "rivals", "market share", "acquisition", "acquires",
		"acquired", "merger", "launch", "launches", "pricing", "price cut", "undercut", "poach",
		"contract win", "wins contract", "head to head",
	},
	model.StageTrending: {
		"trend", "trending", "viral", "surge", "surging", "soaring", "backlash", "outrage",
		"record", "social media", "boycott", "momentum", "buzz", "spike",
	},
	model.StageStakeholders: {
		"regulator", "regulators", "regulation", "lawsuit", "sued", "investigation", "investor",
		"investors", "shareholder", "shareholders", "union", "employees", "customers", "government",
		"lawmakers", "policy", "ceo", "board", "activist", "community", "fine", "fined",
	},
	model.StageMarket: {
		"market", "markets", "revenue", "earnings", "sales", "demand", "supply", "prices",
		"inflation", "growth", "industry", "sector", "quarter", "profit", "valuation", "funding",
	},
	model.StageForwardLooking: {
		"will", "plans", "plan to", "expected", "expects", "forecast", "outlook", "next year",
		"upcoming", "roadmap", "predict", "predicts", "future", "guidance", "pipeline", "by 2030",
	},
}

const (
	lexiconWeight    = 0.2
	vocabularyWeight = 0.35
	mentionBonus     = 0.1
)

// ScoreRelevance turns an article into a Finding with a deterministic
// relevance score per stage. Scores come from the stage lexicons plus the
// organization's own vocabulary: competitors and competitor targets feed
// competition, industry and keywords feed market, and stakeholder,
// regulator, customer and partner targets feed stakeholders. Any mention of
// the organization lifts every stage slightly.
func ScoreRelevance(a model.Article, org *model.Organization, targets []model.IntelligenceTarget) model.Finding {
	content := a.FullContent
	if content == "" {
		content = a.Description
	}
	text := normalize(a.Title + " " + a.Description + " " + content)

	vocab := stageVocabulary(org, targets)
	mentioned := org != nil && contains(text, org.Name)

	relevance := make(map[model.Stage]float64, len(model.AllStages()))
	for _, stage := range model.AllStages() {
		score := lexiconWeight * float64(countHits(text, lexicons[stage]))
		score += vocabularyWeight * float64(countHits(text, vocab[stage]))
		if mentioned {
			score += mentionBonus
		}
		relevance[stage] = round2(math.Min(score, 1))
	}

	return model.Finding{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(a.URL)).String(),
		Title:     a.Title,
		Content:   content,
		URL:       a.URL,
		Source:    a.Source,
		Relevance: relevance,
	}
}

func stageVocabulary(org *model.Organization, targets []model.IntelligenceTarget) map[model.Stage][]string {
	vocab := make(map[model.Stage][]string)
	if org != nil {
		vocab[model.StageCompetition] = append(vocab[model.StageCompetition], org.Competitors...)
		vocab[model.StageMarket] = append(vocab[model.StageMarket], org.Keywords...)
		if org.Industry != "" {
			vocab[model.StageMarket] = append(vocab[model.StageMarket], org.Industry)
		}
	}
	for _, t := range targets {
		if !t.Active {
			continue
		}
		terms := append([]string{t.Name}, t.MonitoringKeywords...)
		switch t.TargetType {
		case model.TargetCompetitor:
			vocab[model.StageCompetition] = append(vocab[model.StageCompetition], terms...)
		case model.TargetStakeholder, model.TargetRegulator, model.TargetCustomer, model.TargetPartner:
			vocab[model.StageStakeholders] = append(vocab[model.StageStakeholders], terms...)
		}
		if t.Priority == model.PriorityCritical {
			vocab[model.StageTrending] = append(vocab[model.StageTrending], t.Name)
		}
	}
	return vocab
}

// countHits counts distinct terms found in normalized text.
func countHits(text string, terms []string) int {
	seen := make(map[string]bool, len(terms))
	n := 0
	for _, term := range terms {
		norm := strings.TrimSpace(normalize(term))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		if strings.Contains(text, " "+norm+" ") {
			n++
		}
	}
	return n
}

func contains(text, term string) bool {
	norm := strings.TrimSpace(normalize(term))
	return norm != "" && strings.Contains(text, " "+norm+" ")
}

// normalize lower-cases s, turns punctuation into spaces and pads the result
// so whole-word matches can use " term ".
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
