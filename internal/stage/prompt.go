package stage

import (
	"fmt"
	"strings"

	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/reasoner"
)

// maxFindingChars bounds the content of one finding in a request.
const maxFindingChars = 1200

var stageFocus = map[model.Stage]string{
	model.StageCompetition:    "competitor moves: launches, pricing, partnerships, acquisitions, wins and losses",
	model.StageTrending:       "stories gaining momentum: public sentiment, viral coverage, emerging narratives",
	model.StageStakeholders:   "regulators, investors, employees, customers, partners and their positions",
	model.StageMarket:         "market conditions: demand, pricing, supply, financial results, industry shifts",
	model.StageForwardLooking: "announced plans, forecasts and leading indicators for the next six months",
}

const instructions = `You are an intelligence analyst. Analyze the findings below for the %s lens, focusing on %s.

Respond with a single JSON object and nothing else:
{"summary": "...", "key_findings": ["..."], "implications": ["..."], "risks": ["..."], "opportunities": ["..."], "entities": ["..."], "recommendations": ["..."]}

Only use facts present in the findings. Keep each list under eight items.`

// OrganizationContext renders the organization profile injected into every
// reasoning request.
func OrganizationContext(org *model.Organization) string {
	if org == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Organization: %s\n", org.Name)
	if org.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", org.Industry)
	}
	if org.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", org.Description)
	}
	if len(org.Competitors) > 0 {
		fmt.Fprintf(&b, "Competitors: %s\n", strings.Join(org.Competitors, ", "))
	}
	if len(org.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(org.Keywords, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildRequest assembles the reasoning request for one stage. It is pure.
func BuildRequest(stage model.Stage, org *model.Organization, findings []model.Finding, maxTokens int) reasoner.Request {
	focus := stageFocus[stage]
	if focus == "" {
		focus = "anything material to the organization"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Findings (%d):\n", len(findings))
	for i, f := range findings {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, f.Title)
		if f.IsCrossCutting {
			b.WriteString(" (cross-cutting)")
		}
		b.WriteByte('\n')
		if f.Source != "" || f.URL != "" {
			fmt.Fprintf(&b, "Source: %s %s\n", f.Source, f.URL)
		}
		fmt.Fprintf(&b, "Relevance: %.2f\n", f.Relevance[stage])
		if content := strings.TrimSpace(f.Content); content != "" {
			b.WriteString(truncate(content, maxFindingChars))
			b.WriteByte('\n')
		}
	}

	return reasoner.Request{
		CallSite:   "stage:" + string(stage),
		System:     fmt.Sprintf(instructions, stage, focus),
		Context:    OrganizationContext(org),
		Data:       b.String(),
		MaxTokens:  maxTokens,
		ExpectJSON: true,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
