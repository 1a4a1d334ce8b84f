package cost

import (
	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/model"
)

// Calculator converts provider usage into estimated USD.
type Calculator struct {
	pricing config.PricingConfig
}

// NewCalculator creates a Calculator from the pricing section of config.
func NewCalculator(pricing config.PricingConfig) *Calculator {
	return &Calculator{pricing: pricing}
}

// Claude computes the cost of one Anthropic call. Unknown models cost 0.
func (c *Calculator) Claude(modelName string, u model.TokenUsage) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.pricing.Anthropic[modelName]
	if !ok {
		return 0
	}
	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheCreationTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cwCost + crCost
}

// PerplexityQuery returns the flat cost per Perplexity request.
func (c *Calculator) PerplexityQuery() float64 {
	if c == nil {
		return 0
	}
	return c.pricing.Perplexity.PerQuery
}

// Jina computes the cost of Jina reader/search token usage.
func (c *Calculator) Jina(tokens int) float64 {
	if c == nil {
		return 0
	}
	return (float64(tokens) / 1e6) * c.pricing.Jina.PerMTok
}

// FirecrawlScrapes amortizes the monthly plan over its included credits.
func (c *Calculator) FirecrawlScrapes(n int) float64 {
	if c == nil || c.pricing.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return float64(n) * c.pricing.Firecrawl.PlanMonthly / c.pricing.Firecrawl.CreditsIncluded
}
