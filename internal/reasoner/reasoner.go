// Package reasoner is the boundary to the language-model backends used by the
// stage analyzers and the pattern extractor. Callers build a Request, get back
// raw text plus any JSON payload found in it, and see failures as typed
// *Error values.
package reasoner

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signal-cli/internal/config"
	"github.com/sells-group/signal-cli/internal/cost"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/resilience"
	"github.com/sells-group/signal-cli/pkg/anthropic"
	"github.com/sells-group/signal-cli/pkg/perplexity"
)

// defaultMaxTokens applies when neither the request nor config sets a limit.
const defaultMaxTokens = 4096

// Request is one inference call.
type Request struct {
	// CallSite names the caller ("stage:market", "pattern:Acme") for logs and errors.
	CallSite string
	// System holds the stable instructions for the call site.
	System string
	// Context holds per-request background such as the organization profile.
	Context string
	// Data is the user turn: the findings or facts to reason over.
	Data        string
	MaxTokens   int
	Temperature *float64
	// ExpectJSON makes a reply without a JSON payload a malformed error.
	ExpectJSON bool
}

// Result is a successful inference.
type Result struct {
	Text     string
	JSON     json.RawMessage
	Usage    model.TokenUsage
	Model    string
	Provider string
}

// Reasoner performs inference against a language model.
type Reasoner interface {
	Infer(ctx context.Context, req Request) (*Result, error)
}

// New builds the backend selected by cfg.Reasoner.Provider.
func New(cfg *config.Config, calc *cost.Calculator) (Reasoner, error) {
	retry := resilience.RetryFromConfig(cfg.Reasoner.MaxRetries, 0)
	breakers := resilience.NewBreakers(resilience.BreakerFromConfig(cfg.Reasoner.FailureThreshold, cfg.Reasoner.ResetTimeoutSecs))

	switch cfg.Reasoner.Provider {
	case "anthropic", "":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("reasoner: anthropic.key is required")
		}
		client := anthropic.NewClient(cfg.Anthropic.Key)
		return NewAnthropic(client, AnthropicOptions{
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Reasoner.MaxTokens,
			Retry:     retry,
			Breaker:   breakers.Get("anthropic"),
			Cost:      calc,
		}), nil
	case "perplexity":
		if cfg.Perplexity.Key == "" {
			return nil, eris.New("reasoner: perplexity.key is required")
		}
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		return NewPerplexity(client, PerplexityOptions{
			Model:     cfg.Perplexity.Model,
			MaxTokens: cfg.Reasoner.MaxTokens,
			Retry:     retry,
			Breaker:   breakers.Get("perplexity"),
			Cost:      calc,
		}), nil
	default:
		return nil, eris.Errorf("reasoner: unknown provider %q", cfg.Reasoner.Provider)
	}
}

func maxTokens(req, configured int) int {
	if req > 0 {
		return req
	}
	if configured > 0 {
		return configured
	}
	return defaultMaxTokens
}

// finish turns reply text into a Result, enforcing the empty and JSON rules.
func finish(req Request, text string, res *Result) (*Result, error) {
	if text == "" {
		return nil, &Error{Kind: KindEmpty, CallSite: req.CallSite, Err: eris.New("reasoner: empty reply")}
	}
	res.Text = text
	if raw, ok := ExtractJSON(text); ok {
		res.JSON = raw
	} else if req.ExpectJSON {
		return res, &Error{Kind: KindMalformed, CallSite: req.CallSite, Err: eris.New("reasoner: no JSON payload in reply")}
	}
	return res, nil
}
