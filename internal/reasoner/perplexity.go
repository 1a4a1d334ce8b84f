package reasoner

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/cost"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/resilience"
	"github.com/sells-group/signal-cli/pkg/perplexity"
)

// PerplexityOptions tunes the Perplexity backend.
type PerplexityOptions struct {
	Model     string
	MaxTokens int
	Retry     resilience.RetryConfig
	Breaker   *resilience.CircuitBreaker
	Cost      *cost.Calculator
}

// Perplexity is the alternate Reasoner backed by chat completions.
type Perplexity struct {
	client perplexity.Client
	opts   PerplexityOptions
}

// NewPerplexity wraps client. A nil Breaker gets a default one.
func NewPerplexity(client perplexity.Client, opts PerplexityOptions) *Perplexity {
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("perplexity", "chat_completion")
	}
	return &Perplexity{client: client, opts: opts}
}

// Infer folds System and Context into the system message.
func (p *Perplexity) Infer(ctx context.Context, req Request) (*Result, error) {
	system := req.System
	if req.Context != "" {
		system = strings.TrimSpace(system + "\n\n" + req.Context)
	}
	limit := maxTokens(req.MaxTokens, p.opts.MaxTokens)
	chat := perplexity.ChatCompletionRequest{
		Model: p.opts.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Data},
		},
		Temperature: req.Temperature,
		MaxTokens:   &limit,
	}

	resp, err := resilience.ExecuteVal(ctx, p.opts.Breaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
			resp, err := p.client.ChatCompletion(ctx, chat)
			if err != nil {
				var se *perplexity.StatusError
				if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
					return nil, resilience.NewTransientError(err, se.StatusCode)
				}
				return nil, err
			}
			return resp, nil
		})
	})
	if err != nil {
		rerr := classify(ctx, req.CallSite, err)
		zap.L().Warn("reasoner: perplexity call failed",
			zap.String("call_site", req.CallSite),
			zap.String("kind", string(rerr.Kind)),
			zap.Error(err),
		)
		return nil, rerr
	}

	usage := model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Cost:         p.opts.Cost.PerplexityQuery(),
	}
	modelName := resp.Model
	if modelName == "" {
		modelName = p.opts.Model
	}
	return finish(req, resp.Text(), &Result{Usage: usage, Model: modelName, Provider: "perplexity"})
}
