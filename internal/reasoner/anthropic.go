package reasoner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/signal-cli/internal/cost"
	"github.com/sells-group/signal-cli/internal/model"
	"github.com/sells-group/signal-cli/internal/resilience"
	"github.com/sells-group/signal-cli/pkg/anthropic"
)

// AnthropicOptions tunes the Anthropic backend.
type AnthropicOptions struct {
	Model     string
	MaxTokens int
	Retry     resilience.RetryConfig
	Breaker   *resilience.CircuitBreaker
	Cost      *cost.Calculator
}

// Anthropic is the default Reasoner backed by the Messages API.
type Anthropic struct {
	client anthropic.Client
	opts   AnthropicOptions
}

// NewAnthropic wraps client. A nil Breaker gets a default one.
func NewAnthropic(client anthropic.Client, opts AnthropicOptions) *Anthropic {
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	}
	return &Anthropic{client: client, opts: opts}
}

// Infer sends the request as cached system blocks plus one user turn.
func (a *Anthropic) Infer(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	msg := anthropic.MessageRequest{
		Model:       a.opts.Model,
		MaxTokens:   int64(maxTokens(req.MaxTokens, a.opts.MaxTokens)),
		System:      anthropic.BuildCachedSystemBlocks(req.System, req.Context),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Data}},
		Temperature: req.Temperature,
	}

	resp, err := resilience.ExecuteVal(ctx, a.opts.Breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, a.opts.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			resp, err := a.client.CreateMessage(ctx, msg)
			if err != nil {
				if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
					return nil, resilience.NewTransientError(err, code)
				}
				return nil, err
			}
			return resp, nil
		})
	})
	if err != nil {
		rerr := classify(ctx, req.CallSite, err)
		zap.L().Warn("reasoner: anthropic call failed",
			zap.String("call_site", req.CallSite),
			zap.String("kind", string(rerr.Kind)),
			zap.Error(err),
		)
		return nil, rerr
	}

	usage := model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	modelName := resp.Model
	if modelName == "" {
		modelName = a.opts.Model
	}
	usage.Cost = a.opts.Cost.Claude(modelName, usage)

	zap.L().Debug("reasoner: anthropic call complete",
		zap.String("call_site", req.CallSite),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return finish(req, resp.Text(), &Result{Usage: usage, Model: modelName, Provider: "anthropic"})
}
