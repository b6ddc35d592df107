// Package gateway wraps text-generation provider calls with the resilience
// the optimization loop depends on: response caching, circuit breaking,
// retry with exponential backoff, rate limiting, and token cost accounting.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/promptdash/promptdash/config"
	"github.com/promptdash/promptdash/providers"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/utils"
)

// expensiveCallThreshold triggers a warning log for unusually costly calls.
const expensiveCallThreshold = 0.50

var validate = validator.New()

// httpDoer is the transport seam; *http.Client satisfies it.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request carries the caller-facing parameters of one generation call.
type Request struct {
	Prompt        string  `validate:"required"`
	Temperature   float64 `validate:"gte=0,lte=1"`
	MaxTokens     int     `validate:"gte=0"`
	SystemMessage string

	// AnalyzeQuality scores the generated text with the configured scorer.
	AnalyzeQuality bool
	// SkipCache bypasses the cache lookup and insert for this call.
	SkipCache bool
}

// Response is the outcome of a successful generation call. Cached responses
// replay their originally recorded cost and latency.
type Response struct {
	Text         string                `json:"text"`
	Provider     string                `json:"provider"`
	Model        string                `json:"model"`
	InputTokens  int                   `json:"input_tokens"`
	OutputTokens int                   `json:"output_tokens"`
	CostUSD      float64               `json:"cost_usd"`
	LatencyMS    float64               `json:"latency_ms"`
	Features     quality.FeatureVector `json:"features,omitempty"`
	QScore       *float64              `json:"q_score,omitempty"`
	Cached       bool                  `json:"cached"`
	Timestamp    time.Time             `json:"timestamp"`
}

func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// QualityLevel labels the response's Q score, or "Unknown" when the call
// skipped quality analysis.
func (r *Response) QualityLevel() string {
	if r.QScore == nil {
		return "Unknown"
	}
	return quality.Level(*r.QScore)
}

// CostEstimate is a pre-flight projection of a call's cost. Computing one
// never touches the network.
type CostEstimate struct {
	InputTokens           int     `json:"input_tokens"`
	EstimatedOutputTokens int     `json:"estimated_output_tokens"`
	EstimatedCostUSD      float64 `json:"estimated_cost_usd"`
	CostPer1KInput        float64 `json:"cost_per_1k_input"`
	CostPer1KOutput       float64 `json:"cost_per_1k_output"`
}

// Gateway owns the cache and circuit-breaker state for one provider
// configuration. A single instance is safe for concurrent callers and is
// meant to be shared across optimization runs.
type Gateway struct {
	provider providers.Provider
	model    string
	client   httpDoer
	cache    *responseCache
	breaker  *circuitBreaker
	limiter  *rate.Limiter
	logger   utils.Logger
	scorer   func(string) quality.FeatureVector

	maxRetries       int
	backoffUnit      time.Duration
	defaultMaxTokens int

	mu          sync.Mutex
	totalCost   float64
	totalTokens int

	now func() time.Time
}

type Option func(*Gateway)

// WithHTTPClient replaces the transport, used by tests to stub the network.
func WithHTTPClient(client httpDoer) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithScorer enables quality analysis of generated text.
func WithScorer(scorer func(string) quality.FeatureVector) Option {
	return func(g *Gateway) {
		g.scorer = scorer
	}
}

// New builds a gateway for one provider from the service configuration.
func New(provider providers.Provider, cfg *config.Config, logger utils.Logger, opts ...Option) *Gateway {
	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}

	g := &Gateway{
		provider:         provider,
		model:            model,
		client:           &http.Client{Timeout: cfg.Timeout},
		logger:           logger,
		maxRetries:       cfg.MaxRetries,
		backoffUnit:      cfg.RetryBackoffUnit,
		defaultMaxTokens: cfg.MaxTokens,
		now:              time.Now,
	}

	if cfg.CacheEnabled {
		g.cache = newResponseCache(cfg.CacheSize, cfg.CacheTTL)
	}
	if cfg.BreakerEnabled {
		g.breaker = newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}
	if rpm := provider.RateLimitRPM(); rpm > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(rpm))/60.0, rpm)
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Provider returns the name of the wrapped provider.
func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Model returns the model this gateway generates with.
func (g *Gateway) Model() string {
	return g.model
}

// TotalCost returns the cumulative USD spend recorded for fresh calls.
// Cache hits do not move this number.
func (g *Gateway) TotalCost() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalCost
}

// TotalTokens returns the cumulative token usage recorded for fresh calls.
func (g *Gateway) TotalTokens() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalTokens
}

// BreakerState reports the circuit breaker state as a string, "disabled"
// when circuit breaking is off.
func (g *Gateway) BreakerState() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.currentState().String()
}

// EstimateCost projects the cost of a call without performing it. The
// output estimate assumes half of maxTokens get generated.
func (g *Gateway) EstimateCost(prompt string, maxTokens int) CostEstimate {
	if maxTokens <= 0 {
		maxTokens = g.defaultMaxTokens
	}
	inputTokens := countTokens(prompt)
	outputTokens := maxTokens / 2

	rateIn, rateOut := g.provider.CostPer1K()
	cost := float64(inputTokens)/1000*rateIn + float64(outputTokens)/1000*rateOut

	return CostEstimate{
		InputTokens:           inputTokens,
		EstimatedOutputTokens: outputTokens,
		EstimatedCostUSD:      cost,
		CostPer1KInput:        rateIn,
		CostPer1KOutput:       rateOut,
	}
}

// Generate turns a Request into a Response. Order of evaluation: cache
// lookup (hits are served even while the breaker is open, no live call is
// needed), then the breaker gate, then the rate limiter, then the retry
// loop. Every attempt outcome is recorded against the breaker.
func (g *Gateway) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, NewError(ErrorTypeRequest, "invalid generation request", err)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.defaultMaxTokens
	}

	key := fingerprint(req.Prompt, g.provider.Name(), g.model, req.Temperature, req.MaxTokens, req.SystemMessage)
	if g.cache != nil && !req.SkipCache {
		if cached, ok := g.cache.get(key); ok {
			g.logger.Debug("cache hit", "provider", g.provider.Name(), "key", key[:8])
			cacheHitsTotal.WithLabelValues(g.provider.Name()).Inc()
			hit := *cached
			hit.Cached = true
			return &hit, nil
		}
	}

	if g.breaker != nil {
		if err := g.breaker.allow(); err != nil {
			generateRequestsTotal.WithLabelValues(g.provider.Name(), "rejected").Inc()
			g.publishBreakerState()
			return nil, err
		}
		defer g.publishBreakerState()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, NewError(ErrorTypeRateLimit, "rate limiter wait canceled", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		resp, outcome := g.attempt(ctx, req)
		switch outcome.kind {
		case outcomeOK:
			if g.breaker != nil {
				g.breaker.recordSuccess()
			}
			if g.cache != nil && !req.SkipCache {
				g.cache.put(key, resp)
			}
			g.recordSpend(resp)
			generateRequestsTotal.WithLabelValues(g.provider.Name(), "success").Inc()
			generateDuration.WithLabelValues(g.provider.Name()).Observe(resp.LatencyMS / 1000)
			return resp, nil

		case outcomeFatal:
			// Cancellation is the caller's doing, not a provider fault.
			return nil, outcome.err
		}

		lastErr = outcome.err
		if g.breaker != nil {
			g.breaker.recordFailure()
		}
		generateRequestsTotal.WithLabelValues(g.provider.Name(), "failure").Inc()
		g.logger.Warn("generation attempt failed",
			"provider", g.provider.Name(), "attempt", attempt+1, "error", outcome.err)

		if attempt < g.maxRetries-1 {
			delay := g.backoffUnit * (1 << attempt)
			if err := g.wait(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, NewError(ErrorTypeProviderCall,
		fmt.Sprintf("failed after %d attempts", g.maxRetries), lastErr)
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeRetryable
	outcomeFatal
)

// callOutcome classifies one attempt so the retry loop runs on explicit
// results instead of error-type sniffing.
type callOutcome struct {
	kind outcomeKind
	err  error
}

func retryable(err error) callOutcome {
	return callOutcome{kind: outcomeRetryable, err: err}
}

func fatal(err error) callOutcome {
	return callOutcome{kind: outcomeFatal, err: err}
}

func (g *Gateway) attempt(ctx context.Context, req Request) (*Response, callOutcome) {
	start := g.now()

	body, err := g.provider.PrepareRequest(providers.Request{
		Prompt:        req.Prompt,
		Model:         g.model,
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxTokens,
		SystemMessage: req.SystemMessage,
	})
	if err != nil {
		return nil, retryable(fmt.Errorf("prepare request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.provider.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, retryable(fmt.Errorf("build request: %w", err))
	}
	for k, v := range g.provider.Headers() {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fatal(ctx.Err())
		}
		return nil, retryable(fmt.Errorf("provider call: %w", err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, retryable(fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, retryable(NewError(ErrorTypeRateLimit,
			fmt.Sprintf("provider rate limited: %s", truncate(string(raw), 100)), nil))
	}
	if httpResp.StatusCode >= 400 {
		return nil, retryable(fmt.Errorf("provider returned status %d: %s",
			httpResp.StatusCode, truncate(string(raw), 100)))
	}

	result, err := g.provider.ParseResponse(raw)
	if err != nil {
		return nil, retryable(fmt.Errorf("parse response: %w", err))
	}

	latency := g.now().Sub(start)
	rateIn, rateOut := g.provider.CostPer1K()
	cost := float64(result.InputTokens)/1000*rateIn + float64(result.OutputTokens)/1000*rateOut
	if cost > expensiveCallThreshold {
		g.logger.Warn("expensive generation call",
			"cost_usd", cost, "input_tokens", result.InputTokens, "output_tokens", result.OutputTokens)
	}

	resp := &Response{
		Text:         result.Text,
		Provider:     g.provider.Name(),
		Model:        g.model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      cost,
		LatencyMS:    float64(latency) / float64(time.Millisecond),
		Timestamp:    g.now().UTC(),
	}

	if req.AnalyzeQuality && g.scorer != nil {
		features := g.scorer(result.Text)
		if score, err := quality.ComputeQ(features); err == nil {
			resp.Features = features
			q := score.Q
			resp.QScore = &q
		} else {
			g.logger.Error("quality analysis failed", "error", err)
		}
	}

	return resp, callOutcome{kind: outcomeOK}
}

func (g *Gateway) recordSpend(resp *Response) {
	g.mu.Lock()
	g.totalCost += resp.CostUSD
	g.totalTokens += resp.TotalTokens()
	g.mu.Unlock()
	generateCostTotal.WithLabelValues(g.provider.Name()).Add(resp.CostUSD)
}

func (g *Gateway) publishBreakerState() {
	breakerStateGauge.WithLabelValues(g.provider.Name()).Set(float64(g.breaker.currentState()))
}

func (g *Gateway) wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
