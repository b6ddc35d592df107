// Package providers implements the text-generation provider interfaces and
// their concrete implementations. It supports Anthropic and OpenAI behind a
// unified request/response contract with published per-1k-token rates.
package providers

import (
	"github.com/promptdash/promptdash/utils"
)

// Provider defines the interface every generation backend must implement.
// A Provider prepares wire requests and parses wire responses; the gateway
// owns the HTTP transport, retries and accounting.
type Provider interface {
	Name() string
	Endpoint() string
	Headers() map[string]string

	DefaultModel() string
	Models() []string

	// CostPer1K returns the provider's published USD rates per 1000 input
	// and output tokens for the configured model family.
	CostPer1K() (input, output float64)

	// RateLimitRPM is the provider's request-per-minute ceiling.
	RateLimitRPM() int

	PrepareRequest(req Request) ([]byte, error)
	ParseResponse(body []byte) (*Result, error)

	SetLogger(logger utils.Logger)
}

// Request carries the parameters of a single generation call.
type Request struct {
	Prompt        string
	Model         string
	Temperature   float64
	MaxTokens     int
	SystemMessage string
}

// Result is the parsed provider response: the generated text plus the token
// usage the provider metered for the call.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Constructor builds a provider instance bound to an API key.
type Constructor func(apiKey string) Provider
