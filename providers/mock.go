package providers

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/promptdash/promptdash/utils"
)

// MockProvider implements the Provider interface for testing. Its wire
// format is a trivial JSON envelope so tests can script responses without
// a real backend.
type MockProvider struct {
	mu     sync.Mutex
	logger utils.Logger

	responseText  string
	responses     []string
	currentIndex  int
	loopResponses bool
	shouldError   bool
	errorMsg      string
	inputTokens   int
	outputTokens  int

	PrepareCalls int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		logger:       utils.NewLogger(utils.LogLevelOff),
		responseText: "mock response",
		inputTokens:  100,
		outputTokens: 50,
	}
}

// SetMockResponse configures a single response returned on every call.
func (p *MockProvider) SetMockResponse(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responseText = text
}

// QueueResponses configures a sequence of responses, one per call. When the
// queue is exhausted the last response repeats if loop is set, otherwise
// parsing fails.
func (p *MockProvider) QueueResponses(loop bool, responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = responses
	p.currentIndex = 0
	p.loopResponses = loop
}

// SetMockError makes PrepareRequest fail, simulating an unreachable backend.
func (p *MockProvider) SetMockError(shouldError bool, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shouldError = shouldError
	p.errorMsg = msg
}

// SetUsage overrides the token usage attached to every parsed result.
func (p *MockProvider) SetUsage(input, output int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputTokens = input
	p.outputTokens = output
}

func (p *MockProvider) SetLogger(logger utils.Logger) { p.logger = logger }
func (p *MockProvider) Name() string                  { return "mock" }
func (p *MockProvider) Endpoint() string              { return "http://mock.local/v1/generate" }
func (p *MockProvider) DefaultModel() string          { return "mock-model" }
func (p *MockProvider) Models() []string              { return []string{"mock-model"} }
func (p *MockProvider) CostPer1K() (float64, float64) { return 0.003, 0.015 }
func (p *MockProvider) RateLimitRPM() int             { return 0 }

func (p *MockProvider) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (p *MockProvider) PrepareRequest(req Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PrepareCalls++
	if p.shouldError {
		return nil, errors.New(p.errorMsg)
	}
	return json.Marshal(map[string]any{"prompt": req.Prompt, "model": req.Model})
}

func (p *MockProvider) ParseResponse(body []byte) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := p.responseText
	if len(p.responses) > 0 {
		if p.currentIndex >= len(p.responses) {
			if !p.loopResponses {
				return nil, errors.New("mock responses exhausted")
			}
			p.currentIndex = len(p.responses) - 1
		}
		text = p.responses[p.currentIndex]
		p.currentIndex++
	}

	return &Result{
		Text:         text,
		InputTokens:  p.inputTokens,
		OutputTokens: p.outputTokens,
	}, nil
}
