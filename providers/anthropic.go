package providers

import (
	"encoding/json"
	"fmt"

	"github.com/promptdash/promptdash/utils"
)

// AnthropicProvider implements the Provider interface for the Anthropic
// messages API.
type AnthropicProvider struct {
	apiKey string
	logger utils.Logger
}

func NewAnthropicProvider(apiKey string) Provider {
	return &AnthropicProvider{
		apiKey: apiKey,
		logger: utils.NewLogger(utils.LogLevelWarn),
	}
}

func (p *AnthropicProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Endpoint() string {
	return "https://api.anthropic.com/v1/messages"
}

func (p *AnthropicProvider) Headers() map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
}

func (p *AnthropicProvider) DefaultModel() string {
	return "claude-sonnet-4-20250514"
}

func (p *AnthropicProvider) Models() []string {
	return []string{"claude-sonnet-4-20250514", "claude-opus-4-20250514"}
}

// Published rates: $3/M input, $15/M output.
func (p *AnthropicProvider) CostPer1K() (float64, float64) {
	return 0.003, 0.015
}

func (p *AnthropicProvider) RateLimitRPM() int {
	return 60
}

func (p *AnthropicProvider) PrepareRequest(req Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}

	body := map[string]any{
		"model":       model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.SystemMessage != "" {
		body["system"] = req.SystemMessage
	}

	return json.Marshal(body)
}

func (p *AnthropicProvider) ParseResponse(body []byte) (*Result, error) {
	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("anthropic API error (%s): %s", response.Error.Type, response.Error.Message)
	}
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from provider")
	}

	return &Result{
		Text:         response.Content[0].Text,
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
	}, nil
}
