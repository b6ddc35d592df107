package providers

import (
	"encoding/json"
	"fmt"

	"github.com/promptdash/promptdash/utils"
)

// OpenAIProvider implements the Provider interface for the OpenAI chat
// completions API.
type OpenAIProvider struct {
	apiKey string
	logger utils.Logger
}

func NewOpenAIProvider(apiKey string) Provider {
	return &OpenAIProvider{
		apiKey: apiKey,
		logger: utils.NewLogger(utils.LogLevelWarn),
	}
}

func (p *OpenAIProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Endpoint() string {
	return "https://api.openai.com/v1/chat/completions"
}

func (p *OpenAIProvider) Headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
}

func (p *OpenAIProvider) DefaultModel() string {
	return "gpt-4o"
}

func (p *OpenAIProvider) Models() []string {
	return []string{"gpt-4o", "gpt-4-turbo", "gpt-4"}
}

// Published rates: $5/M input, $15/M output.
func (p *OpenAIProvider) CostPer1K() (float64, float64) {
	return 0.005, 0.015
}

func (p *OpenAIProvider) RateLimitRPM() int {
	return 500
}

func (p *OpenAIProvider) PrepareRequest(req Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}

	messages := make([]map[string]any, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemMessage})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}

	return json.Marshal(body)
}

func (p *OpenAIProvider) ParseResponse(body []byte) (*Result, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
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
		return nil, fmt.Errorf("openai API error (%s): %s", response.Error.Type, response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("empty response from provider")
	}

	return &Result{
		Text:         response.Choices[0].Message.Content,
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
	}, nil
}
