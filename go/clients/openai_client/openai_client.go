package openai_client

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcdev12/adaptivq/go/clients"
)

type OpenAIClient struct {
	*clients.BaseClient
	model string
}

func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	client := &OpenAIClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
		model:      model,
	}

	client.SetHeader(JsonHeader, JsonContentType)
	client.SetHeader(AuthHeader, "Bearer "+apiKey)

	return client
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type ChatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Complete sends messages and returns the first choice's content with any
// markdown code fences stripped.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	req := ChatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    0.2,
		MaxTokens:      800,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	var resp ChatResponse
	if err := c.PostJSON(ctx, chatCompletionsPath, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI API")
	}

	return cleanJSONResponse(resp.Choices[0].Message.Content), nil
}

func cleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	return strings.TrimSpace(response)
}
