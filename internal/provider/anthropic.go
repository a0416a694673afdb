package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	// the messages API requires max_tokens
	defaultAnthropicMaxTokens = 4096
)

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicClient creates an Anthropic client. An API key is required.
func NewAnthropicClient(opts Options) (*AnthropicClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New(errors.ErrCodeProviderConfig, "anthropic api key is not configured").
			WithSuggestion("Set the ANTHROPIC_API_KEY environment variable")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		client:      httpClient(opts.Timeout),
	}, nil
}

// Name implements Client.
func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	res, err := postJSON(ctx, c.client, c.baseURL+"/messages", c.headers(), c.buildRequest(req))
	if err != nil {
		return nil, classify(c.Name(), 0, nil, "", err)
	}

	var body anthropicResponse
	decodeErr := json.Unmarshal(res.body, &body)

	if res.status != http.StatusOK {
		detail := string(res.body)
		if decodeErr == nil && body.Error != nil {
			detail = body.Error.Message
		}
		return nil, classify(c.Name(), res.status, res.header, detail, nil)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderAPI, "unmarshal anthropic response", decodeErr)
	}

	var text strings.Builder
	for _, block := range body.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Content:      text.String(),
		Model:        body.Model,
		InputTokens:  body.Usage.InputTokens,
		OutputTokens: body.Usage.OutputTokens,
		Latency:      time.Since(start),
		FinishReason: body.StopReason,
		Provider:     c.Name(),
	}, nil
}

// buildRequest maps the request onto the messages API, which takes the
// system prompt as a top-level field.
func (c *AnthropicClient) buildRequest(req *Request) *anthropicRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]anthropicMessage, 0, len(req.Context)+1)
	for _, m := range req.Context {
		if m.Role == "system" {
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, anthropicMessage{Role: "user", Content: req.Prompt})

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := c.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	return &anthropicRequest{
		Model:       model,
		Messages:    messages,
		System:      req.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// Health sends a one-token request to verify connectivity and credentials.
func (c *AnthropicClient) Health(ctx context.Context) error {
	_, err := c.Complete(ctx, &Request{Prompt: "ping", MaxTokens: 1})
	return err
}
