package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient creates an OpenAI client. An API key is required.
func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New(errors.ErrCodeProviderConfig, "openai api key is not configured").
			WithSuggestion("Set the OPENAI_API_KEY environment variable")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		client:      httpClient(opts.Timeout),
	}, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	res, err := postJSON(ctx, c.client, c.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, c.buildRequest(req))
	if err != nil {
		return nil, classify(c.Name(), 0, nil, "", err)
	}

	var body openAIResponse
	decodeErr := json.Unmarshal(res.body, &body)

	if res.status != http.StatusOK {
		detail := string(res.body)
		if decodeErr == nil && body.Error != nil {
			detail = body.Error.Message
		}
		return nil, classify(c.Name(), res.status, res.header, detail, nil)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderAPI, "unmarshal openai response", decodeErr)
	}

	out := &Response{
		Model:        body.Model,
		InputTokens:  body.Usage.PromptTokens,
		OutputTokens: body.Usage.CompletionTokens,
		Latency:      time.Since(start),
		Provider:     c.Name(),
	}
	if len(body.Choices) > 0 {
		out.Content = body.Choices[0].Message.Content
		out.FinishReason = body.Choices[0].FinishReason
	}
	return out, nil
}

func (c *OpenAIClient) buildRequest(req *Request) *openAIRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]openAIMessage, 0, len(req.Context)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Context {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := c.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	return &openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// Health lists models to verify connectivity and credentials.
func (c *OpenAIClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := do(c.client, req)
	if err != nil {
		return classify(c.Name(), 0, nil, "", err)
	}
	if res.status != http.StatusOK {
		return classify(c.Name(), res.status, res.header, string(res.body), nil)
	}
	return nil
}
