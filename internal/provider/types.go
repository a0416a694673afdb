package provider

import "time"

// Message is one chat message sent to a completion API.
type Message struct {
	// Role is "user", "assistant" or "system"
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the parameters of a single completion.
type Request struct {
	// SystemPrompt sets the system-level instructions
	SystemPrompt string

	// Context carries earlier turns, oldest first
	Context []Message

	// Prompt is the final user message
	Prompt string

	// Model overrides the client default when set
	Model string

	// MaxTokens limits the response length; 0 uses the client default
	MaxTokens int

	// Temperature controls randomness; 0 uses the client default
	Temperature float64
}

// Response is a completed generation.
type Response struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Latency      time.Duration `json:"latency"`
	FinishReason string        `json:"finish_reason"`
	Provider     string        `json:"provider"`
}

// Options configure an HTTP completion client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}
