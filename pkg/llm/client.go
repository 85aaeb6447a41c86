// Package llm abstracts the chat-completion providers behind a small
// client interface. The planner, actor, and extractor agents all speak
// through it; provider selection happens once at session creation.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImageAttachment is a base64 screenshot attached to a user message for
// vision-capable models.
type ImageAttachment struct {
	MediaType string // e.g. image/png
	Data      string // base64, no data-URL prefix
}

// Message is one turn of a chat exchange.
type Message struct {
	Role    Role
	Content string
	Images  []ImageAttachment
}

// Request is a provider-independent completion request. Temperature nil
// means provider default.
type Request struct {
	System      string
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Completion is the provider's answer plus token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// TotalTokens sums both directions.
func (c Completion) TotalTokens() int {
	return c.InputTokens + c.OutputTokens
}

// Client is one configured provider connection.
type Client interface {
	// Chat runs a completion. Errors carry enough of the provider's
	// response text for retry classification (HTTP status, "rate limit").
	Chat(ctx context.Context, req Request) (Completion, error)

	// SupportsVision reports whether image attachments are honored.
	SupportsVision() bool

	// Name identifies the provider for logging.
	Name() string
}

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// New builds a client for the named provider.
func New(provider, apiKey, model string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
