package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIModel    = "gpt-4o"
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	openAITimeout         = 120 * time.Second
)

// OpenAIClient talks to the OpenAI chat completions API over plain HTTP.
type OpenAIClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewOpenAIClient builds a client with the given key and model. An empty
// model selects the default.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   defaultOpenAIEndpoint,
		httpClient: &http.Client{Timeout: openAITimeout},
	}
}

// WithEndpoint points the client at a different completions URL. Used for
// OpenAI-compatible gateways and in tests.
func (c *OpenAIClient) WithEndpoint(url string) *OpenAIClient {
	c.endpoint = url
	return c
}

func (c *OpenAIClient) Name() string { return ProviderOpenAI }

func (c *OpenAIClient) SupportsVision() bool { return true }

// Wire types for the chat completions endpoint.
// Reference: https://platform.openai.com/docs/api-reference/chat

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// chatMessage content is either a plain string or a list of content parts
// when images are attached.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	wire := chatCompletionRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		wire.Messages = append(wire.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, toOpenAIMessage(m))
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read openai response: %w", err)
	}

	// The status code stays in the error text so the retry layer can
	// classify 429s and auth failures.
	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("openai API error %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Completion{}, fmt.Errorf("decode openai response: %w", err)
	}
	if parsed.Error != nil {
		return Completion{}, fmt.Errorf("openai API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai response has no choices")
	}

	return Completion{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func toOpenAIMessage(m Message) chatMessage {
	role := string(m.Role)
	if len(m.Images) == 0 {
		return chatMessage{Role: role, Content: m.Content}
	}
	parts := []contentPart{}
	if m.Content != "" {
		parts = append(parts, contentPart{Type: "text", Text: m.Content})
	}
	for _, img := range m.Images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data)},
		})
	}
	return chatMessage{Role: role, Content: parts}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
