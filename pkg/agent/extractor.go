package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/navimind/navimind/pkg/agent/prompt"
	"github.com/navimind/navimind/pkg/llm"
)

// extractorMaxTokens bounds one extraction completion.
const extractorMaxTokens = 4096

// extractorTemperature pins extraction to deterministic decoding.
var extractorTemperature = 0.0

// Extractor pulls schema-shaped data out of sanitized page content.
type Extractor struct {
	client  llm.Client
	builder *prompt.Builder
	logger  *slog.Logger
}

// NewExtractor builds an extractor.
func NewExtractor(client llm.Client, logger *slog.Logger) *Extractor {
	return &Extractor{client: client, builder: prompt.NewBuilder(), logger: logger}
}

// Extract runs one extraction completion against content. Fields absent
// from the content come back null per the extractor prompt contract.
func (e *Extractor) Extract(ctx context.Context, content, instruction string, schema map[string]any) (json.RawMessage, llm.Completion, error) {
	completion, err := e.client.Chat(ctx, llm.Request{
		System:      e.builder.ExtractorSystem(),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: e.builder.ExtractorUser(content, instruction, schema)}},
		MaxTokens:   extractorMaxTokens,
		Temperature: &extractorTemperature,
	})
	if err != nil {
		return nil, completion, fmt.Errorf("extractor completion: %w", err)
	}

	data, err := ParseExtraction(completion.Text)
	if err != nil {
		e.logger.Warn("extractor response failed to parse", "error", err)
		return nil, completion, err
	}
	return data, completion, nil
}
