// Package agent implements the multi-agent layer: a planner that decides
// the next browser action, an actor that validates it against the action
// vocabulary and session tool whitelist, an extractor for structured data,
// and a coordinator that runs them with guardrail screening and retries.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/navimind/navimind/pkg/models"
)

// Parse errors. All are recoverable: the planning cycle retries with a
// fresh completion.
var (
	ErrNoJSON        = errors.New("response contains no JSON object")
	ErrNoAction      = errors.New("response has neither an action nor taskComplete")
	ErrInvalidAction = errors.New("invalid action")
)

// Decision is a parsed planner response: either the next action or task
// completion, never both.
type Decision struct {
	Observation  string
	Reasoning    string
	NextAction   *models.Action
	TaskComplete bool
	Result       string
	Confidence   float64
	RawText      string
}

type decisionWire struct {
	Observation  string   `json:"observation"`
	Reasoning    string   `json:"reasoning"`
	TaskComplete bool     `json:"taskComplete"`
	Result       string   `json:"result"`
	Confidence   float64  `json:"confidence"`
	Action       *struct {
		Type      string         `json:"type"`
		Params    map[string]any `json:"params"`
		Reasoning string         `json:"reasoning"`
	} `json:"action"`
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls the first JSON object out of an LLM response: a fenced
// block when present, otherwise the first balanced top-level object.
func extractJSON(text string) (string, error) {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// ParseDecision parses a planner completion. A response that declares the
// task incomplete but carries no action is malformed.
func ParseDecision(text string) (*Decision, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parse planner response: %w", err)
	}
	var wire decisionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("parse planner response: %w", err)
	}

	d := &Decision{
		Observation:  wire.Observation,
		Reasoning:    wire.Reasoning,
		TaskComplete: wire.TaskComplete,
		Result:       wire.Result,
		Confidence:   wire.Confidence,
		RawText:      text,
	}
	if wire.Action != nil {
		reasoning := wire.Action.Reasoning
		if reasoning == "" {
			reasoning = wire.Reasoning
		}
		d.NextAction = models.NewAction(models.ActionType(wire.Action.Type), wire.Action.Params, reasoning)
		// An explicit complete action is the same as taskComplete.
		if d.NextAction.Type == models.ActionComplete {
			d.TaskComplete = true
			if r, ok := wire.Action.Params["result"].(string); ok && d.Result == "" {
				d.Result = r
			}
			d.NextAction = nil
		}
	}
	if d.NextAction == nil && !d.TaskComplete {
		return nil, ErrNoAction
	}
	return d, nil
}

// ParsePlan parses a strategic-plan completion.
func ParsePlan(text string) (*models.StrategicPlan, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parse plan response: %w", err)
	}
	var plan models.StrategicPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("parse plan response: %w", err)
	}
	if strings.TrimSpace(plan.Strategy) == "" {
		return nil, fmt.Errorf("parse plan response: empty strategy")
	}
	return &plan, nil
}

// ParseExtraction parses an extractor completion into raw JSON.
func ParseExtraction(text string) (json.RawMessage, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("parse extraction response: invalid JSON")
	}
	return json.RawMessage(raw), nil
}
