package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/navimind/navimind/pkg/agent/prompt"
	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/llm"
	"github.com/navimind/navimind/pkg/models"
)

// plannerMaxTokens bounds one planning completion.
const plannerMaxTokens = 2048

// planMaxTokens bounds one strategic-plan completion.
const planMaxTokens = 4096

// Planner turns task context into the next browser action via the LLM.
type Planner struct {
	client  llm.Client
	builder *prompt.Builder
	cfg     *config.SessionConfig
	logger  *slog.Logger
}

// NewPlanner builds a planner.
func NewPlanner(client llm.Client, cfg *config.SessionConfig, logger *slog.Logger) *Planner {
	return &Planner{
		client:  client,
		builder: prompt.NewBuilder(),
		cfg:     cfg,
		logger:  logger,
	}
}

// enabledTools returns the action vocabulary restricted by the session's
// whitelist.
func (p *Planner) enabledTools() []models.ActionType {
	all := models.ActionVocabulary()
	if len(p.cfg.ToolsEnabled) == 0 {
		return all
	}
	out := make([]models.ActionType, 0, len(all))
	for _, t := range all {
		if p.cfg.ToolAllowed(string(t)) {
			out = append(out, t)
		}
	}
	return out
}

// Decide runs one planning completion. Screenshot, when non-empty and
// vision is enabled, rides along as an image attachment.
func (p *Planner) Decide(ctx context.Context, pc prompt.PlannerContext, screenshot string) (*Decision, llm.Completion, error) {
	userMsg := llm.Message{Role: llm.RoleUser, Content: p.builder.PlannerUser(pc)}
	if screenshot != "" && p.cfg.EnableVision && p.client.SupportsVision() {
		userMsg.Images = []llm.ImageAttachment{{MediaType: "image/png", Data: screenshot}}
	}

	completion, err := p.client.Chat(ctx, llm.Request{
		System:    p.builder.PlannerSystem(p.enabledTools()),
		Messages:  []llm.Message{userMsg},
		MaxTokens: plannerMaxTokens,
	})
	if err != nil {
		return nil, completion, fmt.Errorf("planner completion: %w", err)
	}

	decision, err := ParseDecision(completion.Text)
	if err != nil {
		p.logger.Warn("planner response failed to parse",
			"error", err, "response_len", len(completion.Text))
		return nil, completion, err
	}
	return decision, completion, nil
}

// BuildPlan runs one strategic-plan completion. prev and reason are set
// when revising an existing plan.
func (p *Planner) BuildPlan(ctx context.Context, task string, state *models.BrowserState, prev *models.StrategicPlan, reason string) (*models.StrategicPlan, llm.Completion, error) {
	completion, err := p.client.Chat(ctx, llm.Request{
		System:    p.builder.PlanSystem(),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: p.builder.PlanUser(task, state, prev, reason)}},
		MaxTokens: planMaxTokens,
	})
	if err != nil {
		return nil, completion, fmt.Errorf("plan completion: %w", err)
	}

	plan, err := ParsePlan(completion.Text)
	if err != nil {
		return nil, completion, err
	}
	return plan, completion, nil
}
