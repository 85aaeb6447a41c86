package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/navimind/navimind/pkg/agent/prompt"
	"github.com/navimind/navimind/pkg/cache"
	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/guardrail"
	"github.com/navimind/navimind/pkg/llm"
	"github.com/navimind/navimind/pkg/models"
	"github.com/navimind/navimind/pkg/retry"
)

// Recorder receives usage and security bookkeeping from the coordinator.
// Implemented by the session engine; a narrow interface keeps the agent
// layer independent of session internals.
type Recorder interface {
	RecordLLMUsage(calls, tokens int)
	RecordRetries(n int)
	RecordSecurityThreats(source string, threats []guardrail.Threat)
}

// StepInput is everything the coordinator needs for one planning cycle.
type StepInput struct {
	Task           string
	Step           int
	MaxSteps       int
	ConsecFailures int
	BrowserState   *models.BrowserState
	RecentActions  []*models.ActionRecord
	Plan           *models.StrategicPlan
}

// Coordinator wires the planner, actor, and extractor together behind
// guardrail screening, content caching, and the retry policy. One
// coordinator serves one session.
type Coordinator struct {
	planner   *Planner
	actor     *Actor
	extractor *Extractor
	filter    *guardrail.Filter
	retrier   *retry.Executor
	content   *cache.ContentCache
	cfg       *config.SessionConfig
	logger    *slog.Logger
}

// NewCoordinator builds the agent stack for one session.
func NewCoordinator(client llm.Client, cfg *config.SessionConfig, content *cache.ContentCache, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		planner:   NewPlanner(client, cfg, logger),
		actor:     NewActor(cfg),
		extractor: NewExtractor(client, logger),
		filter:    guardrail.New(cfg.StrictSecurity),
		retrier:   retry.NewExecutor(cfg.Retry, logger),
		content:   content,
		cfg:       cfg,
		logger:    logger,
	}
}

// Filter exposes the guardrail for screening user-supplied text (follow-up
// tasks) at the engine boundary.
func (c *Coordinator) Filter() *guardrail.Filter {
	return c.filter
}

// sanitizedDOM screens the snapshot's DOM, reporting threats to rec. The
// sanitized text is cached per URL so repeated planning over an unchanged
// page skips the pattern pass.
func (c *Coordinator) sanitizedDOM(state *models.BrowserState, rec Recorder) string {
	if state == nil || state.DOM == "" {
		return ""
	}
	key := contentKey(state.URL, state.DOM)
	if cached, ok := c.content.Get(cache.TierDOM, key); ok {
		return string(cached)
	}

	res := c.filter.Sanitize(state.DOM)
	if len(res.Threats) > 0 {
		rec.RecordSecurityThreats("dom", res.Threats)
		c.logger.Warn("threats neutralized in page content",
			"url", state.URL, "threats", len(res.Threats), "max_severity", res.MaxSeverity)
	}
	if err := c.content.Set(cache.TierDOM, key, []byte(res.Text)); err != nil {
		c.logger.Warn("failed to cache sanitized dom", "error", err)
	}
	return res.Text
}

// PlanStep runs one guarded planning cycle and returns a validated
// decision. Parse failures and invalid actions retry under the session's
// retry strategy; the returned error is categorized when they run out.
func (c *Coordinator) PlanStep(ctx context.Context, in StepInput, rec Recorder) (*Decision, error) {
	pc := prompt.PlannerContext{
		Task:           in.Task,
		Step:           in.Step,
		MaxSteps:       in.MaxSteps,
		ConsecFailures: in.ConsecFailures,
		BrowserState:   in.BrowserState,
		SanitizedDOM:   c.sanitizedDOM(in.BrowserState, rec),
		RecentActions:  in.RecentActions,
		Plan:           in.Plan,
	}
	var screenshot string
	if in.BrowserState != nil {
		screenshot = in.BrowserState.Screenshot
	}

	decision, outcome, err := retry.Do(ctx, c.retrier, "plan_step", func(ctx context.Context) (*Decision, error) {
		d, completion, err := c.planner.Decide(ctx, pc, screenshot)
		rec.RecordLLMUsage(1, completion.TotalTokens())
		if err != nil {
			return nil, err
		}
		if d.NextAction != nil {
			if err := c.actor.Validate(d.NextAction); err != nil {
				return nil, err
			}
		}
		return d, nil
	})
	rec.RecordRetries(outcome.Retries)
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// BuildPlan generates or revises the strategic plan under retry.
func (c *Coordinator) BuildPlan(ctx context.Context, task string, state *models.BrowserState, prev *models.StrategicPlan, reason string, rec Recorder) (*models.StrategicPlan, error) {
	plan, outcome, err := retry.Do(ctx, c.retrier, "build_plan", func(ctx context.Context) (*models.StrategicPlan, error) {
		p, completion, err := c.planner.BuildPlan(ctx, task, state, prev, reason)
		rec.RecordLLMUsage(1, completion.TotalTokens())
		return p, err
	})
	rec.RecordRetries(outcome.Retries)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Extract pulls structured data from page content. Content is screened
// first; identical extraction requests hit the cache instead of the LLM.
func (c *Coordinator) Extract(ctx context.Context, content, instruction string, schema map[string]any, rec Recorder) (json.RawMessage, error) {
	res := c.filter.Sanitize(content)
	if len(res.Threats) > 0 {
		rec.RecordSecurityThreats("extract_content", res.Threats)
	}

	schemaJSON, _ := json.Marshal(schema)
	key := contentKey(instruction, res.Text+string(schemaJSON))
	if cached, ok := c.content.Get(cache.TierAPI, key); ok {
		return json.RawMessage(cached), nil
	}

	data, outcome, err := retry.Do(ctx, c.retrier, "extract", func(ctx context.Context) (json.RawMessage, error) {
		d, completion, err := c.extractor.Extract(ctx, res.Text, instruction, schema)
		rec.RecordLLMUsage(1, completion.TotalTokens())
		return d, err
	})
	rec.RecordRetries(outcome.Retries)
	if err != nil {
		return nil, err
	}
	if err := c.content.Set(cache.TierAPI, key, data); err != nil {
		c.logger.Warn("failed to cache extraction", "error", err)
	}
	return data, nil
}

func contentKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
