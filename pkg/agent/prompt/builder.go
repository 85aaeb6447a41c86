// Package prompt builds all prompt text for the planner, actor, and
// extractor agents. Stateless — all state comes from parameters.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/navimind/navimind/pkg/guardrail"
	"github.com/navimind/navimind/pkg/models"
)

// Builder composes system and user messages. Thread-safe, no mutable
// state.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// PlannerContext carries everything the planner prompt needs for one
// decision.
type PlannerContext struct {
	Task           string
	Step           int
	MaxSteps       int
	ConsecFailures int
	BrowserState   *models.BrowserState
	SanitizedDOM   string
	RecentActions  []*models.ActionRecord
	Plan           *models.StrategicPlan
}

// PlannerSystem returns the planner system message, including the action
// vocabulary restricted to the enabled tools.
func (b *Builder) PlannerSystem(enabledTools []models.ActionType) string {
	var sb strings.Builder
	sb.WriteString(plannerRole)
	sb.WriteString("\n\n## Available actions\n")
	for _, t := range enabledTools {
		fmt.Fprintf(&sb, "- %s: %s\n", t, actionHelp[t])
	}
	sb.WriteString("\n")
	sb.WriteString(plannerFormatInstructions)
	return sb.String()
}

// PlannerUser renders the per-step planner message.
func (b *Builder) PlannerUser(pc PlannerContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Task\n%s\n\n", pc.Task)
	fmt.Fprintf(&sb, "## Progress\nStep %d of %d.", pc.Step, pc.MaxSteps)
	if pc.ConsecFailures > 0 {
		fmt.Fprintf(&sb, " The last %d action(s) failed in a row; try a different approach.", pc.ConsecFailures)
	}
	sb.WriteString("\n\n")

	if pc.Plan != nil {
		fmt.Fprintf(&sb, "## Current strategy\n%s\n", pc.Plan.Strategy)
		if len(pc.Plan.SuccessCriteria) > 0 {
			sb.WriteString("Success criteria:\n")
			for _, sc := range pc.Plan.SuccessCriteria {
				fmt.Fprintf(&sb, "- %s\n", sc)
			}
		}
		sb.WriteString("\n")
	}

	if pc.BrowserState != nil {
		fmt.Fprintf(&sb, "## Browser\nURL: %s\nTitle: %s\n\n", pc.BrowserState.URL, pc.BrowserState.Title)
	} else {
		sb.WriteString("## Browser\nNo page loaded yet.\n\n")
	}

	if n := len(pc.RecentActions); n > 0 {
		sb.WriteString("## Recent actions\n")
		for _, rec := range tail(pc.RecentActions, recentActionWindow) {
			outcome := "ok"
			if rec.Result != nil && !rec.Result.Success {
				outcome = "FAILED: " + rec.Result.Error
			}
			fmt.Fprintf(&sb, "%d. %s — %s\n", rec.Step, rec.Action.Type, outcome)
		}
		sb.WriteString("\n")
	}

	if pc.SanitizedDOM != "" {
		sb.WriteString("## Page content\n")
		sb.WriteString(guardrail.WrapUntrusted(pc.SanitizedDOM))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Decide the single next action, or mark the task complete.")
	return sb.String()
}

// PlanSystem returns the strategic-plan system message.
func (b *Builder) PlanSystem() string {
	return planRole + "\n\n" + planFormatInstructions
}

// PlanUser renders the strategic-plan request.
func (b *Builder) PlanUser(task string, state *models.BrowserState, prev *models.StrategicPlan, reason string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Task\n%s\n\n", task)
	if state != nil {
		fmt.Fprintf(&sb, "## Current page\nURL: %s\nTitle: %s\n\n", state.URL, state.Title)
	}
	if prev != nil {
		fmt.Fprintf(&sb, "## Previous strategy\n%s\n\nRevision reason: %s\n\n", prev.Strategy, reason)
	}
	sb.WriteString("Produce the strategic plan.")
	return sb.String()
}

// ExtractorSystem returns the extraction system message.
func (b *Builder) ExtractorSystem() string {
	return extractorRole + "\n\n" + extractorFormatInstructions
}

// ExtractorUser renders the extraction request. The schema is rendered as
// JSON so field names and types are unambiguous.
func (b *Builder) ExtractorUser(content, instruction string, schema map[string]any) string {
	var sb strings.Builder
	if instruction != "" {
		fmt.Fprintf(&sb, "## Instruction\n%s\n\n", instruction)
	}
	if len(schema) > 0 {
		schemaJSON, _ := json.MarshalIndent(schema, "", "  ")
		fmt.Fprintf(&sb, "## Output schema\n%s\n\n", schemaJSON)
	}
	sb.WriteString("## Content\n")
	sb.WriteString(guardrail.WrapUntrusted(content))
	sb.WriteString("\n\nReturn the extracted data as JSON.")
	return sb.String()
}

// recentActionWindow bounds how much history the planner prompt carries.
const recentActionWindow = 10

func tail(recs []*models.ActionRecord, n int) []*models.ActionRecord {
	if len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}
