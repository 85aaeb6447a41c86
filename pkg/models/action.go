package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the fixed vocabulary of browser directives the planner may
// emit. The browser client is responsible for executing them; the engine
// only validates, queues, and records them.
type ActionType string

const (
	ActionNavigate     ActionType = "navigate"
	ActionClick        ActionType = "click"
	ActionTypeText     ActionType = "type"
	ActionHover        ActionType = "hover"
	ActionSelect       ActionType = "select"
	ActionScrollDown   ActionType = "scroll_down"
	ActionScrollUp     ActionType = "scroll_up"
	ActionScrollTo     ActionType = "scroll_to"
	ActionNewTab       ActionType = "new_tab"
	ActionCloseTab     ActionType = "close_tab"
	ActionSwitchTab    ActionType = "switch_tab"
	ActionWait         ActionType = "wait"
	ActionScreenshot   ActionType = "screenshot"
	ActionExtract      ActionType = "extract"
	ActionCacheContent ActionType = "cache_content"
	ActionSendKeys     ActionType = "send_keys"
	ActionPressKey     ActionType = "press_key"
	ActionDropdown     ActionType = "dropdown"
	ActionSearchGoogle ActionType = "search_google"
	ActionNextPage     ActionType = "next_page"
	ActionPreviousPage ActionType = "previous_page"
	ActionComplete     ActionType = "complete"
)

// actionVocabulary is the authoritative set of valid action types.
var actionVocabulary = map[ActionType]bool{
	ActionNavigate:     true,
	ActionClick:        true,
	ActionTypeText:     true,
	ActionHover:        true,
	ActionSelect:       true,
	ActionScrollDown:   true,
	ActionScrollUp:     true,
	ActionScrollTo:     true,
	ActionNewTab:       true,
	ActionCloseTab:     true,
	ActionSwitchTab:    true,
	ActionWait:         true,
	ActionScreenshot:   true,
	ActionExtract:      true,
	ActionCacheContent: true,
	ActionSendKeys:     true,
	ActionPressKey:     true,
	ActionDropdown:     true,
	ActionSearchGoogle: true,
	ActionNextPage:     true,
	ActionPreviousPage: true,
	ActionComplete:     true,
}

// ValidActionType reports whether t belongs to the action vocabulary.
func ValidActionType(t ActionType) bool {
	return actionVocabulary[t]
}

// ActionVocabulary returns the vocabulary in a stable order for prompts.
func ActionVocabulary() []ActionType {
	return []ActionType{
		ActionNavigate, ActionClick, ActionTypeText, ActionHover, ActionSelect,
		ActionScrollDown, ActionScrollUp, ActionScrollTo,
		ActionNewTab, ActionCloseTab, ActionSwitchTab,
		ActionWait, ActionScreenshot, ActionExtract, ActionCacheContent,
		ActionSendKeys, ActionPressKey, ActionDropdown,
		ActionSearchGoogle, ActionNextPage, ActionPreviousPage,
		ActionComplete,
	}
}

// Action is a single browser directive produced by the planner. Params is a
// type-tag-dependent parameter bag (e.g. {"url": ...} for navigate,
// {"selector": ..., "text": ...} for type).
type Action struct {
	ID        string         `json:"id"`
	Type      ActionType     `json:"type"`
	Params    map[string]any `json:"params,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewAction creates an action with a fresh identifier.
func NewAction(t ActionType, params map[string]any, reasoning string) *Action {
	return &Action{
		ID:        uuid.New().String(),
		Type:      t,
		Params:    params,
		Reasoning: reasoning,
		CreatedAt: time.Now().UTC(),
	}
}
