package agent

import (
	"fmt"

	"github.com/navimind/navimind/pkg/config"
	"github.com/navimind/navimind/pkg/models"
)

// Actor validates planner-proposed actions before they reach the queue.
// The planner's output is untrusted model text; nothing it names executes
// without passing the vocabulary, whitelist, and parameter checks.
type Actor struct {
	cfg *config.SessionConfig
}

// NewActor builds an actor for one session's config.
func NewActor(cfg *config.SessionConfig) *Actor {
	return &Actor{cfg: cfg}
}

// requiredParams lists the parameter keys each action type must carry.
var requiredParams = map[models.ActionType][]string{
	models.ActionNavigate:     {"url"},
	models.ActionClick:        {"selector"},
	models.ActionTypeText:     {"selector", "text"},
	models.ActionHover:        {"selector"},
	models.ActionSelect:       {"selector", "value"},
	models.ActionScrollTo:     {"selector"},
	models.ActionSwitchTab:    {"index"},
	models.ActionWait:         {"ms"},
	models.ActionSendKeys:     {"keys"},
	models.ActionPressKey:     {"key"},
	models.ActionDropdown:     {"selector", "option"},
	models.ActionSearchGoogle: {"query"},
}

// Validate checks an action against the vocabulary, the session's enabled
// tools, and the type's required parameters.
func (a *Actor) Validate(action *models.Action) error {
	if action == nil {
		return fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	if !models.ValidActionType(action.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
	}
	if !a.cfg.ToolAllowed(string(action.Type)) {
		return fmt.Errorf("%w: type %q not enabled for this session", ErrInvalidAction, action.Type)
	}
	for _, key := range requiredParams[action.Type] {
		v, ok := action.Params[key]
		if !ok || v == nil || v == "" {
			return fmt.Errorf("%w: %s requires param %q", ErrInvalidAction, action.Type, key)
		}
	}
	return nil
}
