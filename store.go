package reflex

import (
	"context"
	"errors"
)

var (
	ErrRuleNotFound    = errors.New("reflex: rule not found")
	ErrUnknownNodeKind = errors.New("reflex: unknown node kind")
	ErrNoUpdater       = errors.New("reflex: backend cannot update rules")
)

// OperationError is a business rejection returned by the save and update
// operations. It is an ordinary result, not a fault: callers surface Message
// and Suggestion to the user and keep the session alive.
type OperationError struct {
	Message    string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *OperationError) Error() string {
	if e.Suggestion == "" {
		return "reflex: " + e.Message
	}
	return "reflex: " + e.Message + " (" + e.Suggestion + ")"
}

// AsOperationError reports whether err carries an OperationError.
func AsOperationError(err error) (*OperationError, bool) {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// GraphSaver persists an edited graph as the trigger tree of a rule.
type GraphSaver interface {
	SaveRuleGraph(ctx context.Context, ruleUID string, g Graph) (*ReflexRule, error)
}

// RuleUpdater changes the publish state and labels of a rule.
type RuleUpdater interface {
	UpdateRule(ctx context.Context, ruleUID string, u RuleUpdate) (*ReflexRule, error)
}

// Store defines the contract for persisting and retrieving reflex rules.
type Store interface {
	GraphSaver
	RuleUpdater

	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Rules
	CreateRule(ctx context.Context, r *ReflexRule) (*ReflexRule, error)
	FetchRuleByUID(ctx context.Context, ruleUID string) (*ReflexRule, error)
	ListRules(ctx context.Context) ([]ReflexRule, error) // without triggers
	DeleteRule(ctx context.Context, ruleUID string) error
}

// PrepareSave validates g and converts it into the trigger tree a store
// persists for ruleUID. An invalid graph yields an OperationError.
func PrepareSave(ruleUID string, g Graph, newUID func() string) ([]ReflexTrigger, error) {
	res := Validate(g)
	if !res.IsValid() {
		first := res.Errors[0]
		return nil, &OperationError{
			Message:    "graph has validation errors",
			Suggestion: first.Message,
		}
	}
	return BuildTriggers(ToPayload(ruleUID, g), newUID), nil
}

// RuleNotFound is the OperationError returned when saving to a missing rule.
func RuleNotFound(ruleUID string) *OperationError {
	return &OperationError{
		Message:    "reflex rule " + ruleUID + " not found",
		Suggestion: "create the rule before saving its graph",
	}
}
