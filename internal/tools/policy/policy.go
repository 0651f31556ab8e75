// Package policy decides whether a tool call may run, needs user
// confirmation, or is denied.
package policy

import "github.com/steward-ai/steward/pkg/models"

// Action is the outcome of a policy evaluation.
type Action string

const (
	Allow   Action = "allow"
	Confirm Action = "confirm"
	Deny    Action = "deny"
)

// Decision pairs an action with a human-readable reason.
type Decision struct {
	Action Action
	Reason string
}

// Policy evaluates tool calls against explicit allow/deny lists and the
// spec's risk level. The zero value permits safe tools and confirms
// confirm-class ones; dangerous tools are denied unless an operator
// explicitly overrides outside the core.
type Policy struct {
	confirmTools map[string]struct{}
	denyTools    map[string]struct{}
}

// New builds a Policy from explicit confirm and deny tool-name lists.
func New(confirmTools, denyTools []string) *Policy {
	p := &Policy{
		confirmTools: make(map[string]struct{}, len(confirmTools)),
		denyTools:    make(map[string]struct{}, len(denyTools)),
	}
	for _, name := range confirmTools {
		p.confirmTools[name] = struct{}{}
	}
	for _, name := range denyTools {
		p.denyTools[name] = struct{}{}
	}
	return p
}

// Evaluate applies, in order: explicit deny list, explicit confirm list,
// then the risk-based default (safe→allow, confirm→confirm,
// dangerous→deny).
func (p *Policy) Evaluate(toolName string, risk models.RiskLevel) Decision {
	if p != nil {
		if _, denied := p.denyTools[toolName]; denied {
			return Decision{Deny, "Tool is blocked by policy"}
		}
		if _, confirm := p.confirmTools[toolName]; confirm {
			return Decision{Confirm, "Tool requires confirmation"}
		}
	}
	switch risk {
	case models.RiskSafe:
		return Decision{Allow, "Safe tool"}
	case models.RiskConfirm:
		return Decision{Confirm, "Tool requires confirmation"}
	default:
		return Decision{Deny, "Tool is dangerous by default"}
	}
}
