// Package review turns a risk result into follow-up actions. Rules are
// boolean expressions over the score, level and raised flags of a result.
package review

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/richxcame/order-risk/internal/risk"
)

// Action is what a matching rule asks for.
type Action string

const (
	ActionManualReview   Action = "manual_review"
	ActionNotifySecurity Action = "notify_security"
)

// Rule binds an expression to an action. Expressions see three variables:
// score (float), level (string) and flags (list of signal names).
type Rule struct {
	Name       string `json:"name" mapstructure:"name"`
	Action     Action `json:"action" mapstructure:"action"`
	Expression string `json:"expression" mapstructure:"expression"`
}

// Decision is the outcome of running a policy against one result.
type Decision struct {
	RequiresReview bool     `json:"requires_review"`
	NotifySecurity bool     `json:"notify_security"`
	MatchedRules   []string `json:"matched_rules"`
}

// ErrNilResult is returned by Decide when there is nothing to decide on.
var ErrNilResult = errors.New("review: nil risk result")

type compiledRule struct {
	Rule
	program *vm.Program
}

// Policy is an ordered set of compiled rules. It is safe for concurrent use.
type Policy struct {
	rules []compiledRule
}

// DefaultRules returns the stock rule set: high risk always goes to manual
// review and to the security team, medium risk goes to review only when the
// payment method was unusual.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "high_risk_review",
			Action:     ActionManualReview,
			Expression: `level == "high"`,
		},
		{
			Name:       "medium_risk_new_payment",
			Action:     ActionManualReview,
			Expression: `level == "medium" && "unusual_payment_method" in flags`,
		},
		{
			Name:       "high_risk_security_alert",
			Action:     ActionNotifySecurity,
			Expression: `level == "high"`,
		},
	}
}

func env(score float64, level string, flags []string) map[string]any {
	return map[string]any{
		"score": score,
		"level": level,
		"flags": flags,
	}
}

// NewPolicy compiles rules. Any compile error or unknown action fails the
// whole policy.
func NewPolicy(rules []Rule) (*Policy, error) {
	p := &Policy{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		switch r.Action {
		case ActionManualReview, ActionNotifySecurity:
		default:
			return nil, fmt.Errorf("rule %q: unknown action %q", r.Name, r.Action)
		}

		program, err := expr.Compile(r.Expression,
			expr.Env(env(0, "", nil)),
			expr.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %q: %w", r.Name, err)
		}
		p.rules = append(p.rules, compiledRule{Rule: r, program: program})
	}
	return p, nil
}

// DefaultPolicy returns the policy built from DefaultRules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules())
	if err != nil {
		panic(err)
	}
	return p
}

// Decide runs every rule against result.
func (p *Policy) Decide(result *risk.RiskResult) (Decision, error) {
	if result == nil {
		return Decision{}, ErrNilResult
	}

	flags := make([]string, len(result.FlagsRaised))
	for i, s := range result.FlagsRaised {
		flags[i] = s.String()
	}
	facts := env(result.RiskScore, string(result.RiskLevel), flags)

	decision := Decision{MatchedRules: []string{}}
	for _, r := range p.rules {
		out, err := expr.Run(r.program, facts)
		if err != nil {
			return Decision{}, fmt.Errorf("execution error on rule %q: %w", r.Name, err)
		}
		if matched, _ := out.(bool); !matched {
			continue
		}

		decision.MatchedRules = append(decision.MatchedRules, r.Name)
		switch r.Action {
		case ActionManualReview:
			decision.RequiresReview = true
		case ActionNotifySecurity:
			decision.NotifySecurity = true
		}
	}
	return decision, nil
}
