package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a query to be evaluated. SubQueries is
// zero until the query has been planned.
type Request struct {
	Query      string
	ChatID     string
	SubQueries int
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates queries against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
// Zero limits are not enforced.
type DefaultPolicyEngine struct {
	DeniedRegex    []*regexp.Regexp
	MaxQueryLength int
	MaxSubQueries  int
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyQueries(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.MaxQueryLength > 0 && len(req.Query) > e.MaxQueryLength {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Query is %d characters long, the limit is %d", len(req.Query), e.MaxQueryLength),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Query) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Query matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	if e.MaxSubQueries > 0 && req.SubQueries > e.MaxSubQueries {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Plan has %d sub-queries, the limit is %d", req.SubQueries, e.MaxSubQueries),
		}, nil
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
