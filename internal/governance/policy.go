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

// Request contains the context of a program invocation to be evaluated.
type Request struct {
	Program string
	Caller  string
	Steps   []string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates invocations before they reach a program.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedPrograms map[string]bool
	DeniedCallers  map[string]bool
	DeniedRegex    []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedPrograms: make(map[string]bool),
		DeniedCallers:  make(map[string]bool),
		DeniedRegex:    make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyProgram(name string) {
	e.DeniedPrograms[name] = true
}

func (e *DefaultPolicyEngine) DenyCaller(address string) {
	e.DeniedCallers[address] = true
}

func (e *DefaultPolicyEngine) DenySteps(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedPrograms[req.Program] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Program '%s' is restricted by system policy", req.Program),
		}, nil
	}

	if e.DeniedCallers[req.Caller] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Caller '%s' is restricted by system policy", req.Caller),
		}, nil
	}

	for i, step := range req.Steps {
		for _, re := range e.DeniedRegex {
			if re.MatchString(step) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("Step %d matches restricted pattern: %s", i+1, re.String()),
				}, nil
			}
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
