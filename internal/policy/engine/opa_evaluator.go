package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"sessionguard/backend/internal/policy/domain"
	"sessionguard/backend/internal/policy/repository"
)

const loginQuery = "data.sessionguard.login"

// Default Rego policy: a second factor is required once the user has enabled it,
// and enrollment is required when the platform mandates two-factor for everyone.
const defaultRegoPolicy = `package sessionguard.login

default second_factor_required := false
default enrollment_required := false

second_factor_required if {
	input.user.two_factor_enabled
}

enrollment_required if {
	input.config.two_factor_mandatory
	not input.user.two_factor_enabled
}
`

// OPAEvaluator evaluates login policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	log        *zap.Logger
	fallback   rego.PreparedEvalQuery
}

// NewOPAEvaluator returns an OPA-based evaluator. policyRepo may be nil, in which case only
// the default policy is used.
func NewOPAEvaluator(ctx context.Context, policyRepo repository.Repository, log *zap.Logger) (*OPAEvaluator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	prepared, err := rego.New(
		rego.Query(loginQuery),
		rego.Module("default.rego", defaultRegoPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare default policy: %w", err)
	}
	return &OPAEvaluator{policyRepo: policyRepo, log: log, fallback: prepared}, nil
}

// HealthCheck verifies that the in-process engine can evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.fallback.Eval(ctx, rego.EvalInput(buildInput(domain.LoginInput{})))
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateLogin evaluates enabled stored policies, or the default policy when none are enabled.
// A failure to load stored policies falls back to the default policy; a failure to evaluate
// returns the built-in decision together with the error.
func (e *OPAEvaluator) EvaluateLogin(ctx context.Context, in domain.LoginInput) (domain.LoginDecision, error) {
	input := buildInput(in)

	var modules []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			e.log.Warn("policy: failed to load login policies, using default", zap.Error(err))
		}
		for _, p := range enabled {
			if p.Enabled && p.Rules != "" {
				modules = append(modules, p.Rules)
			}
		}
	}

	var (
		rs  rego.ResultSet
		err error
	)
	if len(modules) == 0 {
		rs, err = e.fallback.Eval(ctx, rego.EvalInput(input))
	} else {
		rs, err = evalModules(ctx, modules, input)
	}
	if err != nil {
		e.log.Error("policy: evaluation failed, using built-in decision",
			zap.String("user_id", in.UserID), zap.Error(err))
		return domain.DefaultLoginDecision(in), err
	}
	return decisionFromResult(rs, in)
}

func evalModules(ctx context.Context, modules []string, input map[string]interface{}) (rego.ResultSet, error) {
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	return rego.New(
		rego.Query(loginQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
}

func buildInput(in domain.LoginInput) map[string]interface{} {
	return map[string]interface{}{
		"config": map[string]interface{}{
			"two_factor_mandatory": in.TwoFactorMandatory,
		},
		"user": map[string]interface{}{
			"id":                 in.UserID,
			"two_factor_enabled": in.TwoFactorEnabled,
		},
	}
}

// decisionFromResult reads the boolean rules of the login package. Missing rules keep the
// built-in value so partial custom policies stay safe.
func decisionFromResult(rs rego.ResultSet, in domain.LoginInput) (domain.LoginDecision, error) {
	out := domain.DefaultLoginDecision(in)
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return out, fmt.Errorf("policy query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return out, fmt.Errorf("policy result is %T, want object", rs[0].Expressions[0].Value)
	}
	if v, ok := doc["second_factor_required"].(bool); ok {
		out.SecondFactorRequired = v
	}
	if v, ok := doc["enrollment_required"].(bool); ok {
		out.EnrollmentRequired = v
	}
	return out, nil
}
