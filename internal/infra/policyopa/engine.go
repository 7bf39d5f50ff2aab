package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"veritas/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.veritas.issuance.result"

// Engine evaluates the issuance guard policy. Evaluation must be a pure
// function of input and bundle content, so nondeterministic builtins are
// stripped from the compiler capabilities and rejected at load time.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
	bundleID   string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}

	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}

	return &Engine{
		query:      prepared,
		bundleHash: bundleHash,
		bundleID:   bundleID,
	}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.IssuancePolicyInput) (domain.IssuancePolicyDecision, error) {
	if e == nil {
		return domain.IssuancePolicyDecision{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.IssuancePolicyDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.IssuancePolicyDecision{}, errors.New("empty policy result")
	}
	raw := results[0].Expressions[0].Value
	result, err := decodePolicyResult(raw)
	if err != nil {
		return domain.IssuancePolicyDecision{}, err
	}
	normalizePolicyResult(&result)
	return domain.IssuancePolicyDecision{
		BundleID:   e.bundleID,
		BundleHash: e.bundleHash,
		Result:     result,
	}, nil
}

// ResolvePolicyHash gates issuance on the loaded bundle and returns its hash
// as the policy_hash to pin. A deny decision surfaces domain.ErrPolicyDenied
// with the deny codes attached.
func (e *Engine) ResolvePolicyHash(ctx context.Context, policyID string) (string, error) {
	decision, err := e.Evaluate(ctx, domain.IssuancePolicyInput{PolicyID: policyID})
	if err != nil {
		return "", err
	}
	if !decision.Result.Allow {
		codes := make([]string, 0, len(decision.Result.Deny))
		for _, item := range decision.Result.Deny {
			codes = append(codes, item.Code)
		}
		return "", fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(codes, ", "))
	}
	return e.bundleHash, nil
}

func decodePolicyResult(value any) (domain.IssuancePolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.IssuancePolicyResult{}, err
	}
	var result domain.IssuancePolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.IssuancePolicyResult{}, err
	}
	return result, nil
}

func normalizePolicyResult(result *domain.IssuancePolicyResult) {
	if result == nil {
		return
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
}

// allowedBuiltins is the deterministic subset policies may call. Anything
// touching wall clocks, randomness, or the network is excluded.
var allowedBuiltins = map[string]struct{}{
	"assign": {}, "eq": {}, "equal": {}, "neq": {},
	"gt": {}, "gte": {}, "lt": {}, "lte": {},
	"plus": {}, "minus": {}, "mul": {}, "div": {}, "rem": {},
	"count": {}, "sum": {}, "max": {}, "min": {}, "abs": {}, "sort": {},
	"sprintf": {}, "concat": {}, "format_int": {},
	"contains": {}, "startswith": {}, "endswith": {},
	"lower": {}, "upper": {}, "split": {}, "substring": {},
	"trim": {}, "trim_space": {}, "trim_prefix": {}, "trim_suffix": {},
	"to_number": {},
	"json.marshal": {}, "json.unmarshal": {},
	"base64.encode": {}, "base64.decode": {},
	"object.get": {}, "object.keys": {},
	"array.concat": {}, "array.slice": {},
	"crypto.sha256": {},
	"regex.match":   {},
	"internal.member_2": {}, "internal.member_3": {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	out := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; ok {
			out = append(out, builtin)
		}
	}
	return out
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
