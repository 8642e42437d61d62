package authority

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/gdid/pkg/gdid"
)

// InfoFilter selects SequenceInfo entries with a CEL expression over:
//
//	scope, sequence, issuer  string
//	era, current, total, remaining  int
//	issued_ms  int (unix milliseconds of the last block)
//
// e.g. `era > 0 && remaining == 0` or `scope.startsWith("billing")`.
// An empty expression matches everything.
type InfoFilter struct {
	expr    string
	prog    cel.Program
	enabled bool
}

// NewInfoFilter compiles expr. The expression must evaluate to a bool.
func NewInfoFilter(expr string) (*InfoFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &InfoFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("scope", cel.StringType),
		cel.Variable("sequence", cel.StringType),
		cel.Variable("issuer", cel.StringType),
		cel.Variable("era", cel.IntType),
		cel.Variable("current", cel.IntType),
		cel.Variable("total", cel.IntType),
		cel.Variable("remaining", cel.IntType),
		cel.Variable("issued_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, checked.OutputType())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &InfoFilter{expr: expr, prog: prog, enabled: true}, nil
}

// String returns the source expression.
func (f *InfoFilter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match reports whether info satisfies the filter. A nil filter matches.
func (f *InfoFilter) Match(info gdid.SequenceInfo) (bool, error) {
	if f == nil || !f.enabled {
		return true, nil
	}
	out, _, err := f.prog.Eval(map[string]any{
		"scope":     info.Scope,
		"sequence":  info.Sequence,
		"issuer":    info.IssuerName,
		"era":       int64(info.Era),
		"current":   int64(info.ApproximateCurrentValue),
		"total":     int64(info.TotalPreallocation),
		"remaining": int64(info.RemainingPreallocation),
		"issued_ms": info.IssueUtcDate.UnixMilli(),
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}

// Apply returns the entries of infos that match.
func (f *InfoFilter) Apply(infos []gdid.SequenceInfo) ([]gdid.SequenceInfo, error) {
	if f == nil || !f.enabled {
		return infos, nil
	}
	out := infos[:0:0]
	for _, info := range infos {
		ok, err := f.Match(info)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", f.expr, err)
		}
		if ok {
			out = append(out, info)
		}
	}
	return out, nil
}
