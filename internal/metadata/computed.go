package metadata

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bread/internal/core/apperror"
)

// compileComputed compiles the CEL expression of every computed field of m.
// Variables are the model's scalar fields.
func (r *Registry) compileComputed(m *Model) []error {
	var opts []cel.EnvOption
	for _, f := range m.Fields {
		if f.Kind == KindScalar || f.Kind == KindRelationToOne {
			opts = append(opts, cel.Variable(f.Name, cel.DynType))
		}
	}

	var env *cel.Env
	var errs []error
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Kind != KindComputed || f.Expr == "" {
			continue
		}
		if env == nil {
			var err error
			env, err = cel.NewEnv(opts...)
			if err != nil {
				return []error{fmt.Errorf("%s: cel env: %w", m.Key(), err)}
			}
		}
		ast, iss := env.Compile(f.Expr)
		if iss != nil && iss.Err() != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", m.Key(), f.Name, iss.Err()))
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", m.Key(), f.Name, err))
			continue
		}
		r.programs[m.Key()+"."+f.Name] = prg
	}
	return errs
}

// Compute evaluates a computed field against a row's values.
func (r *Registry) Compute(m *Model, f *Field, values map[string]any) (any, error) {
	prg, ok := r.programs[m.Key()+"."+f.Name]
	if !ok {
		return nil, apperror.NewModelConfiguration(fmt.Sprintf("%s.%s is not a computed field", m.Key(), f.Name))
	}

	activation := make(map[string]any, len(m.Fields))
	for _, field := range m.Fields {
		if field.Kind != KindScalar && field.Kind != KindRelationToOne {
			continue
		}
		activation[field.Name] = celValue(values[field.Name])
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s.%s: %w", m.Key(), f.Name, err)
	}
	if out == types.NullValue {
		return nil, nil
	}
	return goValue(out.Value()), nil
}

func celValue(v any) any {
	switch x := v.(type) {
	case nil:
		return types.NullValue
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case uuid.UUID:
		return x.String()
	case int:
		return int64(x)
	}
	return v
}

func goValue(v any) any {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case time.Time:
		return x
	}
	return v
}
