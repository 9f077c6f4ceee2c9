package expr

import (
	"fmt"

	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// Env resolves identifiers to values during evaluation.
type Env interface {
	Resolve(name string) (value.Value, bool)
}

// Evaluate walks the AST and returns its scalar result. Division by zero and
// domain errors produce non-finite floats, not errors.
func Evaluate(e Expr, env Env) (float64, error) {
	o, err := eval(e, env)
	if err != nil {
		return 0, err
	}
	return o.asScalar("expression result")
}

func eval(e Expr, env Env) (operand, error) {
	switch x := e.(type) {
	case *NumberExpr:
		return scalar(x.Value), nil
	case *IdentExpr:
		return resolve(x.Name, env)
	case *UnaryExpr:
		o, err := eval(x.Expr, env)
		if err != nil {
			return operand{}, err
		}
		f, err := o.asScalar("unary minus")
		if err != nil {
			return operand{}, err
		}
		return scalar(-f), nil
	case *BinaryExpr:
		return evalBinary(x, env)
	case *CallExpr:
		args := make([]operand, len(x.Args))
		for i, a := range x.Args {
			o, err := eval(a, env)
			if err != nil {
				return operand{}, err
			}
			args[i] = o
		}
		return builtins[x.Func].fn(args)
	default:
		return operand{}, fmt.Errorf("unknown expr type %T", e)
	}
}

func evalBinary(e *BinaryExpr, env Env) (operand, error) {
	lo, err := eval(e.Left, env)
	if err != nil {
		return operand{}, err
	}
	ro, err := eval(e.Right, env)
	if err != nil {
		return operand{}, err
	}
	where := fmt.Sprintf("operator %c", e.Op)
	l, err := lo.asScalar(where)
	if err != nil {
		return operand{}, err
	}
	r, err := ro.asScalar(where)
	if err != nil {
		return operand{}, err
	}
	f, err := arith(e.Op, l, r)
	if err != nil {
		return operand{}, err
	}
	return scalar(f), nil
}

func resolve(name string, env Env) (operand, error) {
	v, ok := env.Resolve(name)
	if !ok {
		return operand{}, fmt.Errorf("identifier %q not found", name)
	}
	if f, ok := value.Float(v); ok {
		return scalar(f), nil
	}
	if fs, ok := value.Floats(v); ok {
		return operand{vec: fs, isVec: true}, nil
	}
	return operand{}, fmt.Errorf("identifier %q has non-numeric value %v", name, v)
}
