package expr

import (
	"fmt"
	"math"
)

// operand is an intermediate result: a scalar, or a vector read from a
// vector-valued node.
type operand struct {
	scalar float64
	vec    []float64
	isVec  bool
}

func scalar(f float64) operand { return operand{scalar: f} }

func (o operand) asScalar(where string) (float64, error) {
	if o.isVec {
		return 0, fmt.Errorf("%s requires a scalar operand, got a vector of length %d", where, len(o.vec))
	}
	return o.scalar, nil
}

type builtin struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(args []operand) (operand, error)
}

var builtins = map[string]builtin{
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"abs":  unary("abs", math.Abs),
	"pow": {minArgs: 2, maxArgs: 2, fn: func(args []operand) (operand, error) {
		x, err := args[0].asScalar("pow")
		if err != nil {
			return operand{}, err
		}
		y, err := args[1].asScalar("pow")
		if err != nil {
			return operand{}, err
		}
		return scalar(math.Pow(x, y)), nil
	}},
	"min":  reduce(math.Inf(1), math.Min, false),
	"max":  reduce(math.Inf(-1), math.Max, false),
	"sum":  reduce(0, func(acc, x float64) float64 { return acc + x }, false),
	"mean": reduce(0, func(acc, x float64) float64 { return acc + x }, true),
}

func unary(name string, f func(float64) float64) builtin {
	return builtin{minArgs: 1, maxArgs: 1, fn: func(args []operand) (operand, error) {
		x, err := args[0].asScalar(name)
		if err != nil {
			return operand{}, err
		}
		return scalar(f(x)), nil
	}}
}

// reduce folds every element of every argument, vectors flattened.
func reduce(init float64, step func(acc, x float64) float64, average bool) builtin {
	return builtin{minArgs: 1, maxArgs: -1, fn: func(args []operand) (operand, error) {
		acc, n := init, 0
		for _, a := range args {
			if !a.isVec {
				acc = step(acc, a.scalar)
				n++
				continue
			}
			for _, x := range a.vec {
				acc = step(acc, x)
				n++
			}
		}
		if average {
			if n == 0 {
				return scalar(math.NaN()), nil
			}
			acc /= float64(n)
		}
		return scalar(acc), nil
	}}
}

func arith(op byte, l, r float64) (float64, error) {
	switch op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		return l / r, nil
	default:
		return 0, fmt.Errorf("unknown operator: %c", op)
	}
}
