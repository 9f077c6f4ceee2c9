package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type names the variable type of a value.
type Type string

const (
	TypeReal         Type = "Real"
	TypePositiveReal Type = "PositiveReal"
	TypeProbability  Type = "Probability"
	TypeInteger      Type = "Integer"
	TypeNatural      Type = "Natural"
	TypeRealVector   Type = "RealVector"
	TypeSimplex      Type = "Simplex"
)

// parentType encodes the type hierarchy: a value of the key type is also
// a value of every type reached by following this map.
var parentType = map[Type]Type{
	TypeNatural:      TypeInteger,
	TypeProbability:  TypePositiveReal,
	TypePositiveReal: TypeReal,
	TypeSimplex:      TypeRealVector,
}

// IsA reports whether t is required or a subtype of required.
func IsA(t, required Type) bool {
	for cur := t; cur != ""; cur = parentType[cur] {
		if cur == required {
			return true
		}
	}
	return false
}

// Value is a typed value owned by a DAG node.
type Value interface {
	Type() Type
	Clone() Value
	String() string
}

// -----------------------------------------------------------------------
// Scalars
// -----------------------------------------------------------------------

// Real is an unconstrained real number.
type Real float64

func (Real) Type() Type { return TypeReal }
func (r Real) Clone() Value { return r }
func (r Real) String() string { return formatFloat(float64(r)) }

// PositiveReal is a real number > 0.
type PositiveReal float64

func (PositiveReal) Type() Type { return TypePositiveReal }
func (r PositiveReal) Clone() Value { return r }
func (r PositiveReal) String() string { return formatFloat(float64(r)) }

// Probability is a real number in [0, 1].
type Probability float64

func (Probability) Type() Type { return TypeProbability }
func (p Probability) Clone() Value { return p }
func (p Probability) String() string { return formatFloat(float64(p)) }

// Integer is a signed integer.
type Integer int64

func (Integer) Type() Type { return TypeInteger }
func (i Integer) Clone() Value { return i }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Natural is an integer >= 0.
type Natural int64

func (Natural) Type() Type { return TypeNatural }
func (n Natural) Clone() Value { return n }
func (n Natural) String() string { return strconv.FormatInt(int64(n), 10) }

// -----------------------------------------------------------------------
// Vectors
// -----------------------------------------------------------------------

// RealVector is an ordered list of reals. In-place edits must go through a
// Holder's Mutable view.
type RealVector []float64

func (RealVector) Type() Type { return TypeRealVector }

func (v RealVector) Clone() Value {
	out := make(RealVector, len(v))
	copy(out, v)
	return out
}

func (v RealVector) String() string { return formatVector(v) }

// Simplex is a non-negative vector summing to one.
type Simplex []float64

func (Simplex) Type() Type { return TypeSimplex }

func (s Simplex) Clone() Value {
	out := make(Simplex, len(s))
	copy(out, s)
	return out
}

func (s Simplex) String() string { return formatVector(s) }

// -----------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------

// Float returns the numeric value of any scalar.
func Float(v Value) (float64, bool) {
	switch x := v.(type) {
	case Real:
		return float64(x), true
	case PositiveReal:
		return float64(x), true
	case Probability:
		return float64(x), true
	case Integer:
		return float64(x), true
	case Natural:
		return float64(x), true
	}
	return 0, false
}

// Floats returns the elements of a vector value. The returned slice aliases
// the value and must not be modified.
func Floats(v Value) ([]float64, bool) {
	switch x := v.(type) {
	case RealVector:
		return x, true
	case Simplex:
		return x, true
	}
	return nil, false
}

// WithFloat returns a scalar of the same type as like holding f.
// Integer types are rounded.
func WithFloat(like Value, f float64) (Value, error) {
	switch like.(type) {
	case Real:
		return Real(f), nil
	case PositiveReal:
		return PositiveReal(f), nil
	case Probability:
		return Probability(f), nil
	case Integer:
		return Integer(math.Round(f)), nil
	case Natural:
		return Natural(math.Round(f)), nil
	}
	return nil, fmt.Errorf("value: %s is not a scalar", like.Type())
}

// Native returns v as a plain Go value (float64, int64 or []float64),
// suitable for JSON encoding.
func Native(v Value) any {
	switch x := v.(type) {
	case Integer:
		return int64(x)
	case Natural:
		return int64(x)
	}
	if f, ok := Float(v); ok {
		return f
	}
	if fs, ok := Floats(v); ok {
		out := make([]float64, len(fs))
		copy(out, fs)
		return out
	}
	if v == nil {
		return nil
	}
	return v.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = formatFloat(f)
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}
