package value

import "math"

const simplexTolerance = 1e-9

// Convert returns v converted to type t. The second result is false when v
// is not convertible to t; values already of type t (or a subtype) are
// returned unchanged.
func Convert(v Value, t Type) (Value, bool) {
	if v == nil {
		return nil, false
	}
	if IsA(v.Type(), t) {
		return v, true
	}
	if f, ok := Float(v); ok {
		return convertScalar(f, v.Type(), t)
	}
	if fs, ok := Floats(v); ok {
		return convertVector(fs, t)
	}
	return nil, false
}

func convertScalar(f float64, from, to Type) (Value, bool) {
	isInt := IsA(from, TypeInteger)
	switch to {
	case TypeReal:
		return Real(f), true
	case TypePositiveReal:
		if f > 0 {
			return PositiveReal(f), true
		}
	case TypeProbability:
		if f >= 0 && f <= 1 {
			return Probability(f), true
		}
	case TypeInteger:
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return Integer(f), true
		}
	case TypeNatural:
		if isInt && f >= 0 {
			return Natural(f), true
		}
	}
	return nil, false
}

func convertVector(fs []float64, to Type) (Value, bool) {
	switch to {
	case TypeRealVector:
		out := make(RealVector, len(fs))
		copy(out, fs)
		return out, true
	case TypeSimplex:
		if len(fs) == 0 {
			return nil, false
		}
		sum := 0.0
		for _, f := range fs {
			if f < 0 {
				return nil, false
			}
			sum += f
		}
		if math.Abs(sum-1) > simplexTolerance {
			return nil, false
		}
		out := make(Simplex, len(fs))
		copy(out, fs)
		return out, true
	}
	return nil, false
}
