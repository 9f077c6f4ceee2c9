package dag

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

var (
	// ErrInvalidGraph is returned when an edge would close a cycle or a
	// parameter slot is left unbound. The graph is unchanged.
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrIllegalState is returned when an operation is forbidden in the
	// node's current state (e.g. setting the value of a clamped node).
	ErrIllegalState = errors.New("illegal node state")
	// ErrTypeMismatch matches every *TypeMismatchError.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrNotAParent is returned by SwapParentNode for a node that is not a parent.
	ErrNotAParent = errors.New("node is not a parent")
)

// TypeMismatchError reports a value whose type is neither identical nor
// convertible to the type a distribution requires.
type TypeMismatchError struct {
	Node     string
	Supplied value.Type
	Required value.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot clamp stochastic node %q with value of type %q because the distribution requires a %q",
		e.Node, e.Supplied, e.Required)
}

// Is makes errors.Is(err, ErrTypeMismatch) hold.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}
