package sample

import (
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

// Sample is the state of one chain at a logged generation.
type Sample struct {
	ID          string         `json:"id"`
	Chain       int            `json:"chain"`
	Generation  int            `json:"generation"`
	LnPosterior float64        `json:"ln_posterior"`
	Values      map[string]any `json:"values"` // node name -> plain value
	RecordedAt  time.Time      `json:"recorded_at"`
}

// Take records the current values of every non-constant node.
// Constants never change and would only bloat the trace.
func Take(chain, generation int, lnPosterior float64, nodes []dag.Node) Sample {
	vals := make(map[string]any, len(nodes))
	for _, n := range nodes {
		if n.Kind() == dag.KindConstant {
			continue
		}
		vals[n.Name()] = value.Native(n.Value())
	}
	return Sample{
		ID:          uuid.NewString(),
		Chain:       chain,
		Generation:  generation,
		LnPosterior: lnPosterior,
		Values:      vals,
		RecordedAt:  time.Now().UTC(),
	}
}
