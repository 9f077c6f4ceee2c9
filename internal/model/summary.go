package model

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	gv "github.com/awalterschulze/gographviz"

	"github.com/gyaneshwarpardhi/phylodag/internal/dag"
	"github.com/gyaneshwarpardhi/phylodag/internal/value"
)

const rule = "-------------------------------------"

// WriteSummary prints one block per vertex: name, kind, function or
// distribution, value and the 1-based indices of parents and children.
func (m *Model) WriteSummary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Model with %d vertices\n", len(m.nodes))
	fmt.Fprintln(bw, rule)
	for i, n := range m.nodes {
		fmt.Fprintf(bw, "%-18s%s\n", "Vertex "+strconv.Itoa(i+1), n.Name())
		switch x := n.(type) {
		case *dag.ConstantNode:
			fmt.Fprintln(bw, "   Type         = Constant")
		case *dag.StochasticNode:
			fmt.Fprintln(bw, "   Type         = Stochastic")
			fmt.Fprintf(bw, "   Distribution = %v\n", x.Distribution())
		case *dag.DeterministicNode:
			fmt.Fprintln(bw, "   Type         = Deterministic")
			fmt.Fprintf(bw, "   Function     = %v\n", x.Function())
		}
		fmt.Fprintf(bw, "   Value        = %v\n", n.Value())
		fmt.Fprintf(bw, "   Parents      = %s\n", m.indexList(n.Parents(), "No Parents"))
		fmt.Fprintf(bw, "   Children     = %s\n", m.indexList(n.Children(), "No Children"))
	}
	fmt.Fprintln(bw, rule)
	return bw.Flush()
}

func (m *Model) indexList(nodes []dag.Node, none string) string {
	if len(nodes) == 0 {
		return none
	}
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = strconv.Itoa(m.IndexOf(n) + 1)
	}
	return strings.Join(parts, " ")
}

// NodeSummary is the JSON view of one vertex.
type NodeSummary struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Value    any      `json:"value"`
	Clamped  bool     `json:"clamped,omitempty"`
	LnProb   *float64 `json:"ln_prob,omitempty"`
	Parents  []int    `json:"parents"`
	Children []int    `json:"children"`
}

// Summary returns the JSON view of every vertex, indices 0-based. LnProb
// is omitted when it is not finite.
func (m *Model) Summary() []NodeSummary {
	out := make([]NodeSummary, len(m.nodes))
	for i, n := range m.nodes {
		s := NodeSummary{
			Index:    i,
			Name:     n.Name(),
			Kind:     string(n.Kind()),
			Value:    value.Native(n.Value()),
			Parents:  m.indices(n.Parents()),
			Children: m.indices(n.Children()),
		}
		if st, ok := n.(*dag.StochasticNode); ok {
			// Non-finite values have no JSON encoding.
			if lp := st.CalculateLnProbability(); !math.IsInf(lp, 0) && !math.IsNaN(lp) {
				s.LnProb = &lp
			}
			s.Clamped = st.IsClamped()
		}
		out[i] = s
	}
	return out
}

func (m *Model) indices(nodes []dag.Node) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = m.IndexOf(n)
	}
	return out
}

// DOT renders the model as a Graphviz digraph. Stochastic nodes are
// ellipses (filled when clamped), deterministic nodes are diamonds and
// constants are boxes.
func (m *Model) DOT() (string, error) {
	graphAst, _ := gv.ParseString(`digraph model {}`)
	graph := gv.NewGraph()
	if err := gv.Analyse(graphAst, graph); err != nil {
		return "", err
	}
	for i, n := range m.nodes {
		attrs := map[string]string{"label": strconv.Quote(n.Name())}
		switch x := n.(type) {
		case *dag.ConstantNode:
			attrs["shape"] = "box"
		case *dag.DeterministicNode:
			attrs["shape"] = "diamond"
		case *dag.StochasticNode:
			attrs["shape"] = "ellipse"
			if x.IsClamped() {
				attrs["style"] = "filled"
			}
		}
		if err := graph.AddNode("model", dotID(i), attrs); err != nil {
			return "", err
		}
	}
	for i, n := range m.nodes {
		for _, c := range n.Children() {
			j := m.IndexOf(c)
			if j < 0 {
				continue
			}
			if err := graph.AddEdge(dotID(i), dotID(j), true, nil); err != nil {
				return "", err
			}
		}
	}
	return graph.String(), nil
}

func dotID(i int) string { return "n" + strconv.Itoa(i+1) }
