package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gyaneshwarpardhi/phylodag/internal/expr"
)

// Validate checks the config for:
//   - Required fields and positive run settings
//   - Duplicate node names
//   - Exactly one definition per node
//   - References to nodes not declared earlier (which also rules out cycles)
//   - Moves targeting free stochastic nodes
func Validate(cfg *ModelConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if cfg.Run.Chains < 1 || cfg.Run.Generations < 1 || cfg.Run.SampleEvery < 1 {
		errs = append(errs, "run: chains, generations and sample_every must be positive")
	}
	if cfg.Engine.ChainWorkers < 1 || cfg.Engine.QueueDepth < 1 {
		errs = append(errs, "engine: chain_workers and queue_depth must be positive")
	}

	declared := make(map[string]*NodeDef)
	for i := range cfg.Model.Nodes {
		nd := &cfg.Model.Nodes[i]
		if nd.Name == "" {
			errs = append(errs, fmt.Sprintf("model.nodes[%d]: name is required", i))
			continue
		}
		if _, ok := declared[nd.Name]; ok {
			errs = append(errs, fmt.Sprintf("duplicate node name %q (again at model.nodes[%d])", nd.Name, i))
			continue
		}
		validateNode(nd, declared, &errs)
		declared[nd.Name] = nd
	}

	if len(cfg.Model.Sinks) == 0 {
		errs = append(errs, "model: at least one sink is required")
	}
	for _, s := range cfg.Model.Sinks {
		if _, ok := declared[s]; !ok {
			errs = append(errs, fmt.Sprintf("model: sink %q is not a declared node", s))
		}
	}

	for i, mv := range cfg.Moves {
		validateMove(i, mv, declared, &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateNode(nd *NodeDef, declared map[string]*NodeDef, errs *[]string) {
	loc := fmt.Sprintf("node %s", nd.Name)
	set := 0
	for _, ok := range []bool{nd.Constant != nil, nd.Distribution != "", nd.Expression != "", nd.Model != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		*errs = append(*errs, fmt.Sprintf("%s: exactly one of constant/distribution/expression/model must be set", loc))
		return
	}
	ref := func(what, name string) {
		if _, ok := declared[name]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: %s references %q, which is not declared before it", loc, what, name))
		}
	}

	switch {
	case nd.Distribution != "":
		for _, p := range slices.Sorted(maps.Keys(nd.Params)) {
			if pr := nd.Params[p]; pr.Literal == nil {
				ref("param "+p, pr.Ref)
			}
		}
	case nd.Expression != "":
		ast, err := expr.Parse(nd.Expression)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s: expression: %v", loc, err))
			return
		}
		for _, id := range expr.Identifiers(ast) {
			ref("expression", id)
		}
	case nd.Model != "":
		ref("model", nd.Model)
	}
	if nd.Distribution == "" && (nd.Observed != nil || nd.Instantiated != nil || len(nd.Params) > 0) {
		*errs = append(*errs, fmt.Sprintf("%s: params/observed/instantiated require a distribution", loc))
	}
}

func validateMove(i int, mv MoveDef, declared map[string]*NodeDef, errs *[]string) {
	loc := fmt.Sprintf("moves[%d]", i)
	nd, ok := declared[mv.Node]
	switch {
	case !ok:
		*errs = append(*errs, fmt.Sprintf("%s: node %q is not declared", loc, mv.Node))
	case nd.Distribution == "":
		*errs = append(*errs, fmt.Sprintf("%s: node %q is not stochastic", loc, mv.Node))
	case nd.Observed != nil:
		*errs = append(*errs, fmt.Sprintf("%s: node %q is observed", loc, mv.Node))
	}
	if mv.Weight < 0 {
		*errs = append(*errs, fmt.Sprintf("%s: weight must not be negative", loc))
	}
	var tuning float64
	switch mv.Type {
	case "slide":
		tuning = mv.Delta
	case "scale":
		tuning = mv.Lambda
	case "simplex":
		tuning = mv.Alpha
	default:
		*errs = append(*errs, fmt.Sprintf("%s: unknown move type %q", loc, mv.Type))
		return
	}
	if tuning <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: %s move needs a positive tuning parameter", loc, mv.Type))
	}
}
