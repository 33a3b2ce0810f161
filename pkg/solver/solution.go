package solver

import (
	"encoding/json"
	"fmt"
)

// Algorithm identifies the outer loop that produced a [Solution].
type Algorithm int

const (
	// ProjectOnly alternates Project and SplitBlocks.
	ProjectOnly Algorithm = iota
	// QpscWithScaling runs gradient projection on a diagonally scaled matrix.
	QpscWithScaling
	// QpscWithoutScaling runs gradient projection on the unscaled matrix.
	QpscWithoutScaling
)

var algorithmNames = map[Algorithm]string{
	ProjectOnly:        "project",
	QpscWithScaling:    "qpsc-scaled",
	QpscWithoutScaling: "qpsc",
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	for k, v := range algorithmNames {
		if v == string(b) {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("unknown algorithm %q", b)
}

// Solution summarizes one call to [Solver.Solve].
type Solution struct {
	// NumberOfUnsatisfiableConstraints counts constraints that closed a
	// cycle or conflicted with an equality chain.
	NumberOfUnsatisfiableConstraints int `json:"unsatisfiable_constraints" toml:"unsatisfiable_constraints" yaml:"unsatisfiable_constraints"`

	OuterProjectIterations      int   `json:"outer_project_iterations" toml:"outer_project_iterations" yaml:"outer_project_iterations"`
	InnerProjectIterationsTotal int64 `json:"inner_project_iterations_total" toml:"inner_project_iterations_total" yaml:"inner_project_iterations_total"`
	MinInnerProjectIterations   int   `json:"min_inner_project_iterations" toml:"min_inner_project_iterations" yaml:"min_inner_project_iterations"`
	MaxInnerProjectIterations   int   `json:"max_inner_project_iterations" toml:"max_inner_project_iterations" yaml:"max_inner_project_iterations"`

	// MaxConstraintTreeDepth is the deepest spanning-tree walk performed.
	MaxConstraintTreeDepth int `json:"max_constraint_tree_depth" toml:"max_constraint_tree_depth" yaml:"max_constraint_tree_depth"`

	// GoalFunctionValue omits the constant Σ w·d² term.
	GoalFunctionValue float64 `json:"goal_function_value" toml:"goal_function_value" yaml:"goal_function_value"`

	AlgorithmUsed Algorithm `json:"algorithm" toml:"algorithm" yaml:"algorithm"`

	TimeLimitExceeded                   bool `json:"time_limit_exceeded,omitempty" toml:"time_limit_exceeded" yaml:"time_limit_exceeded,omitempty"`
	OuterProjectIterationsLimitExceeded bool `json:"outer_limit_exceeded,omitempty" toml:"outer_limit_exceeded" yaml:"outer_limit_exceeded,omitempty"`
	InnerProjectIterationsLimitExceeded bool `json:"inner_limit_exceeded,omitempty" toml:"inner_limit_exceeded" yaml:"inner_limit_exceeded,omitempty"`

	// Canceled reports that the context was done before convergence.
	Canceled bool `json:"canceled,omitempty" toml:"canceled" yaml:"canceled,omitempty"`
}

// ExecutionLimitExceeded reports whether any limit stopped the solve early.
func (s Solution) ExecutionLimitExceeded() bool {
	return s.TimeLimitExceeded || s.OuterProjectIterationsLimitExceeded || s.InnerProjectIterationsLimitExceeded
}

// String implements fmt.Stringer.
func (s Solution) String() string {
	data, _ := json.Marshal(s)
	return string(data)
}
