package solver

import (
	"math"

	"github.com/matzehuels/vpsc/pkg/errors"
)

// Default parameter values.
const (
	DefaultGapTolerance                   = 1e-4
	DefaultQpscConvergenceEpsilon         = 1e-5
	DefaultQpscConvergenceQuotient        = 1e-6
	DefaultMinSplitLagrangianThreshold    = -1e-7
	DefaultViolationCacheMinBlocksDivisor = 10
	DefaultViolationCacheMinBlocksCount   = 100
)

// Parameters controls a call to [Solver.Solve].
//
// Iteration limits follow one convention: a negative limit is derived from
// the problem size, zero means unbounded, and a positive value is used as is.
type Parameters struct {
	// GapTolerance is the violation below which a constraint counts as satisfied.
	GapTolerance float64 `json:"gap_tolerance" toml:"gap_tolerance" yaml:"gap_tolerance"`

	// QpscConvergenceEpsilon is the absolute change in the goal function
	// below which gradient projection stops.
	QpscConvergenceEpsilon float64 `json:"qpsc_convergence_epsilon" toml:"qpsc_convergence_epsilon" yaml:"qpsc_convergence_epsilon"`

	// QpscConvergenceQuotient is the relative change in the goal function
	// below which gradient projection stops.
	QpscConvergenceQuotient float64 `json:"qpsc_convergence_quotient" toml:"qpsc_convergence_quotient" yaml:"qpsc_convergence_quotient"`

	OuterProjectIterationsLimit int `json:"outer_project_iterations_limit" toml:"outer_project_iterations_limit" yaml:"outer_project_iterations_limit"`
	InnerProjectIterationsLimit int `json:"inner_project_iterations_limit" toml:"inner_project_iterations_limit" yaml:"inner_project_iterations_limit"`

	// TimeLimit is the wall-clock budget in milliseconds; <= 0 disables it.
	TimeLimit int64 `json:"time_limit_ms" toml:"time_limit_ms" yaml:"time_limit_ms"`

	Advanced AdvancedParameters `json:"advanced" toml:"advanced" yaml:"advanced"`
}

// AdvancedParameters are tuning knobs that rarely need changing.
type AdvancedParameters struct {
	// ForceQpsc runs gradient projection even without neighbor pairs.
	ForceQpsc bool `json:"force_qpsc" toml:"force_qpsc" yaml:"force_qpsc"`

	// ScaleInQpsc applies diagonal scaling to the gradient projection matrix.
	ScaleInQpsc bool `json:"scale_in_qpsc" toml:"scale_in_qpsc" yaml:"scale_in_qpsc"`

	// MinSplitLagrangianThreshold is the multiplier a constraint must be
	// below for its block to be split there. It absorbs rounding error.
	MinSplitLagrangianThreshold float64 `json:"min_split_lagrangian_threshold" toml:"min_split_lagrangian_threshold" yaml:"min_split_lagrangian_threshold"`

	UseViolationCache              bool `json:"use_violation_cache" toml:"use_violation_cache" yaml:"use_violation_cache"`
	ViolationCacheMinBlocksDivisor int  `json:"violation_cache_min_blocks_divisor" toml:"violation_cache_min_blocks_divisor" yaml:"violation_cache_min_blocks_divisor"`
	ViolationCacheMinBlocksCount   int  `json:"violation_cache_min_blocks_count" toml:"violation_cache_min_blocks_count" yaml:"violation_cache_min_blocks_count"`

	// Verify enables internal consistency checks (cycle detection in the
	// active constraint tree, derivative conservation). Failures are
	// returned from Solve as INTERNAL_ERROR.
	Verify bool `json:"verify,omitempty" toml:"verify,omitempty" yaml:"verify,omitempty"`
}

// DefaultParameters returns the parameters used when Solve is given nil.
func DefaultParameters() Parameters {
	return Parameters{
		GapTolerance:                DefaultGapTolerance,
		QpscConvergenceEpsilon:      DefaultQpscConvergenceEpsilon,
		QpscConvergenceQuotient:     DefaultQpscConvergenceQuotient,
		OuterProjectIterationsLimit: -1,
		InnerProjectIterationsLimit: -1,
		TimeLimit:                   -1,
		Advanced: AdvancedParameters{
			ForceQpsc:                      false,
			ScaleInQpsc:                    true,
			MinSplitLagrangianThreshold:    DefaultMinSplitLagrangianThreshold,
			UseViolationCache:              true,
			ViolationCacheMinBlocksDivisor: DefaultViolationCacheMinBlocksDivisor,
			ViolationCacheMinBlocksCount:   DefaultViolationCacheMinBlocksCount,
		},
	}
}

// Validate checks that the parameters are usable.
func (p *Parameters) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"gap_tolerance", p.GapTolerance},
		{"qpsc_convergence_epsilon", p.QpscConvergenceEpsilon},
		{"qpsc_convergence_quotient", p.QpscConvergenceQuotient},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value <= 0 {
			return errors.New(errors.ErrCodeInvalidParameters, "%s must be positive and finite, got %g", c.name, c.value)
		}
	}
	t := p.Advanced.MinSplitLagrangianThreshold
	if math.IsNaN(t) || math.IsInf(t, 0) || t > 0 {
		return errors.New(errors.ErrCodeInvalidParameters, "min_split_lagrangian_threshold must be finite and <= 0, got %g", t)
	}
	if p.Advanced.ViolationCacheMinBlocksDivisor < 0 || p.Advanced.ViolationCacheMinBlocksCount < 0 {
		return errors.New(errors.ErrCodeInvalidParameters, "violation cache sizing must not be negative")
	}
	return nil
}

// autoLimit derives an iteration limit from a problem size:
// 100·(⌊log2 n⌋ + 1), with n treated as at least 1.
func autoLimit(n int) int {
	if n < 1 {
		n = 1
	}
	return 100 * (int(math.Log2(float64(n))) + 1)
}
