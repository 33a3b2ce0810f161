// Package problem describes serializable solver instances.
//
// A [Problem] lists variables by integer id, separation constraints between
// them, optional closeness goals and optional solver parameters. Problems
// are read from and written to JSON, TOML or YAML files, hashed for caching,
// and turned into a ready-to-solve [shell.Shell] with [Problem.Build].
//
// # File Format
//
// The YAML form of a small problem:
//
//	name: two boxes
//	variables:
//	  - {id: 1, desired: 3}
//	  - {id: 2, desired: 5, weight: 2}
//	constraints:
//	  - {left: 1, right: 2, gap: 4}
//	goals:
//	  - {a: 1, b: 2, weight: 0.5}
//	parameters:
//	  gap_tolerance: 0.0001
//
// Weight and scale default to 1 when omitted.
package problem

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/vpsc/pkg/cache"
	"github.com/matzehuels/vpsc/pkg/errors"
	"github.com/matzehuels/vpsc/pkg/shell"
	"github.com/matzehuels/vpsc/pkg/solver"
)

// Variable is one scalar unknown.
type Variable struct {
	ID      int     `json:"id" toml:"id" yaml:"id"`
	Desired float64 `json:"desired" toml:"desired" yaml:"desired"`
	Weight  float64 `json:"weight,omitempty" toml:"weight,omitempty" yaml:"weight,omitempty"`
	Scale   float64 `json:"scale,omitempty" toml:"scale,omitempty" yaml:"scale,omitempty"`

	// Fixed variables keep their desired position; constraints around them
	// are relaxed instead.
	Fixed bool `json:"fixed,omitempty" toml:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// Constraint requires Left + Gap <= Right (or == when Equality is set).
type Constraint struct {
	Left     int     `json:"left" toml:"left" yaml:"left"`
	Right    int     `json:"right" toml:"right" yaml:"right"`
	Gap      float64 `json:"gap" toml:"gap" yaml:"gap"`
	Equality bool    `json:"equality,omitempty" toml:"equality,omitempty" yaml:"equality,omitempty"`
}

// Goal asks for A and B to be close, with the given weight.
type Goal struct {
	A      int     `json:"a" toml:"a" yaml:"a"`
	B      int     `json:"b" toml:"b" yaml:"b"`
	Weight float64 `json:"weight,omitempty" toml:"weight,omitempty" yaml:"weight,omitempty"`
}

// Problem is a complete solver instance.
type Problem struct {
	Name        string             `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	Variables   []Variable         `json:"variables" toml:"variables" yaml:"variables"`
	Constraints []Constraint       `json:"constraints,omitempty" toml:"constraints,omitempty" yaml:"constraints,omitempty"`
	Goals       []Goal             `json:"goals,omitempty" toml:"goals,omitempty" yaml:"goals,omitempty"`
	Parameters  *solver.Parameters `json:"parameters,omitempty" toml:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Params returns the problem's parameters, or the defaults if it has none.
func (p *Problem) Params() solver.Parameters {
	if p.Parameters == nil {
		return solver.DefaultParameters()
	}
	return *p.Parameters
}

// Validate checks ids, references and numeric fields.
func (p *Problem) Validate() error {
	if len(p.Variables) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "problem has no variables")
	}
	ids := make(map[int]bool, len(p.Variables))
	for i, v := range p.Variables {
		if ids[v.ID] {
			return errors.New(errors.ErrCodeDuplicateVariable, "variables[%d]: duplicate id %d", i, v.ID)
		}
		ids[v.ID] = true
		if err := errors.ValidateFinite(fmt.Sprintf("variables[%d].desired", i), v.Desired); err != nil {
			return err
		}
		if v.Weight != 0 {
			if err := errors.ValidateWeight(fmt.Sprintf("variables[%d]", i), v.Weight); err != nil {
				return err
			}
		}
		if v.Scale != 0 {
			if err := errors.ValidateScale(v.Scale); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidScale, err, "variables[%d]", i)
			}
		}
	}

	for i, c := range p.Constraints {
		if !ids[c.Left] || !ids[c.Right] {
			return errors.New(errors.ErrCodeUnknownVariable, "constraints[%d]: unknown variable in %d -> %d", i, c.Left, c.Right)
		}
		if c.Left == c.Right {
			return errors.New(errors.ErrCodeSelfConstraint, "constraints[%d]: variable %d constrained to itself", i, c.Left)
		}
		if err := errors.ValidateFinite(fmt.Sprintf("constraints[%d].gap", i), c.Gap); err != nil {
			return err
		}
	}

	for i, g := range p.Goals {
		if !ids[g.A] || !ids[g.B] {
			return errors.New(errors.ErrCodeUnknownVariable, "goals[%d]: unknown variable in %d ~ %d", i, g.A, g.B)
		}
		if g.A == g.B {
			return errors.New(errors.ErrCodeSelfConstraint, "goals[%d]: variable %d paired with itself", i, g.A)
		}
		if g.Weight != 0 {
			if err := errors.ValidateWeight(fmt.Sprintf("goals[%d]", i), g.Weight); err != nil {
				return err
			}
		}
	}

	if p.Parameters != nil {
		if err := p.Parameters.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Build validates the problem and registers it with a new Shell.
func (p *Problem) Build() (*shell.Shell, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sh := shell.New()
	for _, v := range p.Variables {
		var err error
		if v.Fixed {
			err = sh.AddFixedVariable(v.ID, v.Desired)
		} else {
			err = sh.AddScaledVariable(v.ID, v.Desired, orOne(v.Weight), orOne(v.Scale))
		}
		if err != nil {
			return nil, fmt.Errorf("variable %d: %w", v.ID, err)
		}
	}
	for _, c := range p.Constraints {
		if err := sh.AddConstraint(c.Left, c.Right, c.Gap, c.Equality); err != nil {
			return nil, fmt.Errorf("constraint %d -> %d: %w", c.Left, c.Right, err)
		}
	}
	for _, g := range p.Goals {
		if err := sh.AddGoal(g.A, g.B, orOne(g.Weight)); err != nil {
			return nil, fmt.Errorf("goal %d ~ %d: %w", g.A, g.B, err)
		}
	}
	return sh, nil
}

// Solve builds and solves the problem with params (nil means the problem's
// own parameters).
func (p *Problem) Solve(ctx context.Context, params *solver.Parameters) (*Result, error) {
	sh, err := p.Build()
	if err != nil {
		return nil, err
	}
	if params == nil {
		pp := p.Params()
		params = &pp
	}
	if _, err := sh.Solve(ctx, params); err != nil {
		return nil, err
	}
	return NewResult(p, sh), nil
}

// Hash returns a content hash of the variables, constraints and goals.
// The name and parameters do not contribute; see [HashParameters].
func (p *Problem) Hash() string {
	data, _ := json.Marshal(struct {
		Variables   []Variable
		Constraints []Constraint
		Goals       []Goal
	}{p.Variables, p.Constraints, p.Goals})
	return cache.Hash(data)
}

// HashParameters returns a content hash of solver parameters.
func HashParameters(params solver.Parameters) string {
	data, _ := json.Marshal(params)
	return cache.Hash(data)
}

func orOne(x float64) float64 {
	if x == 0 {
		return 1
	}
	return x
}
