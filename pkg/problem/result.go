package problem

import (
	"io"
	"os"

	"github.com/matzehuels/vpsc/pkg/errors"
	"github.com/matzehuels/vpsc/pkg/shell"
	"github.com/matzehuels/vpsc/pkg/solver"
)

// Position is the resolved position of one variable.
type Position struct {
	ID       int     `json:"id" toml:"id" yaml:"id"`
	Position float64 `json:"position" toml:"position" yaml:"position"`
	Desired  float64 `json:"desired" toml:"desired" yaml:"desired"`
	Fixed    bool    `json:"fixed,omitempty" toml:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// ConstraintRef identifies a constraint by its variable ids.
type ConstraintRef struct {
	Left  int     `json:"left" toml:"left" yaml:"left"`
	Right int     `json:"right" toml:"right" yaml:"right"`
	Gap   float64 `json:"gap" toml:"gap" yaml:"gap"`
}

// Result is the outcome of solving a Problem.
type Result struct {
	Name          string          `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	Positions     []Position      `json:"positions" toml:"positions" yaml:"positions"`
	Solution      solver.Solution `json:"solution" toml:"solution" yaml:"solution"`
	Unsatisfiable []ConstraintRef `json:"unsatisfiable,omitempty" toml:"unsatisfiable,omitempty" yaml:"unsatisfiable,omitempty"`

	// Cached is set when the result was served from a cache.
	Cached bool `json:"cached,omitempty" toml:"cached,omitempty" yaml:"cached,omitempty"`
}

// NewResult collects positions and unsatisfiable constraints from a solved
// shell. Positions follow the problem's variable order.
func NewResult(p *Problem, sh *shell.Shell) *Result {
	r := &Result{
		Name:      p.Name,
		Positions: make([]Position, 0, len(p.Variables)),
		Solution:  sh.Solution(),
	}
	for _, v := range p.Variables {
		pos, _ := sh.Position(v.ID)
		r.Positions = append(r.Positions, Position{
			ID:       v.ID,
			Position: pos,
			Desired:  v.Desired,
			Fixed:    v.Fixed,
		})
	}
	for _, c := range sh.Solver().Constraints() {
		if !c.IsUnsatisfiable() {
			continue
		}
		l, _ := c.Left().Tag().(int)
		rt, _ := c.Right().Tag().(int)
		r.Unsatisfiable = append(r.Unsatisfiable, ConstraintRef{Left: l, Right: rt, Gap: c.Gap()})
	}
	return r
}

// PositionMap returns positions keyed by variable id.
func (r *Result) PositionMap() map[int]float64 {
	m := make(map[int]float64, len(r.Positions))
	for _, p := range r.Positions {
		m[p.ID] = p.Position
	}
	return m
}

// Position returns the position of id.
func (r *Result) Position(id int) (float64, bool) {
	for _, p := range r.Positions {
		if p.ID == id {
			return p.Position, true
		}
	}
	return 0, false
}

// Write encodes the result.
func (r *Result) Write(w io.Writer, format Format) error {
	return encode(w, format, r)
}

// WriteFile writes the result, selecting the format from the file extension.
func (r *Result) WriteFile(path string) error {
	return writeFile(path, r)
}

// ReadResult decodes a result.
func ReadResult(rd io.Reader, format Format) (*Result, error) {
	var r Result
	if err := decode(rd, format, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ReadResultFile reads a result, selecting the format from the file extension.
func ReadResultFile(path string) (*Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "result file %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadResult(f, format)
}
