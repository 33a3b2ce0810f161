package problem

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/vpsc/pkg/errors"
	"github.com/matzehuels/vpsc/pkg/solver"
)

const twoBoxesYAML = `name: two boxes
variables:
  - {id: 1, desired: 3}
  - {id: 2, desired: 5, weight: 1}
constraints:
  - {left: 2, right: 1, gap: 0}
parameters:
  gap_tolerance: 0.001
`

func TestRead_YAML(t *testing.T) {
	p, err := Read(strings.NewReader(twoBoxesYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "two boxes", p.Name)
	require.Len(t, p.Variables, 2)
	require.NotNil(t, p.Parameters)
	assert.Equal(t, 0.001, p.Parameters.GapTolerance)
	// Omitted parameters keep their defaults.
	assert.Equal(t, solver.DefaultQpscConvergenceEpsilon, p.Parameters.QpscConvergenceEpsilon)
	assert.True(t, p.Parameters.Advanced.UseViolationCache)

	res, err := p.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 4, res.PositionMap()[1], 1e-4)
	assert.InDelta(t, 4, res.PositionMap()[2], 1e-4)
	assert.Empty(t, res.Unsatisfiable)
}

func TestReadWithDefaults(t *testing.T) {
	base := solver.DefaultParameters()
	base.GapTolerance = 0.5
	base.OuterProjectIterationsLimit = 7

	p, err := ReadWithDefaults(strings.NewReader(twoBoxesYAML), FormatYAML, base)
	require.NoError(t, err)
	assert.Equal(t, 0.001, p.Parameters.GapTolerance, "file value wins")
	assert.Equal(t, 7, p.Parameters.OuterProjectIterationsLimit, "base fills the rest")
}

func TestRead_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{"json", FormatJSON, `{"variables":[{"id":1,"desired":0},{"id":2,"desired":0}],"constraints":[{"left":1,"right":2,"gap":2}]}`},
		{"toml", FormatTOML, "[[variables]]\nid = 1\ndesired = 0.0\n\n[[variables]]\nid = 2\ndesired = 0.0\n\n[[constraints]]\nleft = 1\nright = 2\ngap = 2.0\n"},
		{"yaml", FormatYAML, "variables:\n  - {id: 1, desired: 0}\n  - {id: 2, desired: 0}\nconstraints:\n  - {left: 1, right: 2, gap: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Read(strings.NewReader(tt.input), tt.format)
			require.NoError(t, err)
			res, err := p.Solve(context.Background(), nil)
			require.NoError(t, err)
			pos := res.PositionMap()
			assert.InDelta(t, -1, pos[1], 1e-4)
			assert.InDelta(t, 1, pos[2], 1e-4)
		})
	}
}

func TestRead_UnknownFields(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{"json", FormatJSON, `{"variables":[],"bogus":1}`},
		{"toml", FormatTOML, "bogus = 1\n"},
		{"yaml", FormatYAML, "bogus: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), tt.format)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, ".toml": FormatTOML, "YML": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))

	_, err = FormatFromPath("problem.txt")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := Random(7, 20, 30)
	p.Goals = []Goal{{A: 0, B: 1, Weight: 2}}
	p.Variables[3].Fixed = true

	for _, ext := range []string{".json", ".toml", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "p"+ext)
			require.NoError(t, p.WriteFile(path))
			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, p.Hash(), got.Hash())
			assert.Equal(t, p.Name, got.Name)
		})
	}
}

func TestReadFile_Errors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variables: [\n"), 0o644))
	_, err = ReadFile(path)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
}

func TestReadFile_NameFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout-x.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"variables":[{"id":1,"desired":2}]}`), 0o644))
	p, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "layout-x", p.Name)
}

func TestValidate(t *testing.T) {
	base := func() *Problem {
		return &Problem{
			Variables:   []Variable{{ID: 1}, {ID: 2}},
			Constraints: []Constraint{{Left: 1, Right: 2, Gap: 1}},
		}
	}
	bad := -1.0

	tests := []struct {
		name   string
		mutate func(p *Problem)
		code   errors.Code
	}{
		{"empty", func(p *Problem) { p.Variables = nil }, errors.ErrCodeInvalidInput},
		{"duplicate id", func(p *Problem) { p.Variables[1].ID = 1 }, errors.ErrCodeDuplicateVariable},
		{"negative weight", func(p *Problem) { p.Variables[0].Weight = bad }, errors.ErrCodeInvalidWeight},
		{"negative scale", func(p *Problem) { p.Variables[0].Scale = bad }, errors.ErrCodeInvalidScale},
		{"unknown left", func(p *Problem) { p.Constraints[0].Left = 9 }, errors.ErrCodeUnknownVariable},
		{"self constraint", func(p *Problem) { p.Constraints[0].Right = 1 }, errors.ErrCodeSelfConstraint},
		{"unknown goal", func(p *Problem) { p.Goals = []Goal{{A: 1, B: 9}} }, errors.ErrCodeUnknownVariable},
		{"self goal", func(p *Problem) { p.Goals = []Goal{{A: 1, B: 1}} }, errors.ErrCodeSelfConstraint},
		{"bad params", func(p *Problem) {
			params := solver.DefaultParameters()
			params.GapTolerance = 0
			p.Parameters = &params
		}, errors.ErrCodeInvalidParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			err := p.Validate()
			assert.Equal(t, tt.code, errors.GetCode(err), "got %v", err)
		})
	}
	assert.NoError(t, base().Validate())
}

func TestSolve_Unsatisfiable(t *testing.T) {
	p := &Problem{
		Variables: []Variable{{ID: 1}, {ID: 2}},
		Constraints: []Constraint{
			{Left: 1, Right: 2, Gap: 3},
			{Left: 2, Right: 1, Gap: 3},
		},
	}
	res, err := p.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Solution.NumberOfUnsatisfiableConstraints)
	require.Len(t, res.Unsatisfiable, 1)
}

func TestSolve_Fixed(t *testing.T) {
	p := &Problem{
		Variables: []Variable{
			{ID: 0, Desired: 0, Fixed: true},
			{ID: 1, Desired: 5},
			{ID: 2, Desired: 10, Fixed: true},
		},
		Constraints: []Constraint{{Left: 0, Right: 1, Gap: 6}, {Left: 1, Right: 2, Gap: 6}},
	}
	res, err := p.Solve(context.Background(), nil)
	require.NoError(t, err)
	pos0, ok := res.Position(0)
	require.True(t, ok)
	assert.InDelta(t, 0, pos0, 1e-3)
	assert.True(t, res.Positions[0].Fixed)
	_, ok = res.Position(42)
	assert.False(t, ok)
}

func TestHash(t *testing.T) {
	a, b := Chain(5, 1), Chain(5, 1)
	b.Name = "renamed"
	assert.Equal(t, a.Hash(), b.Hash())

	b.Constraints[0].Gap = 2
	assert.NotEqual(t, a.Hash(), b.Hash())

	p1, p2 := solver.DefaultParameters(), solver.DefaultParameters()
	assert.Equal(t, HashParameters(p1), HashParameters(p2))
	p2.Advanced.ForceQpsc = true
	assert.NotEqual(t, HashParameters(p1), HashParameters(p2))
}

func TestChain(t *testing.T) {
	p := Chain(4, 2)
	res, err := p.Solve(context.Background(), nil)
	require.NoError(t, err)
	pos := res.PositionMap()
	assert.InDelta(t, -3, pos[0], 1e-4)
	assert.InDelta(t, 3, pos[3], 1e-4)
}

func TestRandom(t *testing.T) {
	a, b := Random(42, 50, 80), Random(42, 50, 80)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), Random(43, 50, 80).Hash())
	require.NoError(t, a.Validate())
	for _, c := range a.Constraints {
		assert.Less(t, c.Left, c.Right)
	}

	res, err := a.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Solution.NumberOfUnsatisfiableConstraints)
	pos := res.PositionMap()
	for _, c := range a.Constraints {
		assert.GreaterOrEqual(t, pos[c.Right]-pos[c.Left], c.Gap-1e-3)
	}
	assert.Len(t, Random(1, 1, 10).Constraints, 0)
}

func TestResult_WriteRead(t *testing.T) {
	res, err := Chain(3, 1).Solve(context.Background(), nil)
	require.NoError(t, err)

	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, res.Write(&buf, f))
			got, err := ReadResult(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, res.Solution.AlgorithmUsed, got.Solution.AlgorithmUsed)
			assert.Equal(t, len(res.Positions), len(got.Positions))
			assert.InDelta(t, res.PositionMap()[2], got.PositionMap()[2], 1e-9)
		})
	}
}

func TestExampleProblems(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "problems", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			p, err := ReadFile(path)
			require.NoError(t, err)
			res, err := p.Solve(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(t, res.Unsatisfiable)
			for _, c := range p.Constraints {
				l, _ := res.Position(c.Left)
				r, _ := res.Position(c.Right)
				assert.GreaterOrEqual(t, r-l, c.Gap-1e-3, "%d -> %d", c.Left, c.Right)
			}
		})
	}
}
