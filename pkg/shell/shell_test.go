package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/vpsc/pkg/errors"
)

func position(t *testing.T, sh *Shell, id int) float64 {
	t.Helper()
	p, err := sh.Position(id)
	require.NoError(t, err)
	return p
}

func TestShell_Solve(t *testing.T) {
	sh := New()
	require.NoError(t, sh.AddVariable(10, 2, 1))
	require.NoError(t, sh.AddVariable(20, 2, 1))
	require.NoError(t, sh.AddConstraint(10, 20, 4, false))

	sol, err := sh.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, sol.NumberOfUnsatisfiableConstraints)
	assert.InDelta(t, 0, position(t, sh, 10), 1e-6)
	assert.InDelta(t, 4, position(t, sh, 20), 1e-6)
	assert.Equal(t, sol, sh.Solution())

	d, err := sh.DesiredPosition(20)
	require.NoError(t, err)
	assert.Equal(t, 2.0, d)
	assert.Equal(t, []int{10, 20}, sh.IDs())
}

func TestShell_FixedVariablesWin(t *testing.T) {
	sh := New()
	require.NoError(t, sh.AddFixedVariable(0, 0))
	require.NoError(t, sh.AddFixedVariable(1, 10))
	require.NoError(t, sh.AddConstraint(0, 1, 20, false))

	_, err := sh.Solve(context.Background(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0, position(t, sh, 0), fixedMoveTolerance)
	assert.InDelta(t, 10, position(t, sh, 1), fixedMoveTolerance)
	assert.True(t, sh.IsFixed(0))
}

func TestShell_FixedVariablesSqueezeFreeVariable(t *testing.T) {
	sh := New()
	require.NoError(t, sh.AddFixedVariable(0, 0))
	require.NoError(t, sh.AddVariable(1, 5, 1))
	require.NoError(t, sh.AddFixedVariable(2, 10))
	require.NoError(t, sh.AddConstraint(0, 1, 6, false))
	require.NoError(t, sh.AddConstraint(1, 2, 6, false))

	_, err := sh.Solve(context.Background(), nil)
	require.NoError(t, err)

	assert.InDelta(t, 0, position(t, sh, 0), fixedMoveTolerance)
	assert.InDelta(t, 5, position(t, sh, 1), 1e-2)
	assert.InDelta(t, 10, position(t, sh, 2), fixedMoveTolerance)
}

func TestShell_Goals(t *testing.T) {
	sh := New()
	require.NoError(t, sh.AddVariable(1, 0, 1))
	require.NoError(t, sh.AddVariable(2, 20, 1))
	require.NoError(t, sh.AddGoal(1, 2, 1))

	sol, err := sh.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, "project", sol.AlgorithmUsed.String())
	// The pair attracts: optimum is 20/3 and 40/3.
	assert.InDelta(t, 20.0/3, position(t, sh, 1), 1e-2)
	assert.InDelta(t, 40.0/3, position(t, sh, 2), 1e-2)
}

func TestShell_Errors(t *testing.T) {
	sh := New()
	require.NoError(t, sh.AddVariable(1, 0, 1))

	tests := []struct {
		name string
		err  error
		code errors.Code
	}{
		{"duplicate", sh.AddVariable(1, 0, 1), errors.ErrCodeDuplicateVariable},
		{"duplicate fixed", sh.AddFixedVariable(1, 0), errors.ErrCodeDuplicateVariable},
		{"unknown left", sh.AddConstraint(7, 1, 1, false), errors.ErrCodeUnknownVariable},
		{"unknown right", sh.AddConstraint(1, 7, 1, false), errors.ErrCodeUnknownVariable},
		{"unknown goal", sh.AddGoal(1, 7, 1), errors.ErrCodeUnknownVariable},
		{"bad weight", sh.AddVariable(2, 0, -1), errors.ErrCodeInvalidWeight},
		{"self constraint", sh.AddConstraint(1, 1, 1, false), errors.ErrCodeSelfConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, errors.GetCode(tt.err))
		})
	}

	_, err := sh.Position(42)
	assert.True(t, errors.Is(err, errors.ErrCodeUnknownVariable))
	assert.False(t, sh.Contains(2))
	assert.True(t, sh.Contains(1))
}

func TestSpan(t *testing.T) {
	var s span
	assert.Zero(t, s.length())
	s.add(3)
	assert.Zero(t, s.length())
	s.add(-1)
	s.add(2)
	assert.Equal(t, 4.0, s.length())
}
