package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientCheckAllActivations(t *testing.T) {
	dims := Dims{Input: 5, Hidden: 4, Output: 1}
	for _, act := range allActivations {
		act := act
		t.Run(act.String(), func(t *testing.T) {
			network, err := NewNetwork(dims, act, InitXavier, 17)
			require.NoError(t, err)
			X, _ := blobs(5, 20, 0.5, 3)
			Y := randomLabels(20, 4)

			res, err := network.GradientCheck(X, Y, 1e-6)
			require.NoError(t, err)
			assert.Len(t, res.Analytic, dims.ParamCount())
			assert.Len(t, res.Numeric, dims.ParamCount())
			assert.Less(t, res.Difference, 1e-6, "worst parameter %s", res.WorstName)
			assert.InDelta(t, res.MaxAbsError, abs(res.Analytic[res.WorstIndex]-res.Numeric[res.WorstIndex]), 0)
		})
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGradientCheckLeavesParametersUntouched(t *testing.T) {
	dims := Dims{Input: 3, Hidden: 2, Output: 1}
	network, err := NewNetwork(dims, ActivationSigmoid, InitXavier, 1)
	require.NoError(t, err)
	before := ParametersToVector(network.Params)

	X, Y := blobs(3, 6, 1, 1)
	_, err = network.GradientCheck(X, Y, 0)
	require.NoError(t, err)
	assert.Equal(t, before, ParametersToVector(network.Params))
}

func TestParameterVectorRoundTrip(t *testing.T) {
	dims := Dims{Input: 3, Hidden: 2, Output: 1}
	p, err := InitializeParameters(dims, InitHe, newRand(5))
	require.NoError(t, err)

	theta := ParametersToVector(p)
	require.Len(t, theta, dims.ParamCount())
	back, err := VectorToParameters(theta, dims)
	require.NoError(t, err)
	assert.Equal(t, theta, ParametersToVector(back))

	_, err = VectorToParameters(theta[1:], dims)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestParameterName(t *testing.T) {
	dims := Dims{Input: 3, Hidden: 2, Output: 1}
	assert.Equal(t, "W1[0,0]", parameterName(0, dims))
	assert.Equal(t, "W1[1,2]", parameterName(5, dims))
	assert.Equal(t, "b1[1,0]", parameterName(7, dims))
	assert.Equal(t, "W2[0,1]", parameterName(9, dims))
	assert.Equal(t, "b2[0,0]", parameterName(10, dims))
	assert.Equal(t, "?", parameterName(11, dims))
}
