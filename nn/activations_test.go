package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

var allActivations = []ActivationType{
	ActivationReLU,
	ActivationSigmoid,
	ActivationTanh,
	ActivationLeakyReLU,
}

func TestActivateKnownValues(t *testing.T) {
	assert.InDelta(t, 1/(1+math.Exp(-0.5)), activate(0.5, ActivationSigmoid), 1e-12)
	assert.InDelta(t, 0.5, activate(0, ActivationSigmoid), 1e-12)
	assert.Equal(t, 0.0, activate(-2, ActivationReLU))
	assert.Equal(t, 3.0, activate(3, ActivationReLU))
	assert.InDelta(t, -0.02, activate(-2, ActivationLeakyReLU), 1e-12)
	assert.InDelta(t, math.Tanh(0.3), activate(0.3, ActivationTanh), 1e-12)

	// Large magnitudes must not overflow to NaN.
	assert.InDelta(t, 0.0, activate(-1000, ActivationSigmoid), 1e-12)
	assert.InDelta(t, 1.0, activate(1000, ActivationSigmoid), 1e-12)
}

func TestActivateMatrixLeavesInputUntouched(t *testing.T) {
	Z := mat.NewDense(2, 2, []float64{-1, 2, 0, -3})
	A := Activate(Z, ActivationReLU)

	assert.Equal(t, []float64{0, 2, 0, 0}, A.RawMatrix().Data)
	assert.Equal(t, []float64{-1, 2, 0, -3}, Z.RawMatrix().Data)
}

func TestActivationDerivativeMatchesFiniteDifference(t *testing.T) {
	// Points chosen away from the ReLU kink at 0.
	points := []float64{-2.5, -0.7, 0.3, 1.9}
	for _, act := range allActivations {
		act := act
		t.Run(act.String(), func(t *testing.T) {
			f := func(x float64) float64 { return activate(x, act) }
			for _, x := range points {
				want := fd.Derivative(f, x, &fd.Settings{Formula: fd.Central, Step: 1e-6})
				assert.InDelta(t, want, activateDerivative(x, act), 1e-6, "x=%v", x)
			}
		})
	}
}

func TestActivationBackward(t *testing.T) {
	Z := mat.NewDense(1, 3, []float64{-1, 0, 2})
	dA := mat.NewDense(1, 3, []float64{5, 5, 5})

	dZ, err := ActivationBackward(dA, Z, ActivationReLU)
	require.NoError(t, err)
	// ReLU passes the gradient only where z > 0.
	assert.Equal(t, []float64{0, 0, 5}, dZ.RawMatrix().Data)

	dZ, err = ActivationBackward(dA, Z, ActivationSigmoid)
	require.NoError(t, err)
	s := sigmoid(2)
	assert.InDelta(t, 5*0.25, dZ.At(0, 1), 1e-12)
	assert.InDelta(t, 5*s*(1-s), dZ.At(0, 2), 1e-12)

	_, err = ActivationBackward(mat.NewDense(2, 3, nil), Z, ActivationTanh)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestParseActivation(t *testing.T) {
	for _, act := range allActivations {
		got, err := ParseActivation(act.String())
		require.NoError(t, err)
		assert.Equal(t, act, got)
	}
	_, err := ParseActivation("softmax")
	assert.Error(t, err)
}
