package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const leakySlope = 0.01

// activate applies the activation function to a single value
func activate(v float64, activation ActivationType) float64 {
	switch activation {
	case ActivationReLU:
		if v < 0 {
			return 0
		}
		return v
	case ActivationSigmoid:
		return sigmoid(v)
	case ActivationTanh:
		return math.Tanh(v)
	case ActivationLeakyReLU:
		if v < 0 {
			return v * leakySlope
		}
		return v
	default:
		return v
	}
}

// activateDerivative computes the derivative of the activation function
// Note: This computes the derivative with respect to the PRE-activation value
func activateDerivative(preActivation float64, activation ActivationType) float64 {
	switch activation {
	case ActivationReLU:
		// d/dz max(0, z) = 1 if z > 0, else 0
		if preActivation > 0 {
			return 1
		}
		return 0
	case ActivationSigmoid:
		s := sigmoid(preActivation)
		return s * (1 - s)
	case ActivationTanh:
		t := math.Tanh(preActivation)
		return 1 - t*t
	case ActivationLeakyReLU:
		if preActivation >= 0 {
			return 1
		}
		return leakySlope
	default:
		return 1
	}
}

// sigmoid is split on the sign of v so exp never overflows.
func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// Activate returns activation(Z) elementwise. Z is not modified.
func Activate(Z mat.Matrix, activation ActivationType) *mat.Dense {
	var a mat.Dense
	a.Apply(func(_, _ int, v float64) float64 {
		return activate(v, activation)
	}, Z)
	return &a
}

// ActivationBackward returns dZ = dA * activation'(Z).
func ActivationBackward(dA, Z mat.Matrix, activation ActivationType) (*mat.Dense, error) {
	if !sameShape(dA, Z) {
		r, c := dA.Dims()
		zr, zc := Z.Dims()
		return nil, fmt.Errorf("%w: dA %dx%d vs Z %dx%d", ErrShapeMismatch, r, c, zr, zc)
	}
	var dZ mat.Dense
	dZ.Apply(func(i, j int, v float64) float64 {
		return v * activateDerivative(Z.At(i, j), activation)
	}, dA)
	return &dZ, nil
}
