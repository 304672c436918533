package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// costEpsilon keeps log() and the 1/a terms finite when the output saturates.
const costEpsilon = 1e-12

func clampProb(a float64) float64 {
	if a < costEpsilon {
		return costEpsilon
	}
	if a > 1-costEpsilon {
		return 1 - costEpsilon
	}
	return a
}

// ComputeCost returns the binary cross-entropy
//
//	-1/m Σ [ y·log(a) + (1-y)·log(1-a) ]
//
// averaged over every column of AL.
func ComputeCost(AL, Y mat.Matrix) (float64, error) {
	if !sameShape(AL, Y) {
		ar, ac := AL.Dims()
		yr, yc := Y.Dims()
		return 0, fmt.Errorf("%w: AL %dx%d vs Y %dx%d", ErrShapeMismatch, ar, ac, yr, yc)
	}
	rows, m := AL.Dims()
	if m == 0 {
		return 0, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}

	sum := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < m; j++ {
			a := clampProb(AL.At(i, j))
			y := Y.At(i, j)
			sum += y*math.Log(a) + (1-y)*math.Log(1-a)
		}
	}
	return -sum / float64(m), nil
}

// costGradient returns dAL = -(Y/AL - (1-Y)/(1-AL)).
func costGradient(AL, Y mat.Matrix) *mat.Dense {
	var dAL mat.Dense
	dAL.Apply(func(i, j int, a float64) float64 {
		a = clampProb(a)
		y := Y.At(i, j)
		return -(y/a - (1-y)/(1-a))
	}, AL)
	return &dAL
}

// Backward computes the parameter gradients of the cross-entropy cost for the
// batch captured in cache.
func (n *Network) Backward(Y mat.Matrix, cache *Cache) (*Gradients, error) {
	if cache == nil {
		return nil, fmt.Errorf("backward called without a forward cache")
	}
	if !sameShape(cache.A2, Y) {
		ar, ac := cache.A2.Dims()
		yr, yc := Y.Dims()
		return nil, fmt.Errorf("%w: A2 %dx%d vs Y %dx%d", ErrShapeMismatch, ar, ac, yr, yc)
	}
	p := n.Params

	dA2 := costGradient(cache.A2, Y)

	// Output layer
	dZ2, err := ActivationBackward(dA2, cache.Z2, n.Output)
	if err != nil {
		return nil, fmt.Errorf("output activation: %w", err)
	}
	dA1, dW2, db2, err := LinearBackward(dZ2, cache.A1, p.W2)
	if err != nil {
		return nil, fmt.Errorf("output layer: %w", err)
	}

	// Hidden layer
	dZ1, err := ActivationBackward(dA1, cache.Z1, n.Hidden)
	if err != nil {
		return nil, fmt.Errorf("hidden activation: %w", err)
	}
	_, dW1, db1, err := LinearBackward(dZ1, cache.X, p.W1)
	if err != nil {
		return nil, fmt.Errorf("hidden layer: %w", err)
	}

	return &Gradients{DW1: dW1, DB1: db1, DW2: dW2, DB2: db2}, nil
}
