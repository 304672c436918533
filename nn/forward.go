package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Forward runs X (n_x, m) through both layers and returns the output
// probabilities A2 (n_y, m) together with the intermediates for Backward.
func (n *Network) Forward(X mat.Matrix) (*mat.Dense, *Cache, error) {
	if err := n.Params.Validate(); err != nil {
		return nil, nil, err
	}
	p := n.Params

	// Hidden layer
	Z1, err := LinearForward(X, p.W1, p.B1)
	if err != nil {
		return nil, nil, fmt.Errorf("hidden layer: %w", err)
	}
	A1 := Activate(Z1, n.Hidden)

	// Output layer
	Z2, err := LinearForward(A1, p.W2, p.B2)
	if err != nil {
		return nil, nil, fmt.Errorf("output layer: %w", err)
	}
	A2 := Activate(Z2, n.Output)

	cache := &Cache{
		X:  X,
		Z1: Z1,
		A1: A1,
		Z2: Z2,
		A2: A2,
	}
	return A2, cache, nil
}
