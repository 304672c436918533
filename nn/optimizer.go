package nn

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Optimizer interface defines the contract for all optimizers
type Optimizer interface {
	// Step applies gradients to the parameters in place
	Step(params *Parameters, grads *Gradients, learningRate float64) error

	// Reset clears optimizer state (momentum, etc.)
	Reset()

	// Name returns the optimizer name
	Name() string
}

// ParseOptimizer builds an optimizer from its configuration name.
// "sgd" is plain gradient descent, "momentum" and "nesterov" use the
// given momentum coefficient.
func ParseOptimizer(name string, momentum float64) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "", "sgd", "gd":
		return NewSGDOptimizer(), nil
	case "momentum", "sgd_momentum":
		return NewSGDOptimizerWithMomentum(momentum, false), nil
	case "nesterov":
		return NewSGDOptimizerWithMomentum(momentum, true), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// ============================================================================
// SGD Optimizer (gradient descent with optional momentum)
// ============================================================================

type SGDOptimizer struct {
	momentum   float64
	nesterov   bool
	velocities map[string]*mat.Dense // Momentum buffers
}

func NewSGDOptimizer() *SGDOptimizer {
	return &SGDOptimizer{
		velocities: make(map[string]*mat.Dense),
	}
}

func NewSGDOptimizerWithMomentum(momentum float64, nesterov bool) *SGDOptimizer {
	return &SGDOptimizer{
		momentum:   momentum,
		nesterov:   nesterov,
		velocities: make(map[string]*mat.Dense),
	}
}

func (opt *SGDOptimizer) Step(params *Parameters, grads *Gradients, learningRate float64) error {
	pairs := []struct {
		key  string
		w    *mat.Dense
		grad *mat.Dense
	}{
		{"W1", params.W1, grads.DW1},
		{"b1", params.B1, grads.DB1},
		{"W2", params.W2, grads.DW2},
		{"b2", params.B2, grads.DB2},
	}
	for _, p := range pairs {
		if p.grad == nil || !sameShape(p.w, p.grad) {
			return fmt.Errorf("%w: gradient for %s", ErrShapeMismatch, p.key)
		}
	}

	for _, p := range pairs {
		if opt.momentum == 0 {
			// w = w - lr * grad
			p.w.Apply(func(i, j int, v float64) float64 {
				return v - learningRate*p.grad.At(i, j)
			}, p.w)
			continue
		}

		v, ok := opt.velocities[p.key]
		if !ok {
			r, c := p.w.Dims()
			v = mat.NewDense(r, c, nil)
			opt.velocities[p.key] = v
		}
		// v = momentum * v + grad
		// w = w - lr * v (or w - lr * (grad + momentum * v) for Nesterov)
		v.Apply(func(i, j int, vel float64) float64 {
			return opt.momentum*vel + p.grad.At(i, j)
		}, v)
		p.w.Apply(func(i, j int, w float64) float64 {
			if opt.nesterov {
				return w - learningRate*(p.grad.At(i, j)+opt.momentum*v.At(i, j))
			}
			return w - learningRate*v.At(i, j)
		}, p.w)
	}
	return nil
}

func (opt *SGDOptimizer) Reset() {
	opt.velocities = make(map[string]*mat.Dense)
}

func (opt *SGDOptimizer) Name() string {
	if opt.momentum > 0 {
		if opt.nesterov {
			return "SGD (Nesterov momentum)"
		}
		return "SGD (momentum)"
	}
	return "SGD"
}

// UpdateParameters performs one plain gradient descent step: p = p - lr * dp.
func UpdateParameters(params *Parameters, grads *Gradients, learningRate float64) error {
	return NewSGDOptimizer().Step(params, grads, learningRate)
}
