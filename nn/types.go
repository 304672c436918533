package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch is returned when matrix operands cannot be combined.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNotTrained is returned when a network has no parameters yet.
	ErrNotTrained = errors.New("network has no parameters")
)

// ActivationType defines the activation function used in a layer
type ActivationType int

const (
	ActivationReLU      ActivationType = 0 // max(0, z)
	ActivationSigmoid   ActivationType = 1 // 1 / (1 + exp(-z))
	ActivationTanh      ActivationType = 2 // tanh(z)
	ActivationLeakyReLU ActivationType = 3 // z if z >= 0, else z * 0.01
)

func (a ActivationType) String() string {
	switch a {
	case ActivationReLU:
		return "relu"
	case ActivationSigmoid:
		return "sigmoid"
	case ActivationTanh:
		return "tanh"
	case ActivationLeakyReLU:
		return "leaky_relu"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// ParseActivation maps a configuration string to an ActivationType.
func ParseActivation(s string) (ActivationType, error) {
	switch s {
	case "relu", "":
		return ActivationReLU, nil
	case "sigmoid":
		return ActivationSigmoid, nil
	case "tanh":
		return ActivationTanh, nil
	case "leaky_relu", "leakyrelu":
		return ActivationLeakyReLU, nil
	default:
		return 0, fmt.Errorf("unknown activation %q", s)
	}
}

// Dims holds the layer sizes n_x -> n_h -> n_y.
type Dims struct {
	Input  int `json:"input_size" yaml:"input_size"`
	Hidden int `json:"hidden_size" yaml:"hidden_size"`
	Output int `json:"output_size" yaml:"output_size"`
}

// DefaultDims returns the 64x64 RGB cat classifier layout (12288 -> 7 -> 1).
func DefaultDims() Dims {
	return Dims{Input: 64 * 64 * 3, Hidden: 7, Output: 1}
}

// Validate checks that every layer has at least one unit.
func (d Dims) Validate() error {
	if d.Input <= 0 || d.Hidden <= 0 || d.Output <= 0 {
		return fmt.Errorf("invalid dims %d -> %d -> %d: sizes must be > 0", d.Input, d.Hidden, d.Output)
	}
	return nil
}

// ParamCount returns the number of trainable scalars.
func (d Dims) ParamCount() int {
	return d.Hidden*d.Input + d.Hidden + d.Output*d.Hidden + d.Output
}

// Parameters holds the weights and biases of both layers.
// W1 is (n_h, n_x), B1 is (n_h, 1), W2 is (n_y, n_h), B2 is (n_y, 1).
type Parameters struct {
	W1 *mat.Dense
	B1 *mat.Dense
	W2 *mat.Dense
	B2 *mat.Dense
}

// Dims reports the layer sizes implied by the parameter shapes.
func (p *Parameters) Dims() Dims {
	h, x := p.W1.Dims()
	y, _ := p.W2.Dims()
	return Dims{Input: x, Hidden: h, Output: y}
}

// Clone returns a deep copy.
func (p *Parameters) Clone() *Parameters {
	return &Parameters{
		W1: mat.DenseCopyOf(p.W1),
		B1: mat.DenseCopyOf(p.B1),
		W2: mat.DenseCopyOf(p.W2),
		B2: mat.DenseCopyOf(p.B2),
	}
}

// Validate checks the four matrices chain together.
func (p *Parameters) Validate() error {
	if p == nil || p.W1 == nil || p.B1 == nil || p.W2 == nil || p.B2 == nil {
		return ErrNotTrained
	}
	h, _ := p.W1.Dims()
	b1r, b1c := p.B1.Dims()
	y, h2 := p.W2.Dims()
	b2r, b2c := p.B2.Dims()
	if b1r != h || b1c != 1 || h2 != h || b2r != y || b2c != 1 {
		return fmt.Errorf("%w: W1 %dx?, b1 %dx%d, W2 %dx%d, b2 %dx%d",
			ErrShapeMismatch, h, b1r, b1c, y, h2, b2r, b2c)
	}
	return nil
}

// Cache keeps the forward pass intermediates needed by Backward.
// X is held by reference and must not be modified while the cache is in use.
type Cache struct {
	X  mat.Matrix
	Z1 *mat.Dense
	A1 *mat.Dense
	Z2 *mat.Dense
	A2 *mat.Dense
}

// Gradients mirrors Parameters with dCost/dParam for each matrix.
type Gradients struct {
	DW1 *mat.Dense
	DB1 *mat.Dense
	DW2 *mat.Dense
	DB2 *mat.Dense
}

// Network is a two layer perceptron: a hidden layer with a configurable
// activation followed by a sigmoid output unit.
type Network struct {
	Dims   Dims
	Hidden ActivationType
	Output ActivationType
	Params *Parameters
}

// NewNetwork creates a network with freshly initialized parameters.
func NewNetwork(dims Dims, hidden ActivationType, scheme InitScheme, seed int64) (*Network, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	params, err := InitializeParameters(dims, scheme, newRand(seed))
	if err != nil {
		return nil, err
	}
	return &Network{
		Dims:   dims,
		Hidden: hidden,
		Output: ActivationSigmoid,
		Params: params,
	}, nil
}

func sameShape(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}
