package gpu

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/openfluke/catnet/nn"
)

// DefaultBatchSize is the number of examples evaluated per dispatch.
const DefaultBatchSize = 64

// Predictor evaluates a trained two layer network on the GPU in float32.
type Predictor struct {
	seq  *Sequence
	dims nn.Dims
}

// ActivationOf maps a network activation onto its shader equivalent.
func ActivationOf(a nn.ActivationType) (Activation, error) {
	switch a {
	case nn.ActivationReLU:
		return ActReLU, nil
	case nn.ActivationSigmoid:
		return ActSigmoid, nil
	case nn.ActivationTanh:
		return ActTanh, nil
	case nn.ActivationLeakyReLU:
		return ActLeakyReLU, nil
	default:
		return ActNone, fmt.Errorf("activation %v has no shader", a)
	}
}

// Specs converts the network's parameters into layer specs.
func Specs(network *nn.Network) ([]DenseSpec, error) {
	if err := network.Params.Validate(); err != nil {
		return nil, err
	}
	hidden, err := ActivationOf(network.Hidden)
	if err != nil {
		return nil, err
	}
	output, err := ActivationOf(network.Output)
	if err != nil {
		return nil, err
	}
	p, d := network.Params, network.Dims
	return []DenseSpec{
		{InputSize: d.Input, OutputSize: d.Hidden, Activation: hidden, Weights: toFloat32(p.W1), Biases: toFloat32(p.B1)},
		{InputSize: d.Hidden, OutputSize: d.Output, Activation: output, Weights: toFloat32(p.W2), Biases: toFloat32(p.B2)},
	}, nil
}

// NewPredictor uploads the network's weights and compiles its shaders.
// It returns ErrNoGPU when no adapter is available.
func NewPredictor(network *nn.Network, batchSize int) (*Predictor, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	specs, err := Specs(network)
	if err != nil {
		return nil, err
	}
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	d := network.Dims
	limits := limitsOf(c.Adapter.GetLimits())
	wg := chooseWorkgroup(limits)
	limit := maxBatch(limits, max(d.Input, d.Hidden, d.Output), max(d.Hidden, d.Output), wg)
	if limit == 0 {
		return nil, fmt.Errorf("%d input features exceed the adapter's storage buffer limit", d.Input)
	}
	if batchSize > limit {
		currentLogger().Debug("batch clamped to adapter limits", zap.Int("requested", batchSize), zap.Int("batch", limit))
		batchSize = limit
	}
	seq, err := NewSequence(specs, batchSize)
	if err != nil {
		return nil, err
	}
	seq.WorkgroupSize = wg
	if err := seq.Build(); err != nil {
		seq.Release()
		return nil, fmt.Errorf("build GPU network: %w", err)
	}
	return &Predictor{seq: seq, dims: network.Dims}, nil
}

// Predict returns probabilities and 0/1 labels for the columns of X.
func (p *Predictor) Predict(X mat.Matrix) (probs, labels *mat.Dense, err error) {
	nx, m := X.Dims()
	if nx != p.dims.Input {
		return nil, nil, fmt.Errorf("%w: X has %d features, network expects %d", nn.ErrShapeMismatch, nx, p.dims.Input)
	}
	batch := p.seq.BatchSize
	probs = mat.NewDense(p.dims.Output, m, nil)
	input := make([]float32, batch*nx)

	for start := 0; start < m; start += batch {
		n := packColumns(input, X, start, batch)
		out, err := p.seq.Forward(input)
		if err != nil {
			return nil, nil, err
		}
		for s := 0; s < n; s++ {
			for k := 0; k < p.dims.Output; k++ {
				probs.Set(k, start+s, float64(out[s*p.dims.Output+k]))
			}
		}
	}
	return probs, nn.Threshold(probs), nil
}

// Close releases the GPU resources.
func (p *Predictor) Close() {
	p.seq.Release()
}

// packColumns writes columns [start, start+batch) of X into dst sample-major,
// zero filling past the last column. It returns the number of real columns.
func packColumns(dst []float32, X mat.Matrix, start, batch int) int {
	nx, m := X.Dims()
	n := m - start
	if n > batch {
		n = batch
	}
	for s := 0; s < batch; s++ {
		row := dst[s*nx : (s+1)*nx]
		if s >= n {
			for i := range row {
				row[i] = 0
			}
			continue
		}
		for i := range row {
			row[i] = float32(X.At(i, start+s))
		}
	}
	return n
}

func toFloat32(m *mat.Dense) []float32 {
	r, c := m.Dims()
	out := make([]float32, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, float32(m.At(i, j)))
		}
	}
	return out
}
