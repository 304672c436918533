package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// InitScheme selects the weight scale used by InitializeParameters.
type InitScheme int

const (
	InitSmall  InitScheme = 0 // N(0,1) * 0.01
	InitHe     InitScheme = 1 // N(0,1) * sqrt(2 / fan_in)
	InitXavier InitScheme = 2 // N(0,1) * sqrt(1 / fan_in)
)

func (s InitScheme) String() string {
	switch s {
	case InitSmall:
		return "small"
	case InitHe:
		return "he"
	case InitXavier:
		return "xavier"
	default:
		return fmt.Sprintf("init(%d)", int(s))
	}
}

// ParseInitScheme maps a configuration string to an InitScheme.
func ParseInitScheme(s string) (InitScheme, error) {
	switch s {
	case "small", "":
		return InitSmall, nil
	case "he":
		return InitHe, nil
	case "xavier":
		return InitXavier, nil
	default:
		return 0, fmt.Errorf("unknown init scheme %q", s)
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func (s InitScheme) scale(fanIn int) float64 {
	switch s {
	case InitHe:
		return math.Sqrt(2.0 / float64(fanIn))
	case InitXavier:
		return math.Sqrt(1.0 / float64(fanIn))
	default:
		return 0.01
	}
}

// InitializeParameters draws both weight matrices from a scaled normal
// distribution and zeroes the biases.
func InitializeParameters(dims Dims, scheme InitScheme, rng *rand.Rand) (*Parameters, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = newRand(1)
	}
	return &Parameters{
		W1: initWeights(dims.Hidden, dims.Input, scheme.scale(dims.Input), rng),
		B1: mat.NewDense(dims.Hidden, 1, nil),
		W2: initWeights(dims.Output, dims.Hidden, scheme.scale(dims.Hidden), rng),
		B2: mat.NewDense(dims.Output, 1, nil),
	}, nil
}

func initWeights(rows, cols int, stddev float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * stddev
	}
	return mat.NewDense(rows, cols, data)
}

// LinearForward computes Z = W·A + b, broadcasting b across the columns of A.
func LinearForward(A, W, b mat.Matrix) (*mat.Dense, error) {
	wr, wc := W.Dims()
	ar, _ := A.Dims()
	br, bc := b.Dims()
	if wc != ar || br != wr || bc != 1 {
		return nil, fmt.Errorf("%w: W %dx%d, A %dx?, b %dx%d", ErrShapeMismatch, wr, wc, ar, br, bc)
	}

	var z mat.Dense
	z.Mul(W, A)
	z.Apply(func(i, _ int, v float64) float64 {
		return v + b.At(i, 0)
	}, &z)
	return &z, nil
}

// LinearBackward returns the gradients of a linear layer given dZ.
//
//	dW     = 1/m · dZ · Aprevᵀ
//	db     = 1/m · Σ_columns dZ
//	dAprev = Wᵀ · dZ
//
// m is the number of columns of dZ, whatever the batch size is.
func LinearBackward(dZ, Aprev, W mat.Matrix) (dAprev, dW, db *mat.Dense, err error) {
	zr, m := dZ.Dims()
	ar, ac := Aprev.Dims()
	wr, wc := W.Dims()
	if ac != m || wr != zr || wc != ar {
		return nil, nil, nil, fmt.Errorf("%w: dZ %dx%d, Aprev %dx%d, W %dx%d",
			ErrShapeMismatch, zr, m, ar, ac, wr, wc)
	}
	if m == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	inv := 1 / float64(m)

	dW = new(mat.Dense)
	dW.Mul(dZ, Aprev.T())
	dW.Scale(inv, dW)

	db = mat.NewDense(zr, 1, nil)
	for i := 0; i < zr; i++ {
		sum := 0.0
		for j := 0; j < m; j++ {
			sum += dZ.At(i, j)
		}
		db.Set(i, 0, sum*inv)
	}

	dAprev = new(mat.Dense)
	dAprev.Mul(W.T(), dZ)
	return dAprev, dW, db, nil
}
