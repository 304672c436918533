package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GradCheckResult reports how far the analytic gradient is from a central
// finite-difference estimate of the cost gradient.
type GradCheckResult struct {
	Analytic    []float64
	Numeric     []float64
	Difference  float64 // ‖g - g̃‖ / (‖g‖ + ‖g̃‖)
	MaxAbsError float64 // largest |g_i - g̃_i|
	WorstIndex  int     // parameter with the largest absolute disagreement
	WorstName   string
}

// ParametersToVector flattens W1, b1, W2, b2 (row-major, in that order).
func ParametersToVector(p *Parameters) []float64 {
	var out []float64
	for _, m := range []*mat.Dense{p.W1, p.B1, p.W2, p.B2} {
		out = appendDense(out, m)
	}
	return out
}

// GradientsToVector flattens gradients in the same order as ParametersToVector.
func GradientsToVector(g *Gradients) []float64 {
	var out []float64
	for _, m := range []*mat.Dense{g.DW1, g.DB1, g.DW2, g.DB2} {
		out = appendDense(out, m)
	}
	return out
}

// VectorToParameters rebuilds Parameters shaped like dims from theta.
func VectorToParameters(theta []float64, dims Dims) (*Parameters, error) {
	if len(theta) != dims.ParamCount() {
		return nil, fmt.Errorf("%w: vector has %d values, dims need %d", ErrShapeMismatch, len(theta), dims.ParamCount())
	}
	take := func(r, c int) *mat.Dense {
		data := make([]float64, r*c)
		copy(data, theta[:r*c])
		theta = theta[r*c:]
		return mat.NewDense(r, c, data)
	}
	return &Parameters{
		W1: take(dims.Hidden, dims.Input),
		B1: take(dims.Hidden, 1),
		W2: take(dims.Output, dims.Hidden),
		B2: take(dims.Output, 1),
	}, nil
}

func appendDense(dst []float64, m *mat.Dense) []float64 {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst = append(dst, m.At(i, j))
		}
	}
	return dst
}

// GradientCheck compares Backward against a central finite difference of
// ComputeCost around the current parameters. step <= 0 uses 1e-7.
func (n *Network) GradientCheck(X, Y mat.Matrix, step float64) (*GradCheckResult, error) {
	if err := n.checkBatch(X, Y); err != nil {
		return nil, err
	}
	if step <= 0 {
		step = 1e-7
	}

	_, cache, err := n.Forward(X)
	if err != nil {
		return nil, err
	}
	grads, err := n.Backward(Y, cache)
	if err != nil {
		return nil, err
	}
	analytic := GradientsToVector(grads)

	theta := ParametersToVector(n.Params)
	trial := &Network{Dims: n.Dims, Hidden: n.Hidden, Output: n.Output}
	var fdErr error
	cost := func(x []float64) float64 {
		p, err := VectorToParameters(x, n.Dims)
		if err != nil {
			fdErr = err
			return 0
		}
		trial.Params = p
		A2, _, err := trial.Forward(X)
		if err != nil {
			fdErr = err
			return 0
		}
		c, err := ComputeCost(A2, Y)
		if err != nil {
			fdErr = err
			return 0
		}
		return c
	}

	numeric := fd.Gradient(nil, cost, theta, &fd.Settings{
		Formula: fd.Central,
		Step:    step,
	})
	if fdErr != nil {
		return nil, fmt.Errorf("finite difference: %w", fdErr)
	}

	res := &GradCheckResult{
		Analytic: analytic,
		Numeric:  numeric,
	}
	denom := floats.Norm(analytic, 2) + floats.Norm(numeric, 2)
	if denom > 0 {
		res.Difference = floats.Distance(analytic, numeric, 2) / denom
	}

	res.MaxAbsError = MaxAbsDiff(analytic, numeric)
	for i := range analytic {
		if math.Abs(analytic[i]-numeric[i]) == res.MaxAbsError {
			res.WorstIndex = i
			break
		}
	}
	res.WorstName = parameterName(res.WorstIndex, n.Dims)
	return res, nil
}

// parameterName turns a flat index back into e.g. "W1[3,1024]".
func parameterName(idx int, d Dims) string {
	blocks := []struct {
		name       string
		rows, cols int
	}{
		{"W1", d.Hidden, d.Input},
		{"b1", d.Hidden, 1},
		{"W2", d.Output, d.Hidden},
		{"b2", d.Output, 1},
	}
	for _, b := range blocks {
		size := b.rows * b.cols
		if idx < size {
			return fmt.Sprintf("%s[%d,%d]", b.name, idx/b.cols, idx%b.cols)
		}
		idx -= size
	}
	return "?"
}
