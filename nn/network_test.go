package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestInitializeParametersShapes(t *testing.T) {
	dims := DefaultDims()
	p, err := InitializeParameters(dims, InitSmall, newRand(1))
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	r, c := p.W1.Dims()
	assert.Equal(t, [2]int{7, 12288}, [2]int{r, c})
	r, c = p.B1.Dims()
	assert.Equal(t, [2]int{7, 1}, [2]int{r, c})
	r, c = p.W2.Dims()
	assert.Equal(t, [2]int{1, 7}, [2]int{r, c})
	r, c = p.B2.Dims()
	assert.Equal(t, [2]int{1, 1}, [2]int{r, c})

	assert.Equal(t, 0.0, mat.Sum(p.B1))
	assert.Equal(t, 0.0, mat.Sum(p.B2))
	assert.Equal(t, dims, p.Dims())
	assert.Equal(t, 12288*7+7+7+1, dims.ParamCount())

	// Small init keeps every weight well under 0.1.
	assert.Less(t, mat.Max(p.W1), 0.1)
	assert.Greater(t, mat.Min(p.W1), -0.1)
}

func TestInitializeParametersIsSeeded(t *testing.T) {
	dims := Dims{Input: 6, Hidden: 3, Output: 1}
	a, err := InitializeParameters(dims, InitHe, newRand(42))
	require.NoError(t, err)
	b, err := InitializeParameters(dims, InitHe, newRand(42))
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.W1, b.W1))
	assert.True(t, mat.Equal(a.W2, b.W2))

	_, err = InitializeParameters(Dims{Input: 0, Hidden: 1, Output: 1}, InitHe, nil)
	assert.Error(t, err)
}

func TestParametersCloneIsIndependent(t *testing.T) {
	p, err := InitializeParameters(Dims{Input: 4, Hidden: 3, Output: 1}, InitXavier, newRand(5))
	require.NoError(t, err)
	c := p.Clone()
	require.NoError(t, c.Validate())
	assert.True(t, mat.Equal(p.W1, c.W1))
	assert.True(t, mat.Equal(p.B2, c.B2))

	c.W1.Set(0, 0, 42)
	c.B1.Set(1, 0, -3)
	c.W2.Scale(2, c.W2)
	c.B2.Set(0, 0, 7)
	assert.NotEqual(t, 42.0, p.W1.At(0, 0))
	assert.Equal(t, 0.0, p.B1.At(1, 0))
	assert.False(t, mat.Equal(p.W2, c.W2))
	assert.Equal(t, 0.0, p.B2.At(0, 0))
}

func TestLinearForwardBroadcastsBias(t *testing.T) {
	W := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 1, 1,
	})
	b := mat.NewDense(2, 1, []float64{0.5, -1})
	A := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})

	Z, err := LinearForward(A, W, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 7, 9}, Z.RawMatrix().Data)

	_, err = LinearForward(mat.NewDense(2, 2, nil), W, b)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestComputeCost(t *testing.T) {
	AL := mat.NewDense(1, 3, []float64{0.8, 0.9, 0.4})
	Y := mat.NewDense(1, 3, []float64{1, 1, 0})

	cost, err := ComputeCost(AL, Y)
	require.NoError(t, err)
	want := -(math.Log(0.8) + math.Log(0.9) + math.Log(0.6)) / 3
	assert.InDelta(t, want, cost, 1e-12)
	assert.InDelta(t, 0.2797765635793422, cost, 1e-12)

	// Saturated predictions stay finite.
	cost, err = ComputeCost(mat.NewDense(1, 2, []float64{0, 1}), mat.NewDense(1, 2, []float64{1, 0}))
	require.NoError(t, err)
	assert.False(t, math.IsInf(cost, 0))

	_, err = ComputeCost(AL, mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestForwardShapesAndCache(t *testing.T) {
	dims := Dims{Input: 4, Hidden: 3, Output: 1}
	network, err := NewNetwork(dims, ActivationReLU, InitHe, 3)
	require.NoError(t, err)

	X, _ := blobs(4, 5, 1, 1)
	A2, cache, err := network.Forward(X)
	require.NoError(t, err)

	r, c := A2.Dims()
	assert.Equal(t, [2]int{1, 5}, [2]int{r, c})
	r, c = cache.A1.Dims()
	assert.Equal(t, [2]int{3, 5}, [2]int{r, c})
	for j := 0; j < 5; j++ {
		assert.Greater(t, A2.At(0, j), 0.0)
		assert.Less(t, A2.At(0, j), 1.0)
	}

	_, _, err = network.Forward(mat.NewDense(5, 2, nil))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	empty := &Network{Dims: dims}
	_, _, err = empty.Forward(X)
	assert.True(t, errors.Is(err, ErrNotTrained))
}

func TestBackwardGradientShapes(t *testing.T) {
	dims := Dims{Input: 4, Hidden: 3, Output: 1}
	network, err := NewNetwork(dims, ActivationTanh, InitXavier, 5)
	require.NoError(t, err)
	X, Y := blobs(4, 9, 1, 2)

	_, cache, err := network.Forward(X)
	require.NoError(t, err)
	grads, err := network.Backward(Y, cache)
	require.NoError(t, err)

	assert.True(t, sameShape(grads.DW1, network.Params.W1))
	assert.True(t, sameShape(grads.DB1, network.Params.B1))
	assert.True(t, sameShape(grads.DW2, network.Params.W2))
	assert.True(t, sameShape(grads.DB2, network.Params.B2))

	_, err = network.Backward(mat.NewDense(1, 2, nil), cache)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

// The output bias gradient of a sigmoid + cross-entropy head is mean(A2 - Y)
// over however many examples are in the batch.
func TestBiasGradientAveragesOverBatch(t *testing.T) {
	dims := Dims{Input: 3, Hidden: 2, Output: 1}
	for _, m := range []int{1, 3, 209, 250} {
		network, err := NewNetwork(dims, ActivationReLU, InitHe, 9)
		require.NoError(t, err)
		X, Y := blobs(3, m, 0.5, int64(m))

		A2, cache, err := network.Forward(X)
		require.NoError(t, err)
		grads, err := network.Backward(Y, cache)
		require.NoError(t, err)

		want := 0.0
		for j := 0; j < m; j++ {
			want += A2.At(0, j) - Y.At(0, j)
		}
		want /= float64(m)
		assert.InDelta(t, want, grads.DB2.At(0, 0), 1e-9, "m=%d", m)
	}
}

func TestLinearBackwardKnownValues(t *testing.T) {
	dZ := mat.NewDense(1, 2, []float64{1, 3})
	Aprev := mat.NewDense(2, 2, []float64{
		1, 2,
		3, 4,
	})
	W := mat.NewDense(1, 2, []float64{0.5, -1})

	dAprev, dW, db, err := LinearBackward(dZ, Aprev, W)
	require.NoError(t, err)
	// dW = 1/2 * [1*1+3*2, 1*3+3*4]
	assert.Equal(t, []float64{3.5, 7.5}, dW.RawMatrix().Data)
	assert.Equal(t, []float64{2}, db.RawMatrix().Data)
	assert.Equal(t, []float64{0.5, 1.5, -1, -3}, dAprev.RawMatrix().Data)

	_, _, _, err = LinearBackward(dZ, mat.NewDense(2, 3, nil), W)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
