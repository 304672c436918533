package nn

import (
	"math/rand"
	"testing"

	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// blobs draws a two-class Gaussian mixture: label y in {0,1}, every feature
// is N(0,1) shifted by shift*(2y-1).
func blobs(nx, m int, shift float64, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(nx, m, nil)
	Y := mat.NewDense(1, m, nil)
	for j := 0; j < m; j++ {
		y := float64(rng.Intn(2))
		Y.Set(0, j, y)
		for i := 0; i < nx; i++ {
			X.Set(i, j, rng.NormFloat64()+shift*(2*y-1))
		}
	}
	return X, Y
}

func randomLabels(m int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	Y := mat.NewDense(1, m, nil)
	for j := 0; j < m; j++ {
		Y.Set(0, j, float64(rng.Intn(2)))
	}
	return Y
}
