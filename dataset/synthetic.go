package dataset

import (
	"math"
	"math/rand"
)

// Synthetic builds a two-class set of m flat "images" with nx pixels each.
// Cats are brighter on average than non-cats, so the split is learnable but
// not perfectly separable. Height is nx and Width and Channels are 1.
func Synthetic(m, nx int, seed int64) (*Set, error) {
	rng := rand.New(rand.NewSource(seed))
	images := make([][]byte, m)
	labels := make([]int64, m)
	for j := range images {
		label := int64(rng.Intn(2))
		mean := 96.0
		if label == 1 {
			mean = 160
		}
		img := make([]byte, nx)
		for i := range img {
			v := mean + 48*rng.NormFloat64()
			img[i] = byte(math.Max(0, math.Min(255, math.Round(v))))
		}
		images[j] = img
		labels[j] = label
	}
	return newSet(images, labels, nx, 1, 1, nil)
}
