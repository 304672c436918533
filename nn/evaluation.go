package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DecisionThreshold separates the two classes: a probability strictly above
// it is labelled 1.
const DecisionThreshold = 0.5

// Predict returns the output probabilities and the 0/1 labels for X.
func (n *Network) Predict(X mat.Matrix) (probs, labels *mat.Dense, err error) {
	probs, _, err = n.Forward(X)
	if err != nil {
		return nil, nil, err
	}
	return probs, Threshold(probs), nil
}

// Threshold maps probabilities to labels: p > 0.5 ⇒ 1, otherwise 0.
func Threshold(probs mat.Matrix) *mat.Dense {
	var labels mat.Dense
	labels.Apply(func(_, _ int, v float64) float64 {
		if v > DecisionThreshold {
			return 1
		}
		return 0
	}, probs)
	return &labels
}

// Accuracy returns the fraction of entries where pred equals Y.
func Accuracy(pred, Y mat.Matrix) (float64, error) {
	if !sameShape(pred, Y) {
		return 0, fmt.Errorf("%w: predictions vs labels", ErrShapeMismatch)
	}
	r, c := pred.Dims()
	if r*c == 0 {
		return 0, nil
	}
	correct := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if pred.At(i, j) == Y.At(i, j) {
				correct++
			}
		}
	}
	return float64(correct) / float64(r*c), nil
}

// ConfusionMatrix counts binary outcomes for the positive ("cat") class.
type ConfusionMatrix struct {
	TruePositive  int `json:"tp"`
	FalsePositive int `json:"fp"`
	TrueNegative  int `json:"tn"`
	FalseNegative int `json:"fn"`
}

// Confusion tallies pred against Y. Both must be 0/1 row vectors.
func Confusion(pred, Y mat.Matrix) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if !sameShape(pred, Y) {
		return cm, fmt.Errorf("%w: predictions vs labels", ErrShapeMismatch)
	}
	r, c := pred.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p, y := pred.At(i, j) == 1, Y.At(i, j) == 1
			switch {
			case p && y:
				cm.TruePositive++
			case p && !y:
				cm.FalsePositive++
			case !p && !y:
				cm.TrueNegative++
			default:
				cm.FalseNegative++
			}
		}
	}
	return cm, nil
}

// Total returns the number of examples counted.
func (cm ConfusionMatrix) Total() int {
	return cm.TruePositive + cm.FalsePositive + cm.TrueNegative + cm.FalseNegative
}

// Precision is TP / (TP + FP), 0 when nothing was predicted positive.
func (cm ConfusionMatrix) Precision() float64 {
	d := cm.TruePositive + cm.FalsePositive
	if d == 0 {
		return 0
	}
	return float64(cm.TruePositive) / float64(d)
}

// Recall is TP / (TP + FN), 0 when there are no positives.
func (cm ConfusionMatrix) Recall() float64 {
	d := cm.TruePositive + cm.FalseNegative
	if d == 0 {
		return 0
	}
	return float64(cm.TruePositive) / float64(d)
}

// F1 is the harmonic mean of precision and recall.
func (cm ConfusionMatrix) F1() float64 {
	p, r := cm.Precision(), cm.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Mislabeled returns the column indices where pred + y == 1, i.e. where the
// prediction and the label disagree.
func Mislabeled(pred, Y mat.Matrix) ([]int, error) {
	if !sameShape(pred, Y) {
		return nil, fmt.Errorf("%w: predictions vs labels", ErrShapeMismatch)
	}
	_, c := pred.Dims()
	var idx []int
	for j := 0; j < c; j++ {
		if pred.At(0, j)+Y.At(0, j) == 1 {
			idx = append(idx, j)
		}
	}
	return idx, nil
}

// Evaluation summarises a labelled prediction run.
type Evaluation struct {
	Accuracy   float64
	Cost       float64
	Confusion  ConfusionMatrix
	Mislabeled []int
	Labels     *mat.Dense
	Probs      *mat.Dense
}

// Evaluate predicts X and scores the result against Y.
func (n *Network) Evaluate(X, Y mat.Matrix) (*Evaluation, error) {
	probs, labels, err := n.Predict(X)
	if err != nil {
		return nil, err
	}
	cost, err := ComputeCost(probs, Y)
	if err != nil {
		return nil, err
	}
	acc, err := Accuracy(labels, Y)
	if err != nil {
		return nil, err
	}
	cm, err := Confusion(labels, Y)
	if err != nil {
		return nil, err
	}
	wrong, err := Mislabeled(labels, Y)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Accuracy:   acc,
		Cost:       cost,
		Confusion:  cm,
		Mislabeled: wrong,
		Labels:     labels,
		Probs:      probs,
	}, nil
}
