package nn

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// LayerStats summarises the activations of one layer over a batch.
type LayerStats struct {
	Layer         string  `json:"layer"`
	Activation    string  `json:"activation"`
	AvgActivation float64 `json:"avg"`
	MaxActivation float64 `json:"max"`
	MinActivation float64 `json:"min"`
	ActiveUnits   int     `json:"active_units"` // units above zero for at least one example
	TotalUnits    int     `json:"total_units"`
}

// RecordEvent is emitted every time the training cost is recorded.
type RecordEvent struct {
	Iteration    int          `json:"iteration"`
	Cost         float64      `json:"cost"`
	LearningRate float64      `json:"learning_rate"`
	Layers       []LayerStats `json:"layers"`
}

// TrainingObserver receives training progress. Implementations must not
// block; they run on the training goroutine.
type TrainingObserver interface {
	OnRecord(event RecordEvent)
}

// computeLayerStats summarises A (units, m). A unit counts as active when its
// output exceeds threshold on some example; for ReLU a unit that never does is
// dead.
func computeLayerStats(A *mat.Dense, layer string, act ActivationType, threshold float64) LayerStats {
	units, m := A.Dims()
	stats := LayerStats{Layer: layer, Activation: act.String(), TotalUnits: units}
	if units == 0 || m == 0 {
		return stats
	}
	stats.MaxActivation = A.At(0, 0)
	stats.MinActivation = A.At(0, 0)
	var sum float64
	for i := 0; i < units; i++ {
		active := false
		for _, v := range A.RawRowView(i) {
			sum += v
			if v > stats.MaxActivation {
				stats.MaxActivation = v
			}
			if v < stats.MinActivation {
				stats.MinActivation = v
			}
			if v > threshold {
				active = true
			}
		}
		if active {
			stats.ActiveUnits++
		}
	}
	stats.AvgActivation = sum / float64(units*m)
	return stats
}

func (n *Network) layerStats(cache *Cache) []LayerStats {
	return []LayerStats{
		computeLayerStats(cache.A1, "hidden", n.Hidden, 0),
		computeLayerStats(cache.A2, "output", n.Output, DecisionThreshold),
	}
}

// ConsoleObserver prints one line per recorded iteration.
type ConsoleObserver struct {
	W io.Writer
}

func (o *ConsoleObserver) OnRecord(event RecordEvent) {
	fmt.Fprintf(o.W, "Cost after iteration %d: %f\n", event.Iteration, event.Cost)
	for _, s := range event.Layers {
		fmt.Fprintf(o.W, "  %-6s (%s): avg=%.4f max=%.4f active=%d/%d\n",
			s.Layer, s.Activation, s.AvgActivation, s.MaxActivation, s.ActiveUnits, s.TotalUnits)
	}
}

// ChannelObserver forwards events to a buffered channel and drops them when
// the channel is full.
type ChannelObserver struct {
	Events chan RecordEvent
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan RecordEvent, bufferSize),
	}
}

func (o *ChannelObserver) OnRecord(event RecordEvent) {
	select {
	case o.Events <- event:
	default:
	}
}
