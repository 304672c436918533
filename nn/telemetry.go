package nn

// ModelTelemetry represents a single network's structure
type ModelTelemetry struct {
	ID          string           `json:"id"`
	TotalLayers int              `json:"total_layers"`
	TotalParams int              `json:"total_parameters"`
	Layers      []LayerTelemetry `json:"layers"`
}

// LayerTelemetry contains metadata about a specific layer
type LayerTelemetry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Activation  string `json:"activation"`
	Parameters  int    `json:"parameters"`
	InputShape  []int  `json:"input_shape"`
	OutputShape []int  `json:"output_shape"`
}

// Blueprint extracts telemetry data from a network.
func (n *Network) Blueprint(modelID string) ModelTelemetry {
	d := n.Dims
	layers := []LayerTelemetry{
		{
			Name:        "hidden",
			Type:        "dense",
			Activation:  n.Hidden.String(),
			Parameters:  d.Input*d.Hidden + d.Hidden,
			InputShape:  []int{d.Input},
			OutputShape: []int{d.Hidden},
		},
		{
			Name:        "output",
			Type:        "dense",
			Activation:  n.Output.String(),
			Parameters:  d.Hidden*d.Output + d.Output,
			InputShape:  []int{d.Hidden},
			OutputShape: []int{d.Output},
		},
	}

	total := 0
	for _, l := range layers {
		total += l.Parameters
	}
	return ModelTelemetry{
		ID:          modelID,
		TotalLayers: len(layers),
		TotalParams: total,
		Layers:      layers,
	}
}
