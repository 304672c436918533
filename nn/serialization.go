package nn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

const (
	bundleType    = "catnet/bundle"
	bundleVersion = 1
	weightsFormat = "jsonModelB64"
)

// ModelBundle represents a collection of saved models
type ModelBundle struct {
	Type    string       `json:"type"`
	Version int          `json:"version"`
	Models  []SavedModel `json:"models"`
}

// SavedModel represents a single saved model with config and weights
type SavedModel struct {
	ID      string         `json:"id"`
	Config  NetworkConfig  `json:"cfg"`
	Weights EncodedWeights `json:"weights"`
}

// NetworkConfig represents the network architecture
type NetworkConfig struct {
	ID               string `json:"id"`
	InputSize        int    `json:"input_size"`
	HiddenSize       int    `json:"hidden_size"`
	OutputSize       int    `json:"output_size"`
	HiddenActivation string `json:"hidden_activation"`
	OutputActivation string `json:"output_activation"`
}

// EncodedWeights stores weights in base64-encoded JSON format
type EncodedWeights struct {
	Format string `json:"fmt"`
	Data   string `json:"data"`
}

// WeightsData represents the actual weight values
type WeightsData struct {
	Type   string         `json:"type"` // always "float64"
	Layers []LayerWeights `json:"layers"`
}

// LayerWeights stores weights for a single dense layer, row-major.
type LayerWeights struct {
	Rows   int       `json:"rows"`
	Cols   int       `json:"cols"`
	Kernel []float64 `json:"kernel"`
	Biases []float64 `json:"biases"`
}

// SaveModel saves a single model to a file
func (n *Network) SaveModel(filename string, modelID string) error {
	savedModel, err := n.SerializeModel(modelID)
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}

	bundle := ModelBundle{
		Type:    bundleType,
		Version: bundleVersion,
		Models:  []SavedModel{savedModel},
	}
	return bundle.SaveToFile(filename)
}

// SerializeModel captures the architecture and weights of n.
func (n *Network) SerializeModel(modelID string) (SavedModel, error) {
	if err := n.Params.Validate(); err != nil {
		return SavedModel{}, err
	}

	config := NetworkConfig{
		ID:               modelID,
		InputSize:        n.Dims.Input,
		HiddenSize:       n.Dims.Hidden,
		OutputSize:       n.Dims.Output,
		HiddenActivation: n.Hidden.String(),
		OutputActivation: n.Output.String(),
	}

	weightsData := WeightsData{
		Type: "float64",
		Layers: []LayerWeights{
			denseWeights(n.Params.W1, n.Params.B1),
			denseWeights(n.Params.W2, n.Params.B2),
		},
	}

	// Encode weights to base64
	weightsJSON, err := json.Marshal(weightsData)
	if err != nil {
		return SavedModel{}, fmt.Errorf("failed to marshal weights: %w", err)
	}

	return SavedModel{
		ID:     modelID,
		Config: config,
		Weights: EncodedWeights{
			Format: weightsFormat,
			Data:   base64.StdEncoding.EncodeToString(weightsJSON),
		},
	}, nil
}

func denseWeights(w, b *mat.Dense) LayerWeights {
	r, c := w.Dims()
	return LayerWeights{
		Rows:   r,
		Cols:   c,
		Kernel: appendDense(nil, w),
		Biases: appendDense(nil, b),
	}
}

// LoadModel loads a single model from a file. An empty modelID returns the
// first model in the bundle.
func LoadModel(filename string, modelID string) (*Network, error) {
	bundle, err := LoadBundle(filename)
	if err != nil {
		return nil, err
	}
	return bundle.Find(modelID)
}

// Find deserializes the model with the given id, or the first one when id is empty.
func (b *ModelBundle) Find(modelID string) (*Network, error) {
	for _, savedModel := range b.Models {
		if modelID == "" || savedModel.ID == modelID {
			return DeserializeModel(savedModel)
		}
	}
	return nil, fmt.Errorf("model %s not found in bundle", modelID)
}

// LoadBundle loads a model bundle from a file
func LoadBundle(filename string) (*ModelBundle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return LoadBundleFromString(string(data))
}

// LoadBundleFromString loads a model bundle from a JSON string
func LoadBundleFromString(jsonString string) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := json.Unmarshal([]byte(jsonString), &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundle: %w", err)
	}

	if bundle.Type != bundleType {
		return nil, fmt.Errorf("invalid bundle type: %s", bundle.Type)
	}
	if bundle.Version > bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", bundle.Version)
	}

	return &bundle, nil
}

// SaveToString converts the bundle to a JSON string
func (b *ModelBundle) SaveToString() (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return string(data), nil
}

// SaveToFile saves the bundle to a file
func (b *ModelBundle) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// DeserializeModel creates a Network from a SavedModel
func DeserializeModel(saved SavedModel) (*Network, error) {
	config := saved.Config
	dims := Dims{Input: config.InputSize, Hidden: config.HiddenSize, Output: config.OutputSize}
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	hidden, err := ParseActivation(config.HiddenActivation)
	if err != nil {
		return nil, err
	}
	output, err := ParseActivation(config.OutputActivation)
	if err != nil {
		return nil, err
	}

	if saved.Weights.Format != weightsFormat {
		return nil, fmt.Errorf("unsupported weights format %q", saved.Weights.Format)
	}
	weightsJSON, err := base64.StdEncoding.DecodeString(saved.Weights.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}

	var weightsData WeightsData
	if err := json.Unmarshal(weightsJSON, &weightsData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if len(weightsData.Layers) != 2 {
		return nil, fmt.Errorf("layer count mismatch: expected 2, weights=%d", len(weightsData.Layers))
	}

	w1, b1, err := restoreDense(weightsData.Layers[0], dims.Hidden, dims.Input)
	if err != nil {
		return nil, fmt.Errorf("hidden layer: %w", err)
	}
	w2, b2, err := restoreDense(weightsData.Layers[1], dims.Output, dims.Hidden)
	if err != nil {
		return nil, fmt.Errorf("output layer: %w", err)
	}

	return &Network{
		Dims:   dims,
		Hidden: hidden,
		Output: output,
		Params: &Parameters{W1: w1, B1: b1, W2: w2, B2: b2},
	}, nil
}

func restoreDense(lw LayerWeights, rows, cols int) (*mat.Dense, *mat.Dense, error) {
	if lw.Rows != rows || lw.Cols != cols || len(lw.Kernel) != rows*cols || len(lw.Biases) != rows {
		return nil, nil, fmt.Errorf("%w: stored %dx%d (%d weights, %d biases), expected %dx%d",
			ErrShapeMismatch, lw.Rows, lw.Cols, len(lw.Kernel), len(lw.Biases), rows, cols)
	}
	return mat.NewDense(rows, cols, lw.Kernel), mat.NewDense(rows, 1, lw.Biases), nil
}
