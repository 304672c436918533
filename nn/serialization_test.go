package nn

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadModel(t *testing.T) {
	dims := Dims{Input: 6, Hidden: 3, Output: 1}
	network, err := NewNetwork(dims, ActivationTanh, InitXavier, 8)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, network.SaveModel(path, "cat_v1"))

	loaded, err := LoadModel(path, "cat_v1")
	require.NoError(t, err)
	assert.Equal(t, network.Dims, loaded.Dims)
	assert.Equal(t, ActivationTanh, loaded.Hidden)
	assert.Equal(t, ActivationSigmoid, loaded.Output)
	if diff := cmp.Diff(ParametersToVector(network.Params), ParametersToVector(loaded.Params)); diff != "" {
		t.Fatalf("weights differ after reload (-want +got):\n%s", diff)
	}

	X, _ := blobs(6, 4, 1, 1)
	want, _, err := network.Predict(X)
	require.NoError(t, err)
	got, _, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)

	first, err := LoadModel(path, "")
	require.NoError(t, err)
	assert.Equal(t, dims, first.Dims)

	_, err = LoadModel(path, "dog_v1")
	assert.Error(t, err)
}

func TestBundleFormat(t *testing.T) {
	network, err := NewNetwork(Dims{Input: 2, Hidden: 2, Output: 1}, ActivationReLU, InitSmall, 1)
	require.NoError(t, err)
	saved, err := network.SerializeModel("m")
	require.NoError(t, err)

	bundle := &ModelBundle{Type: bundleType, Version: bundleVersion, Models: []SavedModel{saved}}
	s, err := bundle.SaveToString()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	assert.Equal(t, "catnet/bundle", raw["type"])

	back, err := LoadBundleFromString(s)
	require.NoError(t, err)
	require.Len(t, back.Models, 1)
	assert.Equal(t, "m", back.Models[0].ID)
	assert.Equal(t, weightsFormat, back.Models[0].Weights.Format)

	_, err = LoadBundleFromString(`{"type":"other","version":1,"models":[]}`)
	assert.Error(t, err)
	_, err = LoadBundleFromString(`{"type":"catnet/bundle","version":99,"models":[]}`)
	assert.Error(t, err)
}

func TestDeserializeRejectsWrongShape(t *testing.T) {
	network, err := NewNetwork(Dims{Input: 2, Hidden: 2, Output: 1}, ActivationReLU, InitSmall, 1)
	require.NoError(t, err)
	saved, err := network.SerializeModel("m")
	require.NoError(t, err)

	saved.Config.InputSize = 3
	_, err = DeserializeModel(saved)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	saved.Config.InputSize = 2
	saved.Weights.Format = "gob"
	_, err = DeserializeModel(saved)
	assert.Error(t, err)
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBlueprint(t *testing.T) {
	network, err := NewNetwork(DefaultDims(), ActivationReLU, InitSmall, 1)
	require.NoError(t, err)
	bp := network.Blueprint("cat")
	assert.Equal(t, 2, bp.TotalLayers)
	assert.Equal(t, DefaultDims().ParamCount(), bp.TotalParams)
	assert.Equal(t, "relu", bp.Layers[0].Activation)
	assert.Equal(t, []int{12288}, bp.Layers[0].InputShape)
}
