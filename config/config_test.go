package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/openfluke/catnet/nn"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, nn.Dims{Input: 12288, Hidden: 7, Output: 1}, cfg.Model.Dims)
	assert.Equal(t, 2500, cfg.Training.Iterations)
	assert.Equal(t, 0.0075, cfg.Training.LearningRate)
	assert.Equal(t, 100, cfg.Training.RecordEvery)

	network, err := cfg.Network()
	require.NoError(t, err)
	assert.Equal(t, nn.ActivationReLU, network.Hidden)
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  train:
    path: data/train
    size: 32
model:
  input_size: 3072
  hidden_size: 16
  hidden_activation: tanh
training:
  iterations: 400
  optimizer: momentum
  schedule: step
  decay_rate: 0.5
  decay_steps: 100
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Data.Train.Path = "data/train"
	want.Data.Train.Size = 32
	want.Data.Train.Prefix = "train"
	want.Model.Input = 3072
	want.Model.Hidden = 16
	want.Model.HiddenActivation = "tanh"
	want.Training.Iterations = 400
	want.Training.Optimizer = "momentum"
	want.Training.Schedule = "step"
	want.Training.DecayRate = 0.5
	want.Training.DecaySteps = 100
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	opt, err := cfg.Optimizer()
	require.NoError(t, err)
	assert.Equal(t, "SGD (momentum)", opt.Name())
	sched, err := cfg.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, "StepDecay", sched.Name())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := Default()
	cfg.Model.Seed = 42
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no train data":  func(c *Config) { c.Data.Train.Path = "" },
		"zero hidden":    func(c *Config) { c.Model.Hidden = 0 },
		"bad activation": func(c *Config) { c.Model.HiddenActivation = "gelu" },
		"bad init":       func(c *Config) { c.Model.Init = "orthogonal" },
		"no iterations":  func(c *Config) { c.Training.Iterations = 0 },
		"negative lr":    func(c *Config) { c.Training.LearningRate = -1 },
		"bad optimizer":  func(c *Config) { c.Training.Optimizer = "adam" },
		"bad schedule":   func(c *Config) { c.Training.Schedule = "exponential" },
		"negative max":   func(c *Config) { c.Output.MislabeledMax = -1 },
		"negative every": func(c *Config) { c.Training.RecordEvery = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestValidateLeavesConfigUnchanged(t *testing.T) {
	cfg := Default()
	cfg.Training.RecordEvery = 0
	want := *cfg
	require.NoError(t, cfg.Validate())
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Fatalf("Validate changed the config (-want +got):\n%s", diff)
	}

	// Zero is passed through and training falls back to every 100 iterations.
	tc := &nn.TrainingConfig{Iterations: 250, LearningRate: 0.1, RecordEvery: cfg.Training.RecordEvery}
	network, err := nn.NewNetwork(nn.Dims{Input: 2, Hidden: 2, Output: 1}, nn.ActivationTanh, nn.InitXavier, 1)
	require.NoError(t, err)
	X := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	Y := mat.NewDense(1, 2, []float64{0, 1})
	res, err := network.Train(context.Background(), X, Y, tc)
	require.NoError(t, err)
	var iters []int
	for _, c := range res.Costs {
		iters = append(iters, c.Iteration)
	}
	assert.Equal(t, []int{0, 100, 200, 249}, iters)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		TrainPath:    "train.npz",
		Hidden:       12,
		Iterations:   10,
		LearningRate: 0.5,
		Seed:         3,
	})
	assert.Equal(t, "train.npz", cfg.Data.Train.Path)
	assert.Equal(t, "datasets/catvnoncat.npz", cfg.Data.Test.Path)
	assert.Equal(t, 12, cfg.Model.Hidden)
	assert.Equal(t, 10, cfg.Training.Iterations)
	assert.Equal(t, 0.5, cfg.Training.LearningRate)
	assert.Equal(t, int64(3), cfg.Model.Seed)
	assert.Equal(t, "relu", cfg.Model.HiddenActivation)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
