// Package config holds the YAML description of a training run.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openfluke/catnet/dataset"
	"github.com/openfluke/catnet/nn"
)

// Config captures everything a training run needs.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig locates the train and test splits.
type DataConfig struct {
	Train   dataset.Source `yaml:"train"`
	Test    dataset.Source `yaml:"test"`
	Classes []string       `yaml:"classes,omitempty"`
}

// ModelConfig describes the network shape.
type ModelConfig struct {
	nn.Dims          `yaml:",inline"`
	HiddenActivation string `yaml:"hidden_activation"`
	Init             string `yaml:"init"`
	Seed             int64  `yaml:"seed"`
}

// TrainingConfig holds the optimisation settings.
type TrainingConfig struct {
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`
	RecordEvery  int     `yaml:"record_every"`
	Optimizer    string  `yaml:"optimizer"`
	Momentum     float64 `yaml:"momentum,omitempty"`
	Schedule     string  `yaml:"schedule"`
	DecayRate    float64 `yaml:"decay_rate,omitempty"`
	DecaySteps   int     `yaml:"decay_steps,omitempty"`
}

// OutputConfig says where artifacts go. Empty paths are skipped.
type OutputConfig struct {
	ModelPath      string `yaml:"model_path"`
	ModelID        string `yaml:"model_id"`
	CostPlot       string `yaml:"cost_plot"`
	MislabeledPlot string `yaml:"mislabeled_plot"`
	MislabeledMax  int    `yaml:"mislabeled_max"`
	RunDB          string `yaml:"run_db"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Overrides captures CLI supplied values. Zero values leave the config alone.
type Overrides struct {
	TrainPath    string
	TestPath     string
	Hidden       int
	Activation   string
	Iterations   int
	LearningRate float64
	Seed         int64
	ModelPath    string
	RunDB        string
}

// Default returns the reference cat classifier run: 12288 -> 7 -> 1, ReLU,
// 2500 iterations at learning rate 0.0075.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Train: dataset.Source{Path: "datasets/catvnoncat.npz", Prefix: "train"},
			Test:  dataset.Source{Path: "datasets/catvnoncat.npz", Prefix: "test"},
		},
		Model: ModelConfig{
			Dims:             nn.DefaultDims(),
			HiddenActivation: nn.ActivationReLU.String(),
			Init:             nn.InitSmall.String(),
			Seed:             1,
		},
		Training: TrainingConfig{
			Iterations:   2500,
			LearningRate: 0.0075,
			RecordEvery:  100,
			Optimizer:    "sgd",
			Momentum:     0.9,
			Schedule:     "constant",
		},
		Output: OutputConfig{
			ModelPath:      "catnet_model.json",
			ModelID:        "catnet",
			CostPlot:       "cost.png",
			MislabeledPlot: "mislabeled.png",
			MislabeledMax:  10,
			RunDB:          "runs.db",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.TrainPath != "" {
		c.Data.Train.Path = o.TrainPath
	}
	if o.TestPath != "" {
		c.Data.Test.Path = o.TestPath
	}
	if o.Hidden > 0 {
		c.Model.Hidden = o.Hidden
	}
	if o.Activation != "" {
		c.Model.HiddenActivation = o.Activation
	}
	if o.Iterations > 0 {
		c.Training.Iterations = o.Iterations
	}
	if o.LearningRate > 0 {
		c.Training.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Model.Seed = o.Seed
	}
	if o.ModelPath != "" {
		c.Output.ModelPath = o.ModelPath
	}
	if o.RunDB != "" {
		c.Output.RunDB = o.RunDB
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Data.Train.Path == "" {
		return errors.New("data.train.path must be set")
	}
	if err := c.Model.Dims.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if _, err := nn.ParseActivation(c.Model.HiddenActivation); err != nil {
		return fmt.Errorf("model.hidden_activation: %w", err)
	}
	if _, err := nn.ParseInitScheme(c.Model.Init); err != nil {
		return fmt.Errorf("model.init: %w", err)
	}
	if c.Training.Iterations <= 0 {
		return fmt.Errorf("training.iterations must be > 0 (got %d)", c.Training.Iterations)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training.learning_rate must be > 0 (got %g)", c.Training.LearningRate)
	}
	if c.Training.RecordEvery < 0 {
		return fmt.Errorf("training.record_every must be >= 0 (got %d)", c.Training.RecordEvery)
	}
	if _, err := c.Optimizer(); err != nil {
		return fmt.Errorf("training.optimizer: %w", err)
	}
	if _, err := c.Scheduler(); err != nil {
		return fmt.Errorf("training.schedule: %w", err)
	}
	if c.Output.MislabeledMax < 0 {
		return fmt.Errorf("output.mislabeled_max must be >= 0 (got %d)", c.Output.MislabeledMax)
	}
	return nil
}

// Optimizer builds the configured parameter update rule.
func (c *Config) Optimizer() (nn.Optimizer, error) {
	return nn.ParseOptimizer(c.Training.Optimizer, c.Training.Momentum)
}

// Scheduler builds the configured learning rate schedule.
func (c *Config) Scheduler() (nn.LRScheduler, error) {
	t := c.Training
	return nn.ParseScheduler(t.Schedule, t.LearningRate, t.DecayRate, t.DecaySteps)
}

// Network builds a freshly initialised network from the model section.
func (c *Config) Network() (*nn.Network, error) {
	act, err := nn.ParseActivation(c.Model.HiddenActivation)
	if err != nil {
		return nil, err
	}
	scheme, err := nn.ParseInitScheme(c.Model.Init)
	if err != nil {
		return nil, err
	}
	return nn.NewNetwork(c.Model.Dims, act, scheme, c.Model.Seed)
}
