package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfluke/catnet/config"
	"github.com/openfluke/catnet/dataset"
	"github.com/openfluke/catnet/nn"
	"github.com/openfluke/catnet/runlog"
	"github.com/openfluke/catnet/visual"
)

var (
	trainOverrides config.Overrides
	imageSize      int
	syntheticSize  int
	noPlots        bool
	saveConfigPath string
	layerStats     bool
)

// trainCmd trains a network and writes the model, plots and run record
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier",
	Long: `Loads the train and test splits, runs gradient descent and reports the
cost every record_every iterations, then prints train and test accuracy.

Artifacts (each skipped when its path is empty):
  model_path       JSON model bundle
  cost_plot        cost curve
  mislabeled_plot  grid of mislabeled test images
  run_db           SQLite run history`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainOverrides.TrainPath, "train", "", "training split (.npz, .npy or image directory)")
	f.StringVar(&trainOverrides.TestPath, "test", "", "test split (.npz, .npy or image directory)")
	f.IntVar(&trainOverrides.Hidden, "hidden", 0, "hidden layer size")
	f.StringVar(&trainOverrides.Activation, "activation", "", "hidden activation (relu, sigmoid, tanh, leaky_relu)")
	f.IntVar(&trainOverrides.Iterations, "iterations", 0, "gradient descent iterations")
	f.Float64Var(&trainOverrides.LearningRate, "lr", 0, "learning rate")
	f.Int64Var(&trainOverrides.Seed, "seed", 0, "weight initialization seed")
	f.StringVar(&trainOverrides.ModelPath, "model", "", "where to save the trained model")
	f.StringVar(&trainOverrides.RunDB, "runs", "", "run history database")
	f.IntVar(&imageSize, "image-size", 0, "resize image directories to NxN")
	f.IntVar(&syntheticSize, "synthetic", 0, "train on N generated examples instead of files")
	f.BoolVar(&noPlots, "no-plots", false, "skip the cost and mislabeled plots")
	f.StringVar(&saveConfigPath, "save-config", "", "write the effective configuration to this file")
	f.BoolVar(&layerStats, "layer-stats", false, "print hidden and output activation statistics at each recorded iteration")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(trainOverrides)
	if imageSize > 0 {
		cfg.Data.Train.Size = imageSize
		cfg.Data.Test.Size = imageSize
	}

	train, test, err := loadData(ctx, cfg)
	if err != nil {
		return err
	}
	if n := train.Features(); n != cfg.Model.Input {
		logger.Info("input size follows the data", zap.Int("configured", cfg.Model.Input), zap.Int("data", n))
		cfg.Model.Input = n
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if saveConfigPath != "" {
		if err := cfg.Save(saveConfigPath); err != nil {
			return err
		}
	}

	network, err := cfg.Network()
	if err != nil {
		return err
	}
	optimizer, err := cfg.Optimizer()
	if err != nil {
		return err
	}
	scheduler, err := cfg.Scheduler()
	if err != nil {
		return err
	}

	logger.Info("training",
		zap.Int("train_examples", train.Len()),
		zap.Int("test_examples", test.Len()),
		zap.Int("features", train.Features()),
	)
	tc := &nn.TrainingConfig{
		Iterations:   cfg.Training.Iterations,
		LearningRate: cfg.Training.LearningRate,
		RecordEvery:  cfg.Training.RecordEvery,
		Optimizer:    optimizer,
		Scheduler:    scheduler,
		Logger:       logger,
	}
	if layerStats {
		tc.Observer = &nn.ConsoleObserver{W: cmd.ErrOrStderr()}
	}
	result, err := network.Train(ctx, train.X, train.Y, tc)
	if err != nil {
		return err
	}

	trainEval, err := network.Evaluate(train.X, train.Y)
	if err != nil {
		return fmt.Errorf("evaluate train: %w", err)
	}
	summary := visual.Summary{
		ModelID:       cfg.Output.ModelID,
		Dims:          network.Dims,
		Iterations:    result.Iterations,
		LearningRate:  cfg.Training.LearningRate,
		FinalCost:     result.FinalCost,
		BestCost:      result.BestCost,
		TrainAccuracy: trainEval.Accuracy,
		Elapsed:       result.TotalTime,
	}
	logger.Info("train accuracy", zap.Float64("accuracy", trainEval.Accuracy))

	var testEval *nn.Evaluation
	if test != nil {
		testEval, err = network.Evaluate(test.X, test.Y)
		if err != nil {
			return fmt.Errorf("evaluate test: %w", err)
		}
		summary.HasTest = true
		summary.TestAccuracy = testEval.Accuracy
		summary.Confusion = testEval.Confusion
		summary.Mislabeled = len(testEval.Mislabeled)
		logger.Info("test accuracy", zap.Float64("accuracy", testEval.Accuracy))
	}

	if p := cfg.Output.ModelPath; p != "" {
		if err := network.SaveModel(p, cfg.Output.ModelID); err != nil {
			return err
		}
		summary.Artifacts = append(summary.Artifacts, p)
	}
	if !noPlots {
		summary.Artifacts = append(summary.Artifacts, writePlots(cfg, result, test, testEval)...)
	}
	if p := cfg.Output.RunDB; p != "" {
		if err := recordRun(ctx, p, cfg, network, result, summary); err != nil {
			return err
		}
	}

	return visual.Report(cmd.OutOrStdout(), summary)
}

// loadData returns the train split and, when configured, the test split.
// data.classes, when set, names the labels of every split.
func loadData(ctx context.Context, cfg *config.Config) (train, test *dataset.Set, err error) {
	switch {
	case syntheticSize > 0:
		train, err = dataset.Synthetic(syntheticSize, cfg.Model.Input, cfg.Model.Seed)
		if err == nil {
			test, err = dataset.Synthetic(syntheticSize/4+1, cfg.Model.Input, cfg.Model.Seed+1)
		}
	case cfg.Data.Test.Path == "":
		train, err = dataset.Load(cfg.Data.Train)
	default:
		train, test, err = dataset.LoadSplits(ctx, cfg.Data.Train, cfg.Data.Test)
	}
	if err != nil {
		return nil, nil, err
	}
	applyClasses(cfg.Data.Classes, train, test)
	return train, test, nil
}

func applyClasses(classes []string, sets ...*dataset.Set) {
	if len(classes) == 0 {
		return
	}
	for _, s := range sets {
		if s != nil {
			s.Classes = classes
		}
	}
}

// writePlots draws the cost curve and the mislabeled grid. Plot failures are
// logged and do not fail the run.
func writePlots(cfg *config.Config, result *nn.TrainingResult, test *dataset.Set, eval *nn.Evaluation) []string {
	var written []string
	if p := cfg.Output.CostPlot; p != "" {
		if err := visual.CostCurve(p, result.Costs, cfg.Training.LearningRate); err != nil {
			logger.Warn("cost plot failed", zap.Error(err))
		} else {
			written = append(written, p)
		}
	}
	if p := cfg.Output.MislabeledPlot; p != "" && test != nil && eval != nil {
		err := visual.MislabeledGrid(p, test, eval.Labels, eval.Mislabeled, cfg.Output.MislabeledMax)
		switch {
		case errors.Is(err, visual.ErrNothingToPlot):
			logger.Info("no mislabeled test images")
		case err != nil:
			logger.Warn("mislabeled plot failed", zap.Error(err))
		default:
			written = append(written, p)
		}
	}
	return written
}

func recordRun(ctx context.Context, path string, cfg *config.Config, network *nn.Network,
	result *nn.TrainingResult, s visual.Summary) error {
	store, err := runlog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Record(ctx, runlog.Run{
		CreatedAt:        time.Now(),
		ModelID:          cfg.Output.ModelID,
		Dims:             network.Dims,
		HiddenActivation: network.Hidden.String(),
		LearningRate:     cfg.Training.LearningRate,
		Iterations:       result.Iterations,
		FinalCost:        result.FinalCost,
		TrainAccuracy:    s.TrainAccuracy,
		TestAccuracy:     s.TestAccuracy,
		Costs:            result.Costs,
		Duration:         result.TotalTime,
		ModelPath:        cfg.Output.ModelPath,
	})
	if err != nil {
		return err
	}
	logger.Info("run recorded", zap.String("id", run.ID), zap.String("db", store.Path()))
	return nil
}
