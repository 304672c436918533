package nn

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// TrainingConfig holds configuration for training
type TrainingConfig struct {
	Iterations   int
	LearningRate float64
	RecordEvery  int         // Record and log the cost every N iterations (0 = 100)
	Optimizer    Optimizer   // nil = plain gradient descent
	Scheduler    LRScheduler // nil = constant LearningRate
	Logger       *zap.Logger // nil = no logging

	// Called whenever a cost is recorded
	OnRecord func(iteration int, cost float64)
	Observer TrainingObserver // also receives layer statistics
}

// CostPoint is one recorded value of the training cost.
type CostPoint struct {
	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`
}

// TrainingResult contains training statistics
type TrainingResult struct {
	Iterations   int
	FinalCost    float64
	BestCost     float64
	Costs        []CostPoint
	LRHistory    []float64 // learning rate at each recorded iteration
	TotalTime    time.Duration
	LearningRate float64
}

// DefaultTrainingConfig returns the settings of the reference cat classifier
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		Iterations:   2500,
		LearningRate: 0.0075,
		RecordEvery:  100,
	}
}

// Train runs full-batch gradient descent on X (n_x, m) with labels Y (1, m).
// Each iteration does a forward pass, computes the cost, runs the backward pass
// and updates the parameters. ctx is checked between iterations.
func (n *Network) Train(ctx context.Context, X, Y mat.Matrix, config *TrainingConfig) (*TrainingResult, error) {
	if config == nil {
		config = DefaultTrainingConfig()
	}
	if config.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be > 0 (got %d)", config.Iterations)
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be > 0 (got %g)", config.LearningRate)
	}
	if err := n.checkBatch(X, Y); err != nil {
		return nil, err
	}

	recordEvery := config.RecordEvery
	if recordEvery <= 0 {
		recordEvery = 100
	}
	optimizer := config.Optimizer
	if optimizer == nil {
		optimizer = NewSGDOptimizer()
	}
	scheduler := config.Scheduler
	if scheduler == nil {
		scheduler = NewConstantScheduler(config.LearningRate)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	_, m := X.Dims()
	logger.Debug("training started",
		zap.Int("input_size", n.Dims.Input),
		zap.Int("hidden_size", n.Dims.Hidden),
		zap.Int("examples", m),
		zap.Int("iterations", config.Iterations),
		zap.Float64("learning_rate", config.LearningRate),
		zap.String("hidden_activation", n.Hidden.String()),
		zap.String("optimizer", optimizer.Name()),
		zap.String("scheduler", scheduler.Name()),
	)

	result := &TrainingResult{
		BestCost:     math.MaxFloat64,
		Costs:        make([]CostPoint, 0, config.Iterations/recordEvery+1),
		LearningRate: config.LearningRate,
	}
	startTime := time.Now()

	for i := 0; i < config.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("training stopped at iteration %d: %w", i, err)
		}

		// 1. Forward pass
		A2, cache, err := n.Forward(X)
		if err != nil {
			return result, fmt.Errorf("iteration %d: forward: %w", i, err)
		}

		// 2. Cost
		cost, err := ComputeCost(A2, Y)
		if err != nil {
			return result, fmt.Errorf("iteration %d: cost: %w", i, err)
		}
		if math.IsNaN(cost) || math.IsInf(cost, 0) {
			return result, fmt.Errorf("iteration %d: cost diverged (%v)", i, cost)
		}

		// 3. Backward pass
		grads, err := n.Backward(Y, cache)
		if err != nil {
			return result, fmt.Errorf("iteration %d: backward: %w", i, err)
		}

		// 4. Update parameters
		lr := scheduler.GetLR(i)
		if err := optimizer.Step(n.Params, grads, lr); err != nil {
			return result, fmt.Errorf("iteration %d: update: %w", i, err)
		}

		result.Iterations = i + 1
		result.FinalCost = cost
		if cost < result.BestCost {
			result.BestCost = cost
		}

		if i%recordEvery == 0 || i == config.Iterations-1 {
			result.Costs = append(result.Costs, CostPoint{Iteration: i, Cost: cost})
			result.LRHistory = append(result.LRHistory, lr)
			logger.Info("cost after iteration",
				zap.Int("iteration", i),
				zap.Float64("cost", cost),
				zap.Float64("learning_rate", lr),
			)
			if config.OnRecord != nil {
				config.OnRecord(i, cost)
			}
			if config.Observer != nil {
				config.Observer.OnRecord(RecordEvent{
					Iteration:    i,
					Cost:         cost,
					LearningRate: lr,
					Layers:       n.layerStats(cache),
				})
			}
		}
	}

	result.TotalTime = time.Since(startTime)
	logger.Debug("training finished",
		zap.Float64("final_cost", result.FinalCost),
		zap.Duration("elapsed", result.TotalTime),
	)
	return result, nil
}

// checkBatch validates X against the input layer and Y against X.
func (n *Network) checkBatch(X, Y mat.Matrix) error {
	xr, xc := X.Dims()
	yr, yc := Y.Dims()
	if xr != n.Dims.Input {
		return fmt.Errorf("%w: X has %d features, network expects %d", ErrShapeMismatch, xr, n.Dims.Input)
	}
	if yr != n.Dims.Output || yc != xc {
		return fmt.Errorf("%w: Y is %dx%d, expected %dx%d", ErrShapeMismatch, yr, yc, n.Dims.Output, xc)
	}
	if xc == 0 {
		return fmt.Errorf("%w: no training examples", ErrShapeMismatch)
	}
	return nil
}
