package nn

import (
	"fmt"
	"math"
	"strings"
)

// LRScheduler interface defines learning rate scheduling strategies
type LRScheduler interface {
	// GetLR returns the learning rate for the given iteration
	GetLR(step int) float64

	// Name returns the scheduler name
	Name() string
}

// ParseScheduler builds a scheduler from its configuration name.
func ParseScheduler(name string, baseLR, decayRate float64, decaySteps int) (LRScheduler, error) {
	switch strings.ToLower(name) {
	case "", "constant":
		return NewConstantScheduler(baseLR), nil
	case "exponential":
		if decaySteps <= 0 {
			return nil, fmt.Errorf("exponential schedule needs decay_steps > 0")
		}
		return NewExponentialDecayScheduler(baseLR, decayRate, decaySteps), nil
	case "step":
		if decaySteps <= 0 {
			return nil, fmt.Errorf("step schedule needs decay_steps > 0")
		}
		return NewStepDecayScheduler(baseLR, decayRate, decaySteps), nil
	case "inverse_time":
		if decaySteps <= 0 {
			return nil, fmt.Errorf("inverse_time schedule needs decay_steps > 0")
		}
		return NewInverseTimeScheduler(baseLR, decayRate, decaySteps), nil
	default:
		return nil, fmt.Errorf("unknown learning rate schedule %q", name)
	}
}

// ============================================================================
// Constant Scheduler - Fixed learning rate
// ============================================================================

type ConstantScheduler struct {
	baseLR float64
}

func NewConstantScheduler(baseLR float64) *ConstantScheduler {
	return &ConstantScheduler{baseLR: baseLR}
}

func (s *ConstantScheduler) GetLR(step int) float64 {
	return s.baseLR
}

func (s *ConstantScheduler) Name() string {
	return "Constant"
}

// ============================================================================
// Exponential Decay Scheduler
// ============================================================================

type ExponentialDecayScheduler struct {
	initialLR  float64
	decayRate  float64
	decaySteps int
}

func NewExponentialDecayScheduler(initialLR, decayRate float64, decaySteps int) *ExponentialDecayScheduler {
	return &ExponentialDecayScheduler{
		initialLR:  initialLR,
		decayRate:  decayRate,
		decaySteps: decaySteps,
	}
}

func (s *ExponentialDecayScheduler) GetLR(step int) float64 {
	// lr = initialLR * decayRate^(step / decaySteps)
	exponent := float64(step) / float64(s.decaySteps)
	return s.initialLR * math.Pow(s.decayRate, exponent)
}

func (s *ExponentialDecayScheduler) Name() string {
	return "ExponentialDecay"
}

// ============================================================================
// Step Decay Scheduler - decays once every stepSize iterations
// ============================================================================

type StepDecayScheduler struct {
	initialLR   float64
	decayFactor float64
	stepSize    int
}

func NewStepDecayScheduler(initialLR, decayFactor float64, stepSize int) *StepDecayScheduler {
	return &StepDecayScheduler{
		initialLR:   initialLR,
		decayFactor: decayFactor,
		stepSize:    stepSize,
	}
}

func (s *StepDecayScheduler) GetLR(step int) float64 {
	numDecays := step / s.stepSize
	return s.initialLR * math.Pow(s.decayFactor, float64(numDecays))
}

func (s *StepDecayScheduler) Name() string {
	return "StepDecay"
}

// ============================================================================
// Inverse Time Scheduler - lr0 / (1 + rate * floor(step / interval))
// ============================================================================

type InverseTimeScheduler struct {
	initialLR float64
	decayRate float64
	interval  int
}

func NewInverseTimeScheduler(initialLR, decayRate float64, interval int) *InverseTimeScheduler {
	return &InverseTimeScheduler{
		initialLR: initialLR,
		decayRate: decayRate,
		interval:  interval,
	}
}

func (s *InverseTimeScheduler) GetLR(step int) float64 {
	return s.initialLR / (1 + s.decayRate*float64(step/s.interval))
}

func (s *InverseTimeScheduler) Name() string {
	return "InverseTime"
}
