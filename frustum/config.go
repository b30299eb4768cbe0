// Package frustum estimates which points of a cloud a pinhole camera can
// see from a given pose, and optimizes look-at poses to maximize that count.
package frustum

import "go.viam.com/rdk/rimage/transform"

// EstimatorConfig holds parameters for the visibility estimator.
type EstimatorConfig struct {
	MinDepth float64 // Near clip of the valid depth band, in cloud units
	MaxDepth float64 // Far clip of the valid depth band, in cloud units
	Delta    float64 // Pose perturbation for finite-difference sensitivities
	Epsilon  float64 // Added to the reward denominator in the reciprocal loss
}

// OptimizerConfig holds parameters for the pose optimization loop.
type OptimizerConfig struct {
	Estimator EstimatorConfig

	// Start is the initial look-at pose guess.
	Start ViewPose

	// Per-parameter learning rates; zero freezes a parameter.
	DistLR float64
	ElevLR float64
	AzimLR float64

	Iterations int // Fixed iteration budget; there is no convergence test
	VizEvery   int // Snapshot cadence in iterations; 0 disables snapshots
}

// DefaultEstimatorConfig returns the estimator defaults: a 1-5 meter
// depth band and a 0.05 finite-difference step.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MinDepth: 1.0,
		MaxDepth: 5.0,
		Delta:    0.05,
		Epsilon:  1e-6,
	}
}

// DefaultOptimizerConfig returns the optimizer defaults.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Estimator:  DefaultEstimatorConfig(),
		Start:      ViewPose{Dist: -0.6, Elev: -30.0, Azim: 20.0},
		DistLR:     0.05,
		ElevLR:     1.2,
		AzimLR:     1.2,
		Iterations: 300,
		VizEvery:   4,
	}
}

// DefaultIntrinsics returns the intrinsics of the reference camera used
// for offline optimization runs when a live camera reports none.
func DefaultIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  1232,
		Height: 1616,
		Fx:     758.03967,
		Fy:     761.62359,
		Ppx:    621.46572,
		Ppy:    756.86402,
	}
}
