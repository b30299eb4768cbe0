package viewopt

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/biotinker/viewopt/frustum"
)

// Config holds all configuration for the live filtering pipeline and the
// coverage optimization step.
type Config struct {
	// CloudCamera is the component supplying point clouds (the input channel).
	CloudCamera string
	// ViewCamera is the component whose frustum filters the cloud; it
	// supplies intrinsics and its frame is the output frame.
	ViewCamera string
	// OutputDir receives the filtered-cloud and diagnostic artifacts.
	OutputDir string
	// PollPeriodMs is the live pipeline polling period in milliseconds.
	PollPeriodMs int

	// Depth clip band for live filtering, in cloud units (Viam depth
	// cameras report millimeters; the defaults are the 1-5 m working band).
	MinDepthMm float64
	MaxDepthMm float64

	// Optimizer carries the pose-optimization parameters. Its depth band
	// is likewise in the units of the cloud being optimized over.
	Optimizer frustum.OptimizerConfig
}

// DefaultConfig returns a Config with sensible defaults for a Viam
// depth camera reporting millimeters.
func DefaultConfig() Config {
	opt := frustum.DefaultOptimizerConfig()
	opt.Estimator.MinDepth = 1000.0
	opt.Estimator.MaxDepth = 5000.0

	return Config{
		CloudCamera:  "scene-cam",
		ViewCamera:   "scene-cam",
		OutputDir:    "artifacts",
		PollPeriodMs: 1000,
		MinDepthMm:   1000.0,
		MaxDepthMm:   5000.0,
		Optimizer:    opt,
	}
}

// ParseConfig merges attribute overrides onto the defaults. Attribute keys
// mirror the Config field names.
func ParseConfig(attrs map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	if len(attrs) == 0 {
		return cfg, nil
	}
	if err := mapstructure.Decode(attrs, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config attributes: %w", err)
	}
	if cfg.MinDepthMm >= cfg.MaxDepthMm {
		return cfg, frustum.ErrBadDepthBand
	}
	return cfg, nil
}
