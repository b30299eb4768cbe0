package viewopt

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/services/framesystem"

	"github.com/biotinker/viewopt/frustum"
)

// Robot holds the hardware references, services, and state for the
// coverage pipeline.
type Robot struct {
	logger  logging.Logger
	machine robot.Robot
	cfg     Config

	// Cameras. cloudCam supplies point clouds; viewCam supplies the
	// intrinsics and frame whose frustum filters them. They may be the
	// same component.
	cloudCam camera.Camera
	viewCam  camera.Camera

	// Services
	fsSvc framesystem.Service

	// State
	state *ScanState
}

// ScanState tracks the most recent pipeline inputs and outputs.
type ScanState struct {
	// Latest raw point cloud from the cloud camera.
	LastCloud pointcloud.PointCloud

	// Latest frustum-filtered cloud, in the view camera's frame.
	LastFiltered pointcloud.PointCloud

	// Result of the most recent coverage optimization.
	LastResult *frustum.Result

	// Filter cycles completed this session.
	CyclesProcessed int
}

// NewRobot creates a Robot by looking up the configured resources from the
// machine. Both cameras and the frame system service are required.
func NewRobot(ctx context.Context, machine robot.Robot, cfg Config, logger logging.Logger) (*Robot, error) {
	r := &Robot{
		logger:  logger,
		machine: machine,
		cfg:     cfg,
		state:   &ScanState{},
	}

	cloudCam, err := camera.FromProvider(machine, cfg.CloudCamera)
	if err != nil {
		return nil, fmt.Errorf("cloud camera (%s): %w", cfg.CloudCamera, err)
	}
	r.cloudCam = cloudCam

	if cfg.ViewCamera == cfg.CloudCamera {
		r.viewCam = cloudCam
	} else {
		viewCam, err := camera.FromProvider(machine, cfg.ViewCamera)
		if err != nil {
			return nil, fmt.Errorf("view camera (%s): %w", cfg.ViewCamera, err)
		}
		r.viewCam = viewCam
	}

	fsSvc, err := framesystem.FromRobot(machine)
	if err != nil {
		return nil, fmt.Errorf("frame system service: %w", err)
	}
	r.fsSvc = fsSvc

	return r, nil
}

// Config returns the pipeline configuration.
func (r *Robot) Config() Config {
	return r.cfg
}

// State returns the current scan state.
func (r *Robot) State() *ScanState {
	return r.state
}

// resetState clears per-cycle state, preserving session counters.
func (r *Robot) resetState() {
	r.state = &ScanState{
		CyclesProcessed: r.state.CyclesProcessed,
	}
}
