package viewopt

import (
	"context"
	"fmt"
	"path/filepath"

	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage/transform"

	"github.com/biotinker/viewopt/frustum"
)

// OptimizeCoverage captures a scene cloud and runs the pose optimization
// loop over it, publishing diagnostic artifacts at the configured cadence.
// The captured cloud is immutable for the duration of the run.
func OptimizeCoverage(ctx context.Context, r *Robot) error {
	cloud := r.state.LastCloud
	if cloud == nil {
		captured, err := r.cloudCam.NextPointCloud(ctx, nil)
		if err != nil {
			return fmt.Errorf("capture cloud: %w", err)
		}
		cloud = captured
	}
	if cloud == nil || cloud.Size() == 0 {
		return frustum.ErrTooFewPoints
	}
	if cloud.Size() > maxPipelinePoints {
		cloud = downsamplePointCloud(r, cloud, maxPipelinePoints)
	}

	intrinsics, err := viewIntrinsics(ctx, r)
	if err != nil {
		r.logger.Warnf("Falling back to reference intrinsics: %v", err)
		intrinsics = frustum.DefaultIntrinsics()
	}

	return OptimizeCloudCoverage(ctx, r, cloud, intrinsics)
}

// OptimizeCloudCoverage runs the optimization loop over an already
// captured cloud, e.g. one loaded from a PCD file.
func OptimizeCloudCoverage(
	ctx context.Context,
	r *Robot,
	cloud pointcloud.PointCloud,
	intrinsics *transform.PinholeCameraIntrinsics,
) error {
	cfg := r.cfg.Optimizer
	est, err := frustum.NewEstimator(intrinsics, cfg.Estimator)
	if err != nil {
		return fmt.Errorf("build estimator: %w", err)
	}

	pts := frustum.Points(cloud)
	if err := saveFullCloud(r, cloud); err != nil {
		r.logger.Warnf("Failed to save full cloud: %v", err)
	}

	r.logger.Infof("Optimizing coverage over %d points from pose %+v", len(pts), cfg.Start)

	result, err := frustum.Optimize(ctx, est, pts, cfg.Start, cfg, func(snap frustum.IterationSnapshot) error {
		return publishSnapshot(r, snap, intrinsics)
	})
	if err != nil {
		if result != nil {
			// Cancelled mid-run; keep the partial result.
			r.state.LastResult = result
		}
		return err
	}

	r.state.LastResult = result
	r.logger.Infof("Coverage optimization done after %d iterations: reward %.0f -> %.0f, pose %+v -> %+v",
		result.Iterations, result.StartReward, result.FinalReward, result.StartPose, result.FinalPose)
	return nil
}

// saveFullCloud writes the full optimization input cloud to its channel.
func saveFullCloud(r *Robot, cloud pointcloud.PointCloud) error {
	if err := ensureOutputDir(r); err != nil {
		return err
	}
	return savePointCloudToPCD(cloud, filepath.Join(r.cfg.OutputDir, allPointsFile))
}
